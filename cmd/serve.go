package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/desertthunder/chartx/internal/repositories"
	"github.com/desertthunder/chartx/internal/server"
	"github.com/desertthunder/chartx/internal/web"
	"github.com/urfave/cli/v3"
)

// Serve runs the web app until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if host := cmd.String("host"); host != "" {
		r.config.Server.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		r.config.Server.Port = port
	}

	source, err := r.chartSource()
	if err != nil {
		return err
	}

	opts := web.Options{
		Config:     r.config,
		Provider:   r.provider,
		Charts:     source,
		NewService: r.newService,
		Logger:     r.logger,
	}
	if db, err := r.database(); err != nil {
		r.logger.Warn("build history disabled", "error", err)
	} else {
		opts.History = repositories.NewBuildRepository(db)
	}

	app, err := web.New(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r.writePlain("→ Serving on http://%s\n", r.config.Server.Addr())
	return server.Serve(ctx, server.New(r.config.Server.Addr(), app), r.logger)
}
