package main

import (
	"fmt"

	"github.com/desertthunder/chartx/internal/shared"
)

// useFileLogger redirects logs to path so they don't interfere with TUI rendering.
func (r *Runner) useFileLogger(path string) error {
	fileLogger, err := shared.NewFileLogger(path)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)
	return nil
}
