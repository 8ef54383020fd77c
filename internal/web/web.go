// Package web serves the browser flow: a form for the year and Spotify app credentials, the
// authorization redirect and callback, and a progress page fed by Server-Sent Events.
//
// # Routes
//
//	GET  /                 → form; drops any pending year and authorization state
//	POST /                 → validate, store in the session, redirect to Spotify
//	GET  /callback         → complete authorization, redirect to /generating/{year}
//	GET  /generating/{year}→ progress page (EventSource on /events)
//	GET  /events           → SSE stream of tasks.ProgressUpdate, then "done" or "failure"
//	GET  /create_playlist  → run the build, JSON result
//	GET  /search_songs     → search-only preview, JSON result
//	GET  /healthz          → liveness
//
// # Sessions
//
// The browser holds a signed cookie (gorilla/sessions) with a session id and flash messages.
// Everything else, including the OAuth token, stays server-side in a [SessionStore].
package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/auth"
	"github.com/desertthunder/chartx/internal/charts"
	"github.com/desertthunder/chartx/internal/server"
	"github.com/desertthunder/chartx/internal/services"
	"github.com/desertthunder/chartx/internal/shared"
	"github.com/desertthunder/chartx/internal/tasks"
	"github.com/gorilla/sessions"
	"golang.org/x/time/rate"
)

//go:embed templates/*.html
var templateFiles embed.FS

const (
	cookieName   = "chartx_session"
	sessionIDKey = "sid"
	flashKey     = "error"
)

// ServiceFactory builds a catalog client that authenticates with tokens.
type ServiceFactory func(tokens services.TokenSource) services.Service

// Options holds the dependencies of an [App].
type Options struct {
	Config     *shared.Config
	Provider   *auth.Provider        // defaults to Spotify with the configured redirect URI
	Charts     charts.Source         // required
	History    tasks.HistoryRecorder // optional
	NewService ServiceFactory        // defaults to a rate-limited SpotifyService
	Logger     *log.Logger
}

// App is the web application. It implements [http.Handler].
type App struct {
	config     *shared.Config
	charts     charts.Source
	history    tasks.HistoryRecorder
	newService ServiceFactory
	store      *SessionStore
	cookies    *sessions.CookieStore
	templates  *template.Template
	router     *server.BasicRouter
	logger     *log.Logger
}

// New creates the App and registers its routes.
func New(opts Options) (*App, error) {
	if opts.Charts == nil {
		return nil, fmt.Errorf("%w: chart source is required", shared.ErrInvalidConfig)
	}
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	cfg := opts.Config

	if opts.Provider == nil {
		opts.Provider = auth.NewProvider(cfg.Credentials.Spotify.RedirectURI)
	}

	if opts.NewService == nil {
		limiter := rate.NewLimiter(rate.Inf, 1)
		if cfg.Build.RateLimit > 0 {
			limiter = rate.NewLimiter(rate.Limit(cfg.Build.RateLimit), 1)
		}
		logger := opts.Logger
		opts.NewService = func(tokens services.TokenSource) services.Service {
			return services.NewSpotifyService(tokens, services.WithRateLimiter(limiter), services.WithLogger(logger))
		}
	}

	tmpl, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	secret := cfg.Server.SessionSecret
	if secret == "" {
		opts.Logger.Warn("no session secret configured; cookies will not survive a restart")
		secret = shared.GenerateID() + shared.GenerateID()
	}

	ttl := cfg.Server.SessionTTL.Duration
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	cookies := sessions.NewCookieStore([]byte(secret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	a := &App{
		config:     cfg,
		charts:     opts.Charts,
		history:    opts.History,
		newService: opts.NewService,
		store:      NewSessionStore(opts.Provider, cfg.Server.MaxSessions, ttl, opts.Logger),
		cookies:    cookies,
		templates:  tmpl,
		router:     server.NewBasicRouter(),
		logger:     opts.Logger,
	}
	a.routes()
	return a, nil
}

func (a *App) routes() {
	a.router.Use(server.RequestID(), server.Logging(a.logger), server.Recover(a.logger))

	a.router.HandleFunc(http.MethodGet, "/{$}", a.handleIndex)
	a.router.HandleFunc(http.MethodPost, "/{$}", a.handleSubmit)
	a.router.HandleFunc(http.MethodGet, "/callback", a.handleCallback)
	a.router.HandleFunc(http.MethodGet, "/generating/{year}", a.handleGenerating)
	a.router.HandleFunc(http.MethodGet, "/create_playlist", a.handleCreatePlaylist)
	a.router.HandleFunc(http.MethodGet, "/search_songs", a.handleSearchSongs)
	a.router.HandleFunc(http.MethodGet, "/events", a.handleEvents)
	a.router.HandleFunc(http.MethodGet, "/healthz", a.handleHealth)
}

// ServeHTTP implements [http.Handler].
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Sessions exposes the server-side session store.
func (a *App) Sessions() *SessionStore {
	return a.store
}

// pipeline wires a build for one user session.
func (a *App) pipeline(us *UserSession) *tasks.Pipeline {
	engine := tasks.NewPlaylistEngine(a.newService(us.Auth), tasks.EngineOptions{
		Workers:     a.config.Build.Workers,
		CallTimeout: a.config.Build.CallTimeout.Duration,
		Logger:      a.logger,
	})
	return tasks.NewPipeline(a.charts, engine, a.history, a.logger)
}

// cookie returns the signed cookie session. A cookie that fails verification is replaced by a fresh one.
func (a *App) cookie(r *http.Request) *sessions.Session {
	cs, err := a.cookies.Get(r, cookieName)
	if err != nil {
		a.logger.Debug("discarding invalid session cookie", "error", err)
	}
	return cs
}

// userSession looks up the server-side session named by the cookie.
func (a *App) userSession(cs *sessions.Session) (*UserSession, bool) {
	id, _ := cs.Values[sessionIDKey].(string)
	return a.store.Get(id)
}

// ensureSession returns the caller's session, creating one and pointing the cookie at it when needed.
func (a *App) ensureSession(cs *sessions.Session) *UserSession {
	if us, ok := a.userSession(cs); ok {
		return us
	}
	us := a.store.New()
	cs.Values[sessionIDKey] = us.ID
	return us
}

// flashAndRedirect stores msg as a flash and sends the browser back to the form.
func (a *App) flashAndRedirect(w http.ResponseWriter, r *http.Request, cs *sessions.Session, msg string) {
	cs.AddFlash(msg, flashKey)
	if err := cs.Save(r, w); err != nil {
		a.logger.Error("failed to save session cookie", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *App) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := a.templates.ExecuteTemplate(w, name, data); err != nil {
		a.logger.Error("failed to render template", "template", name, "error", err)
	}
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		a.logger.Error("failed to encode response", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}
