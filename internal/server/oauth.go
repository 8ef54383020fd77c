package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/desertthunder/chartx/internal/auth"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
)

// ErrCallbackProcessed is returned to a second callback hit.
var ErrCallbackProcessed = errors.New("callback already processed")

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *models.TokenInfo
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler serves the loopback redirect for the CLI authorization flow.
// Implements the Handler interface for registration with a Router.
//
// The [auth.Session] must already have been started with [auth.Session.Begin]; the handler
// completes it with the query parameters of the first callback it receives.
type OAuthHandler struct {
	session     *auth.Session
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a new OAuth handler that completes session.
func NewOAuthHandler(session *auth.Session) *OAuthHandler {
	return &OAuthHandler{
		session:    session,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"GET /callback"}
}

// ServeHTTP handles the OAuth callback request.
//
// Validates state parameter, exchanges authorization code for tokens, and sends the result through the result channel.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Only handle callback once
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	q := r.URL.Query()

	// The exchange must finish even if the browser drops the connection.
	ctx := context.WithoutCancel(r.Context())
	token, err := h.session.Complete(ctx, q.Get("state"), q.Get("code"), q.Get("error"))
	if err != nil {
		h.Send(OAuthResult{err: err})
		renderCallbackPage(w, callbackStatus(err), false, callbackMessage(err))
		return
	}

	h.Send(OAuthResult{Token: token})
	renderCallbackPage(w, http.StatusOK, true, "You can close this window and return to the terminal.")
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

func callbackStatus(err error) int {
	if errors.Is(err, shared.ErrExchangeFailed) {
		return http.StatusBadGateway
	}
	return http.StatusBadRequest
}

func callbackMessage(err error) string {
	var denied *shared.ProviderDeniedError
	switch {
	case errors.As(err, &denied):
		return fmt.Sprintf("Spotify reported: %s", denied.Reason)
	case errors.Is(err, shared.ErrStateMismatch):
		return "The authorization state did not match. Start again from the terminal."
	case errors.Is(err, shared.ErrMissingCode):
		return "No authorization code was returned."
	case errors.Is(err, shared.ErrExchangeFailed):
		return "Token exchange failed."
	default:
		return err.Error()
	}
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{if .OK}}Authorization Successful{{else}}Authorization Failed{{end}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { margin: 0 0 1rem 0; }
        .ok { color: #1DB954; }
        .fail { color: #E22134; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        {{if .OK}}<h1 class="ok">✓ Authorization Successful</h1>{{else}}<h1 class="fail">✗ Authorization Failed</h1>{{end}}
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

func renderCallbackPage(w http.ResponseWriter, status int, ok bool, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = callbackPage.Execute(w, struct {
		OK      bool
		Message string
	}{ok, message})
}
