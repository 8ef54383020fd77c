package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/desertthunder/chartx/internal/auth"
	"github.com/desertthunder/chartx/internal/charts"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
	"github.com/desertthunder/chartx/internal/tasks"
)

// Flash and JSON messages shown to the user.
const (
	msgInvalidYear      = "Please enter a valid year (e.g., 2023)."
	msgMissingCreds     = "Spotify Client ID and Client Secret are required."
	msgAuthInit         = "Error initializing Spotify authentication."
	msgSessionExpired   = "Session expired or invalid credentials. Please enter details again."
	msgStateMismatch    = "Authentication failed (state mismatch). Please try again."
	msgMissingCode      = "Authorization code missing in callback. Please try again."
	msgExchangeFailed   = "Failed to get Spotify access token. Check credentials and try again."
	msgYearNotFound     = "Year not found. Please try again."
	msgTokenNotFound    = "Spotify token not found. Please authenticate again."
	msgReauthorize      = "Spotify authorization expired. Please authenticate again."
	msgBuildInProgress  = "A playlist is already being created for this session."
	msgStreamingMissing = "Streaming unsupported."
)

type errorResponse struct {
	Error string `json:"error"`
}

type buildResponse struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	PlaylistURL  string   `json:"playlist_url"`
	PlaylistName string   `json:"playlist_name"`
	Matched      []string `json:"matched"`
	NotFound     []string `json:"not_found"`
	Errored      []string `json:"errored"`
	ErrorAdding  bool     `json:"error_adding"`
}

func newBuildResponse(s *models.BuildSummary) buildResponse {
	return buildResponse{
		Success:      s.Success,
		Message:      s.Message,
		PlaylistURL:  s.PlaylistURL,
		PlaylistName: s.PlaylistName,
		Matched:      s.Matched,
		NotFound:     s.NotFound,
		Errored:      s.Errored,
		ErrorAdding:  s.ErrorAdding,
	}
}

type previewResponse struct {
	Success bool                  `json:"success"`
	Songs   []tasks.PreviewResult `json:"songs"`
}

// httpError is a status plus the message returned as {"error": ...}.
type httpError struct {
	status  int
	message string
}

type indexData struct {
	Flashes       []string
	Authenticated bool
}

type generatingData struct {
	Year         int
	PlaylistName string
}

func parseYear(s string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", shared.ErrInvalidYear, s)
	}
	if err := charts.ValidateYear(year); err != nil {
		return 0, err
	}
	return year, nil
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	cs := a.cookie(r)

	data := indexData{}
	if us, ok := a.userSession(cs); ok {
		us.ClearYear()
		us.Auth.Abandon()
		data.Authenticated = us.Auth.Status() == auth.StatusAuthenticated
	}

	if flashes := cs.Flashes(flashKey); len(flashes) > 0 {
		for _, f := range flashes {
			if msg, ok := f.(string); ok {
				data.Flashes = append(data.Flashes, msg)
			}
		}
		if err := cs.Save(r, w); err != nil {
			a.logger.Error("failed to save session cookie", "error", err)
		}
	}

	a.render(w, "index.html", data)
}

func (a *App) handleSubmit(w http.ResponseWriter, r *http.Request) {
	cs := a.cookie(r)

	if err := r.ParseForm(); err != nil {
		a.flashAndRedirect(w, r, cs, msgInvalidYear)
		return
	}

	year, err := parseYear(r.PostForm.Get("year"))
	if err != nil {
		a.flashAndRedirect(w, r, cs, msgInvalidYear)
		return
	}

	creds := models.Credentials{
		ClientID:     strings.TrimSpace(r.PostForm.Get("client_id")),
		ClientSecret: strings.TrimSpace(r.PostForm.Get("client_secret")),
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		a.flashAndRedirect(w, r, cs, msgMissingCreds)
		return
	}

	us := a.ensureSession(cs)
	us.SetForm(year, r.PostForm.Get("name"), r.PostForm.Get("age"))

	authURL, err := us.Auth.Begin(creds)
	if err != nil {
		a.logger.Warn("failed to start authorization", "session", us.ID, "error", err)
		msg := msgAuthInit
		if errors.Is(err, shared.ErrInvalidCredentials) {
			msg = msgMissingCreds
		}
		a.flashAndRedirect(w, r, cs, msg)
		return
	}

	if err := cs.Save(r, w); err != nil {
		a.logger.Error("failed to save session cookie", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	a.logger.Info("redirecting to Spotify for authorization", "session", us.ID, "year", year)
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (a *App) handleCallback(w http.ResponseWriter, r *http.Request) {
	cs := a.cookie(r)

	us, ok := a.userSession(cs)
	if !ok {
		a.flashAndRedirect(w, r, cs, msgSessionExpired)
		return
	}

	q := r.URL.Query()
	if _, err := us.Auth.Complete(r.Context(), q.Get("state"), q.Get("code"), q.Get("error")); err != nil {
		a.flashAndRedirect(w, r, cs, callbackFlash(err))
		return
	}

	year := us.Year()
	if year == 0 {
		a.flashAndRedirect(w, r, cs, msgYearNotFound)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/generating/%d", year), http.StatusFound)
}

func callbackFlash(err error) string {
	var denied *shared.ProviderDeniedError
	switch {
	case errors.Is(err, shared.ErrStateMismatch):
		return msgStateMismatch
	case errors.As(err, &denied):
		return fmt.Sprintf("Spotify authorization failed: %s. Please ensure you granted permissions.", denied.Reason)
	case errors.Is(err, shared.ErrMissingCode):
		return msgMissingCode
	default:
		return msgExchangeFailed
	}
}

func (a *App) handleGenerating(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r.PathValue("year"))
	if err != nil {
		a.flashAndRedirect(w, r, a.cookie(r), msgInvalidYear)
		return
	}
	a.render(w, "generating.html", generatingData{Year: year, PlaylistName: models.PlaylistName(year)})
}

// prepare resolves the caller's session and year for the build endpoints.
//
// The year saved by the form wins over the query parameter.
func (a *App) prepare(r *http.Request) (*UserSession, int, *httpError) {
	us, ok := a.userSession(a.cookie(r))

	year := 0
	if ok {
		year = us.Year()
	}
	if year == 0 {
		raw := r.URL.Query().Get("year")
		if raw == "" {
			return nil, 0, &httpError{http.StatusBadRequest, msgYearNotFound}
		}
		y, err := parseYear(raw)
		if err != nil {
			return nil, 0, &httpError{http.StatusBadRequest, msgInvalidYear}
		}
		year = y
	}

	if !ok || us.Auth.Status() != auth.StatusAuthenticated {
		return nil, 0, &httpError{http.StatusBadRequest, msgTokenNotFound}
	}
	return us, year, nil
}

// buildFailure maps a pipeline error to a response.
func buildFailure(year int, err error) *httpError {
	switch {
	case errors.Is(err, shared.ErrInvalidYear):
		return &httpError{http.StatusBadRequest, msgInvalidYear}
	case errors.Is(err, shared.ErrNoChartData), errors.Is(err, shared.ErrChartUnavailable):
		return &httpError{http.StatusBadRequest, fmt.Sprintf("No songs found for the year %d", year)}
	case errors.Is(err, shared.ErrAuthenticationRejected),
		errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrRefreshFailed),
		errors.Is(err, shared.ErrTokenExpired):
		return &httpError{http.StatusUnauthorized, msgReauthorize}
	default:
		return &httpError{http.StatusInternalServerError, err.Error()}
	}
}

func (a *App) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	us, year, herr := a.prepare(r)
	if herr != nil {
		a.writeJSON(w, herr.status, errorResponse{herr.message})
		return
	}

	if !us.StartBuild() {
		a.writeJSON(w, http.StatusConflict, errorResponse{msgBuildInProgress})
		return
	}
	defer us.FinishBuild()

	summary, err := a.pipeline(us).Build(r.Context(), year, nil)
	if err != nil {
		a.logger.Error("build failed", "session", us.ID, "year", year, "error", err)
		herr := buildFailure(year, err)
		a.writeJSON(w, herr.status, errorResponse{herr.message})
		return
	}

	a.writeJSON(w, http.StatusOK, newBuildResponse(summary))
}

func (a *App) handleSearchSongs(w http.ResponseWriter, r *http.Request) {
	us, year, herr := a.prepare(r)
	if herr != nil {
		a.writeJSON(w, herr.status, errorResponse{herr.message})
		return
	}

	songs, err := a.pipeline(us).Preview(r.Context(), year, nil)
	if err != nil {
		a.logger.Error("preview failed", "session", us.ID, "year", year, "error", err)
		herr := buildFailure(year, err)
		a.writeJSON(w, herr.status, errorResponse{herr.message})
		return
	}

	a.writeJSON(w, http.StatusOK, previewResponse{Success: true, Songs: songs})
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": a.store.Len(),
	})
}
