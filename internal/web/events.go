package web

import (
	"fmt"
	"net/http"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
	"github.com/desertthunder/chartx/internal/tasks"
)

// progressBuffer holds every update of a full chart so the non-blocking sends rarely drop.
const progressBuffer = 128

type buildOutcome struct {
	summary *models.BuildSummary
	err     error
}

// handleEvents runs a build and streams its progress as Server-Sent Events.
//
// Events: "progress" (tasks.ProgressUpdate), then exactly one of "done" (the build response)
// or "failure" ({"error", "status"}). Failures are sent as events with a 200 stream because
// EventSource cannot read error bodies.
func (a *App) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, msgStreamingMissing, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	send := func(event string, v any) {
		data, err := shared.MarshalJSON(v, false)
		if err != nil {
			a.logger.Error("failed to encode event", "event", event, "error", err)
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}
	fail := func(herr *httpError) {
		send("failure", map[string]any{"error": herr.message, "status": herr.status})
	}

	us, year, herr := a.prepare(r)
	if herr != nil {
		fail(herr)
		return
	}

	if !us.StartBuild() {
		fail(&httpError{http.StatusConflict, msgBuildInProgress})
		return
	}
	defer us.FinishBuild()

	progress := make(chan tasks.ProgressUpdate, progressBuffer)
	done := make(chan buildOutcome, 1)

	go func() {
		summary, err := a.pipeline(us).Build(r.Context(), year, progress)
		done <- buildOutcome{summary, err}
	}()

	for {
		select {
		case u := <-progress:
			send("progress", u)
		case out := <-done:
			drain(progress, func(u tasks.ProgressUpdate) { send("progress", u) })

			if out.err != nil {
				a.logger.Error("build failed", "session", us.ID, "year", year, "error", out.err)
				fail(buildFailure(year, out.err))
				return
			}
			send("done", newBuildResponse(out.summary))
			return
		}
	}
}

// drain forwards whatever is still buffered in ch without blocking.
func drain(ch <-chan tasks.ProgressUpdate, fn func(tasks.ProgressUpdate)) {
	for {
		select {
		case u := <-ch:
			fn(u)
		default:
			return
		}
	}
}
