package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/auth"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/services"
	"github.com/desertthunder/chartx/internal/shared"
	"github.com/desertthunder/chartx/internal/tasks"
	tu "github.com/desertthunder/chartx/internal/testing"
	"github.com/urfave/cli/v3"
)

type staticSource struct {
	entries []models.ChartEntry
	calls   atomic.Int32
}

func (s *staticSource) TopEntries(ctx context.Context, year int) ([]models.ChartEntry, error) {
	s.calls.Add(1)
	return s.entries, nil
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// approve plays the browser: it follows the authorize URL back to the loopback callback.
func approve(redirect, code string) func(string) error {
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		callback := redirect + "?" + url.Values{"state": {u.Query().Get("state")}, "code": {code}}.Encode()

		go func() {
			for i := 0; i < 100; i++ {
				resp, err := http.Get(callback)
				if err == nil {
					resp.Body.Close()
					return
				}
				time.Sleep(20 * time.Millisecond)
			}
		}()
		return nil
	}
}

type harness struct {
	runner *Runner
	output *bytes.Buffer
	svc    *tu.MockService
	source *staticSource
	tokens *tu.TokenServer
}

func newHarness(t *testing.T, openBrowser func(redirect string) func(string) error) *harness {
	t.Helper()

	tokens := tu.NewTokenServer(t)
	redirect := fmt.Sprintf("http://127.0.0.1:%d/callback", freePort(t))

	config := shared.DefaultConfig()
	config.Credentials.Spotify.ClientID = tu.Credentials.ClientID
	config.Credentials.Spotify.ClientSecret = tu.Credentials.ClientSecret
	config.Credentials.Spotify.RedirectURI = redirect
	config.Database.Path = filepath.Join(t.TempDir(), "chartx.db")
	config.Build.Workers = 2

	songA := models.ChartEntry{Position: 1, Title: "Song A", Artist: "Artist A"}
	songB := models.ChartEntry{Position: 2, Title: "Song B", Artist: "Artist B"}
	svc := tu.NewMockService()
	svc.Tracks[tasks.Query(songA)] = []services.Track{{ID: "track-a", URI: "spotify:track:track-a"}}
	source := &staticSource{entries: []models.ChartEntry{songA, songB}}

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:      config,
		ConfigPath:  filepath.Join(t.TempDir(), "config.toml"),
		Logger:      log.New(io.Discard),
		Output:      output,
		Provider:    auth.NewProvider(redirect, auth.WithEndpoint(tokens.Endpoint()), auth.WithHTTPClient(tokens.Client())),
		NewService:  func(services.TokenSource) services.Service { return svc },
		Charts:      source,
		OpenBrowser: openBrowser(redirect),
		AuthTimeout: 5 * time.Second,
	})
	t.Cleanup(func() { runner.Close() })

	return &harness{runner: runner, output: output, svc: svc, source: source, tokens: tokens}
}

func (h *harness) run(args ...string) error {
	app := &cli.Command{Name: "chartx", Commands: h.runner.register()}
	return app.Run(context.Background(), append([]string{"chartx"}, args...))
}

func approveGood(redirect string) func(string) error { return approve(redirect, tu.GoodCode) }

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			source := &staticSource{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Charts:     source,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.charts != source {
				t.Error("expected chart source to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
			if runner.authTimeout != defaultAuthTimeout {
				t.Errorf("expected default auth timeout, got %v", runner.authTimeout)
			}
			if runner.provider == nil || runner.newService == nil {
				t.Error("expected default provider and service factory")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"serve", "chart", "build", "preview", "history", "cache", "setup"} {
			if !names[want] {
				t.Errorf("expected %q command", want)
			}
		}
	})
}

func TestCallbackAddr(t *testing.T) {
	tests := []struct {
		name     string
		redirect string
		want     string
		wantErr  bool
	}{
		{"Loopback", "http://127.0.0.1:5000/callback", "127.0.0.1:5000", false},
		{"Localhost", "http://localhost:8888/callback", "localhost:8888", false},
		{"No Host", "/callback", "", true},
		{"Malformed", "http://[::1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := callbackAddr(tt.redirect)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	t.Run("Authorizes Builds And Records", func(t *testing.T) {
		h := newHarness(t, approveGood)

		if err := h.run("build", "--year", "2023", "--format", "json"); err != nil {
			t.Fatalf("build failed: %v", err)
		}

		if h.tokens.Exchanges.Load() != 1 {
			t.Errorf("expected one token exchange, got %d", h.tokens.Exchanges.Load())
		}
		if len(h.svc.Created) != 1 || h.svc.Created[0].Name != "Billboard Top 100 - 2023" {
			t.Errorf("unexpected playlists %+v", h.svc.Created)
		}

		out := h.output.String()
		if !strings.Contains(out, "Waiting for Spotify authorization") {
			t.Error("expected authorization progress line")
		}
		idx := strings.Index(out, "{")
		if idx < 0 {
			t.Fatalf("expected JSON summary, got %s", out)
		}
		var summary models.BuildSummary
		if err := json.Unmarshal([]byte(out[idx:]), &summary); err != nil {
			t.Fatalf("bad summary JSON: %v", err)
		}
		if len(summary.Matched) != 1 || len(summary.NotFound) != 1 {
			t.Errorf("unexpected summary %+v", summary)
		}

		h.output.Reset()
		if err := h.run("history", "--json"); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		var history []historyEntry
		if err := json.Unmarshal(h.output.Bytes(), &history); err != nil {
			t.Fatalf("bad history JSON: %v", err)
		}
		if len(history) != 1 || history[0].Status != models.BuildCompleted || history[0].Matched != 1 {
			t.Errorf("unexpected history %+v", history)
		}
	})

	t.Run("Writes Summary File", func(t *testing.T) {
		h := newHarness(t, approveGood)
		path := filepath.Join(t.TempDir(), "out", "summary.md")

		if err := h.run("build", "--year", "2023", "--format", "md", "--output", path); err != nil {
			t.Fatalf("build failed: %v", err)
		}

		content := tu.MustReadFile(t, path)
		if !strings.HasPrefix(content, "# Billboard Top 100 - 2023") {
			t.Errorf("unexpected markdown %q", content)
		}
	})

	t.Run("Invalid Year", func(t *testing.T) {
		h := newHarness(t, approveGood)

		err := h.run("build", "--year", "1900")
		if !errors.Is(err, shared.ErrInvalidYear) {
			t.Errorf("expected ErrInvalidYear, got %v", err)
		}
		if h.tokens.Exchanges.Load() != 0 {
			t.Error("authorization should not start for an invalid year")
		}
	})

	t.Run("Invalid Format", func(t *testing.T) {
		h := newHarness(t, approveGood)

		if err := h.run("build", "--year", "2023", "--format", "xml"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("Missing Credentials", func(t *testing.T) {
		h := newHarness(t, approveGood)
		h.runner.config.Credentials.Spotify.ClientSecret = ""

		if err := h.run("build", "--year", "2023"); !errors.Is(err, shared.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Exchange Failure", func(t *testing.T) {
		h := newHarness(t, func(redirect string) func(string) error { return approve(redirect, "bad-code") })

		err := h.run("build", "--year", "2023")
		if !errors.Is(err, shared.ErrExchangeFailed) {
			t.Errorf("expected ErrExchangeFailed, got %v", err)
		}
		if len(h.svc.Created) != 0 {
			t.Error("no playlist should be created")
		}
	})

	t.Run("Authorization Timeout", func(t *testing.T) {
		h := newHarness(t, func(string) func(string) error {
			return func(string) error { return errors.New("no browser") }
		})
		h.runner.authTimeout = 100 * time.Millisecond

		if err := h.run("build", "--year", "2023"); !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})
}

func TestPreview(t *testing.T) {
	h := newHarness(t, approveGood)

	if err := h.run("preview", "--year", "2023"); err != nil {
		t.Fatalf("preview failed: %v", err)
	}

	out := h.output.String()
	if !strings.Contains(out, "✓ Song A - Artist A") || !strings.Contains(out, "✗ Song B - Artist B") {
		t.Errorf("unexpected preview output %s", out)
	}
	if !strings.Contains(out, "Found 1 of 2 songs") {
		t.Error("expected found count")
	}
	if len(h.svc.Created) != 0 {
		t.Error("preview must not create a playlist")
	}
}

func TestChartAndCache(t *testing.T) {
	h := newHarness(t, approveGood)

	if err := h.run("chart", "--year", "2023"); err != nil {
		t.Fatalf("chart failed: %v", err)
	}
	if !strings.Contains(h.output.String(), "  1. Song A - Artist A") {
		t.Errorf("unexpected chart output %q", h.output.String())
	}

	h.output.Reset()
	if err := h.run("chart", "--year", "2023", "--json"); err != nil {
		t.Fatalf("chart failed: %v", err)
	}
	if h.source.calls.Load() != 1 {
		t.Errorf("expected the second read to hit the cache, got %d fetches", h.source.calls.Load())
	}

	h.output.Reset()
	if err := h.run("cache", "list"); err != nil {
		t.Fatalf("cache list failed: %v", err)
	}
	if !strings.Contains(h.output.String(), "2023    2 entries") {
		t.Errorf("unexpected cache listing %q", h.output.String())
	}

	h.output.Reset()
	if err := h.run("cache", "clear", "--year", "2023"); err != nil {
		t.Fatalf("cache clear failed: %v", err)
	}
	if !strings.Contains(h.output.String(), "Removed 2 cached entries") {
		t.Errorf("unexpected clear output %q", h.output.String())
	}
}

func TestSetup(t *testing.T) {
	t.Run("Database", func(t *testing.T) {
		h := newHarness(t, approveGood)

		if err := h.run("setup", "database"); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		tu.AssertFileExists(t, h.runner.config.Database.Path)
		if !strings.Contains(h.output.String(), "Applied") {
			t.Errorf("unexpected output %q", h.output.String())
		}

		h.output.Reset()
		if err := h.run("setup", "database"); err != nil {
			t.Fatalf("second setup failed: %v", err)
		}
		if !strings.Contains(h.output.String(), "up to date") {
			t.Errorf("expected no pending migrations, got %q", h.output.String())
		}
	})

	t.Run("Config", func(t *testing.T) {
		h := newHarness(t, approveGood)

		if err := h.run("setup", "config"); err != nil {
			t.Fatalf("setup config failed: %v", err)
		}
		tu.AssertFileExists(t, h.runner.configPath)

		if err := h.run("setup", "config"); err == nil {
			t.Error("expected error when the config already exists")
		}
	})
}
