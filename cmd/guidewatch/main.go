// Command guidewatch monitors clinical guideline pages for changes and runs
// the review-and-outreach workflow.
//
// Usage:
//
//	guidewatch serve   # HTTP API + periodic sweeps
//	guidewatch sweep   # run one detection sweep and exit
//	guidewatch seed    # add sample recipients for testing
package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "modernc.org/sqlite"

	"github.com/guidewatch/guidewatch/dbopen"
	"github.com/guidewatch/guidewatch/idgen"
	"github.com/guidewatch/guidewatch/mailer"
	"github.com/guidewatch/guidewatch/monitor"
	"github.com/guidewatch/guidewatch/shield"
	"github.com/guidewatch/guidewatch/summarizer"
)

func main() {
	// Logging.
	var lvl slog.Level
	switch env("LOG_LEVEL", "info") {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	svc, err := buildService(logger)
	if err != nil {
		slog.Error("startup", "error", err)
		os.Exit(1)
	}

	switch cmd {
	case "serve":
		runServe(ctx, svc)
	case "sweep":
		found, err := svc.RunSweep(ctx)
		if err != nil {
			slog.Error("sweep", "error", err)
			os.Exit(1)
		}
		slog.Info("sweep finished", "changes_found", found)
	case "seed":
		if err := seedRecipients(ctx, svc); err != nil {
			slog.Error("seed", "error", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want serve, sweep, or seed)\n", cmd)
		os.Exit(2)
	}
}

// buildService wires the database, AI summarizer, and Mailgun transport into
// a monitor.Service from environment and the YAML config file.
func buildService(logger *slog.Logger) (*monitor.Service, error) {
	cfg, err := monitor.LoadConfigFile(env("CONFIG", "guidewatch.yaml"))
	if err != nil {
		return nil, err
	}

	db, err := dbopen.Open(env("DB_PATH", "db/guidewatch.db"), dbopen.WithMkdirAll())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	claude := summarizer.NewClaude(summarizer.ClaudeConfig{
		APIKey: os.Getenv("ANTHROPIC_API_KEY"),
		Model:  os.Getenv("CLAUDE_MODEL"),
	})
	sender := mailer.NewMailgun(mailer.MailgunConfig{
		Domain: os.Getenv("MAILGUN_DOMAIN"),
		APIKey: os.Getenv("MAILGUN_API_KEY"),
		Sender: mailer.Sender{
			FromName:  cfg.FromName,
			FromEmail: env("FROM_EMAIL", "guidewatch@example.org"),
		},
	})

	return monitor.New(db, claude, claude, sender, cfg, logger)
}

func runServe(ctx context.Context, svc *monitor.Service) {
	authToken := os.Getenv("AUTH_TOKEN")
	if authToken == "" {
		slog.Error("AUTH_TOKEN is required for serve")
		os.Exit(1)
	}

	// Background sweeps.
	go svc.Run(ctx)

	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack() {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	// Action links from the admin alert email. These render HTML because
	// they open in the administrator's browser.
	r.Get("/approve/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := linkChangeID(w, r)
		if !ok {
			return
		}
		out, err := svc.Approve(r.Context(), id, linkActor(r))
		if err != nil {
			writeActionPage(w, httpStatus(err), "Approve failed", err.Error())
			return
		}
		if !out.Applied {
			writeActionPage(w, 200, "Already resolved",
				fmt.Sprintf("Change %s is already %s; nothing was sent.", id, out.Status))
			return
		}
		res, err := svc.Dispatch(r.Context(), id)
		if err != nil {
			writeActionPage(w, httpStatus(err), "Approved, dispatch failed", err.Error())
			return
		}
		writeActionPage(w, 200, "Approved and sent",
			fmt.Sprintf("Change %s dispatched: %d sent, %d failed of %d recipients.",
				id, res.Sent, res.Failed, res.Total))
	})
	r.Get("/reject/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := linkChangeID(w, r)
		if !ok {
			return
		}
		out, err := svc.Reject(r.Context(), id, linkActor(r))
		if err != nil {
			writeActionPage(w, httpStatus(err), "Reject failed", err.Error())
			return
		}
		if !out.Applied {
			writeActionPage(w, 200, "Already resolved",
				fmt.Sprintf("Change %s is already %s.", id, out.Status))
			return
		}
		writeActionPage(w, 200, "Rejected",
			fmt.Sprintf("Change %s was rejected. No messages will be sent.", id))
	})
	r.Get("/review/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := linkChangeID(w, r)
		if !ok {
			return
		}
		c, err := svc.GetChange(r.Context(), id)
		if err != nil {
			writeActionPage(w, httpStatus(err), "Not found", err.Error())
			return
		}
		snap, err := svc.GetSnapshot(r.Context(), c.NewSnapshotID)
		if err != nil {
			writeActionPage(w, httpStatus(err), "Not found", err.Error())
			return
		}
		writeReviewPage(w, c, snap)
	})

	// JSON API for programmatic collaborators.
	r.Group(func(r chi.Router) {
		r.Use(requireToken(authToken))

		r.Route("/api/changes", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				changes, err := svc.ListChanges(r.Context(), r.URL.Query().Get("status"))
				if err != nil {
					writeError(w, httpStatus(err), err)
					return
				}
				writeJSON(w, 200, changes)
			})
			r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
				c, err := svc.GetChange(r.Context(), chi.URLParam(r, "id"))
				if err != nil {
					writeError(w, httpStatus(err), err)
					return
				}
				writeJSON(w, 200, c)
			})
			r.Post("/{id}/approve", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Actor string `json:"actor"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, 400, err)
					return
				}
				out, err := svc.Approve(r.Context(), chi.URLParam(r, "id"), req.Actor)
				if err != nil {
					writeError(w, httpStatus(err), err)
					return
				}
				writeJSON(w, 200, out)
			})
			r.Post("/{id}/reject", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Actor string `json:"actor"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, 400, err)
					return
				}
				out, err := svc.Reject(r.Context(), chi.URLParam(r, "id"), req.Actor)
				if err != nil {
					writeError(w, httpStatus(err), err)
					return
				}
				writeJSON(w, 200, out)
			})
			r.Put("/{id}/drafts", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					PatientDraft   string `json:"patient_draft"`
					ClinicianDraft string `json:"clinician_draft"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, 400, err)
					return
				}
				if err := svc.UpdateDrafts(r.Context(), chi.URLParam(r, "id"), req.PatientDraft, req.ClinicianDraft); err != nil {
					writeError(w, httpStatus(err), err)
					return
				}
				writeJSON(w, 200, map[string]string{"status": "updated"})
			})
			r.Post("/{id}/dispatch", func(w http.ResponseWriter, r *http.Request) {
				res, err := svc.Dispatch(r.Context(), chi.URLParam(r, "id"))
				if err != nil {
					writeError(w, httpStatus(err), err)
					return
				}
				writeJSON(w, 200, res)
			})
			r.Get("/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
				msgs, err := svc.ListOutbound(r.Context(), chi.URLParam(r, "id"))
				if err != nil {
					writeError(w, httpStatus(err), err)
					return
				}
				writeJSON(w, 200, msgs)
			})
		})

		r.Route("/api/recipients", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				recipients, err := svc.ListActiveRecipients(r.Context(), r.URL.Query().Get("type"))
				if err != nil {
					writeError(w, httpStatus(err), err)
					return
				}
				writeJSON(w, 200, recipients)
			})
			r.Post("/", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Name       string   `json:"name"`
					Email      string   `json:"email"`
					Type       string   `json:"type"`
					Conditions []string `json:"relevant_conditions"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, 400, err)
					return
				}
				recipient, created, err := svc.AddRecipient(r.Context(), req.Name, req.Email, req.Type, req.Conditions)
				if err != nil {
					writeError(w, httpStatus(err), err)
					return
				}
				code := 200
				if created {
					code = 201
				}
				writeJSON(w, code, recipient)
			})
			r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
				if err := svc.DeactivateRecipient(r.Context(), chi.URLParam(r, "id")); err != nil {
					writeError(w, httpStatus(err), err)
					return
				}
				writeJSON(w, 200, map[string]string{"status": "deactivated"})
			})
		})

		r.Post("/api/sweep", func(w http.ResponseWriter, r *http.Request) {
			found, err := svc.RunSweep(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, map[string]int{"changes_found": found})
		})

		r.Get("/api/messages/pending", func(w http.ResponseWriter, r *http.Request) {
			msgs, err := svc.ListPendingOutbound(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, msgs)
		})
	})

	addr := ":" + env("PORT", "8080")
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		srv.Shutdown(context.Background())
	}()

	slog.Info("guidewatch listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server", "error", err)
		os.Exit(1)
	}
}

// linkChangeID validates the {id} segment of an unauthenticated link URL
// before it reaches the database. Scanners probing these paths get a plain
// 400 page.
func linkChangeID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := idgen.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeActionPage(w, 400, "Bad link", "This link does not reference a valid change.")
		return "", false
	}
	return id, true
}

// linkActor identifies who clicked an action link. The alert email can embed
// ?actor= so the audit trail names a person rather than the generic link.
func linkActor(r *http.Request) string {
	if a := strings.TrimSpace(r.URL.Query().Get("actor")); a != "" {
		return a
	}
	return "email-link"
}

// requireToken enforces a constant-time bearer token check.
func requireToken(token string) func(http.Handler) http.Handler {
	want := []byte("Bearer " + token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("Authorization"))
			if len(got) != len(want) || subtle.ConstantTimeCompare(got, want) != 1 {
				writeJSON(w, 401, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func seedRecipients(ctx context.Context, svc *monitor.Service) error {
	samples := []struct {
		name, email, rtype string
		conditions         []string
	}{
		{"Jane Smith", "jane.smith@example.com", monitor.TypePatient, []string{"BRCA1", "BRCA2"}},
		{"Robert Jones", "rob.jones@example.com", monitor.TypePatient, []string{"Lynch syndrome"}},
		{"Dr. Sarah Lee", "dr.lee@clinic.example.com", monitor.TypeClinician, nil},
		{"Dr. Mark Tan", "dr.tan@clinic.example.com", monitor.TypeClinician, []string{"Lynch syndrome", "BRCA"}},
	}
	for _, s := range samples {
		r, created, err := svc.AddRecipient(ctx, s.name, s.email, s.rtype, s.conditions)
		if err != nil {
			return fmt.Errorf("seed %s: %w", s.email, err)
		}
		slog.Info("recipient", "name", r.Name, "type", r.Type, "created", created)
	}
	return nil
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, monitor.ErrNotFound):
		return 404
	case errors.Is(err, monitor.ErrInvalidInput):
		return 400
	case errors.Is(err, monitor.ErrPreconditionFailed), errors.Is(err, monitor.ErrNoRecipients):
		return 409
	default:
		return 500
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
