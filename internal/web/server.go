package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/lucasnoah/adwd/internal/webhook"
)

// maxBodySize caps webhook request bodies. GitHub payloads are well under
// this; anything larger is rejected.
const maxBodySize = 1 << 20

// EventHandler processes routed webhook events. *webhook.Handler satisfies it.
type EventHandler interface {
	HandleIssueEvent(ctx context.Context, ev *webhook.IssueEvent) *webhook.EventResult
	HandlePullRequestEvent(ctx context.Context, ev *webhook.PullRequestEvent) *webhook.EventResult
}

// Server receives GitHub webhooks, validates their signatures, and hands
// accepted events to the handler on a background goroutine. The HTTP
// response never waits for agent work: GitHub times deliveries out after
// ten seconds and a workflow run takes minutes.
type Server struct {
	handler EventHandler
	secret  string
	host    string
	port    int
}

// NewServer creates a webhook server.
func NewServer(handler EventHandler, host string, port int, secret string) *Server {
	return &Server{handler: handler, secret: secret, host: host, port: port}
}

// Handler builds the HTTP routing table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		s.handleWebhook(w, r)
	})
	mux.HandleFunc("/webhooks/github", s.handleWebhook)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/ready", s.handleHealth)
	return mux
}

// Start blocks serving HTTP until the listener fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	log.Printf("adwd: webhook receiver listening on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if !webhook.ValidateSignature(body, r.Header.Get("X-Hub-Signature-256"), s.secret) {
		log.Printf("adwd: rejected webhook with invalid signature from %s", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	event := r.Header.Get("X-GitHub-Event")
	delivery := r.Header.Get("X-GitHub-Delivery")

	switch event {
	case "ping":
		writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
		return

	case "issues":
		var ev webhook.IssueEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			http.Error(w, "malformed payload", http.StatusBadRequest)
			return
		}
		s.dispatch(delivery, event, func(ctx context.Context) *webhook.EventResult {
			return s.handler.HandleIssueEvent(ctx, &ev)
		})

	case "pull_request":
		var ev webhook.PullRequestEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			http.Error(w, "malformed payload", http.StatusBadRequest)
			return
		}
		s.dispatch(delivery, event, func(ctx context.Context) *webhook.EventResult {
			return s.handler.HandlePullRequestEvent(ctx, &ev)
		})

	default:
		http.Error(w, fmt.Sprintf("unsupported event %q", event), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":   "accepted",
		"event":    event,
		"delivery": delivery,
	})
}

// dispatch runs an event handler on its own goroutine. Panics are recovered
// and logged so one bad event cannot take the receiver down.
func (s *Server) dispatch(delivery, event string, fn func(ctx context.Context) *webhook.EventResult) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("adwd: %s handler panicked (delivery %s): %v", event, delivery, r)
			}
		}()

		result := fn(context.Background())
		switch {
		case result == nil:
			log.Printf("adwd: %s event (delivery %s): no result", event, delivery)
		case !result.Triggered:
			log.Printf("adwd: %s event (delivery %s): skipped: %s", event, delivery, result.Reason)
		case result.Error != "":
			log.Printf("adwd: %s event (delivery %s): workflow %s failed: %s", event, delivery, result.WorkflowID, result.Error)
		default:
			log.Printf("adwd: %s event (delivery %s): workflow %s completed, success=%t", event, delivery, result.WorkflowID, result.Success)
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("adwd: write response: %v", err)
	}
}
