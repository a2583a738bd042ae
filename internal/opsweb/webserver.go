package opsweb

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/henrycontrol/turnkey/internal/logging"
)

// WebServer exposes hub state over HTTP: /healthz, /api/devices,
// /api/audit/recent, and /metrics.
type WebServer struct {
	srv *http.Server
	hub *Hub
	log logging.Logger
}

// NewWebServer builds the ops HTTP surface bound to addr.
func NewWebServer(addr string, hub *Hub, metrics *Metrics, logger logging.Logger) *WebServer {
	if logger == nil {
		logger = logging.Default()
	}
	ws := &WebServer{
		hub: hub,
		log: logger.With(logging.Component("opsweb")),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", ws.handleHealthz)
	mux.HandleFunc("/api/devices", ws.handleDevices)
	mux.HandleFunc("/api/audit/recent", ws.handleAuditRecent)
	if metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	}

	ws.srv = &http.Server{Addr: addr, Handler: mux}
	return ws
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (ws *WebServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (ws *WebServer) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ws.hub.Devices())
}

func (ws *WebServer) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ws.hub.RecentAudit(limit))
}

// Start begins listening and shuts down gracefully when ctx is canceled.
func (ws *WebServer) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := ws.srv.Shutdown(shutdownCtx); err != nil {
			ws.log.Warn("opsweb shutdown", logging.Field{Key: "error", Value: err.Error()})
		}
	}()

	if err := ws.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		ws.log.Error("opsweb server error", logging.Field{Key: "error", Value: err.Error()})
	}
}
