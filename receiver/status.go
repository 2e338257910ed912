package receiver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/glidedeck/glidedeck/utils"
)

// StatusServer is the local HTTP sidecar of a running host: health,
// pairing payload, Prometheus metrics, a live log stream over
// websocket, and the shutdown endpoint the kill command posts to.
type StatusServer struct {
	host    *Host
	srv     *http.Server
	ln      net.Listener
	hook    *logStreamHook
	started time.Time

	onShutdown func()
}

// StartStatus binds the status server on addr. onShutdown is invoked
// (once, from a request goroutine) when POST /shutdown arrives.
func StartStatus(addr string, host *Host, onShutdown func()) (*StatusServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen status %s: %w", addr, err)
	}

	s := &StatusServer{
		host:       host,
		ln:         ln,
		hook:       newLogStreamHook(),
		started:    time.Now(),
		onShutdown: onShutdown,
	}
	utils.AddHook(s.hook)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleRoot)
	r.Get("/pairing", s.handlePairing)
	r.Get("/metrics", promhttp.HandlerFor(host.Registry(), promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/logs", s.handleLogs)
	r.Post("/shutdown", s.handleShutdown)

	s.srv = &http.Server{Handler: r}
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			utils.Error("status server: %v", err)
		}
	}()

	utils.Info("status server on http://%s", ln.Addr())
	return s, nil
}

// Addr is the bound status address.
func (s *StatusServer) Addr() string { return s.ln.Addr().String() }

func (s *StatusServer) Stop(ctx context.Context) error {
	s.hook.closeAll()
	return s.srv.Shutdown(ctx)
}

func (s *StatusServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.host.ActiveSessions(),
		"port":    s.host.Port(),
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *StatusServer) handlePairing(w http.ResponseWriter, r *http.Request) {
	info, err := s.host.Pairing()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *StatusServer) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "shutting down"})
	if s.onShutdown != nil {
		go s.onShutdown()
	}
}

var logsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// local diagnostics endpoint, not exposed beyond the machine
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleLogs streams log lines to a websocket client until it goes
// away.
func (s *StatusServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	conn, err := logsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	lines := s.hook.subscribe()
	defer s.hook.unsubscribe(lines)

	for line := range lines {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// logStreamHook mirrors logger output to websocket subscribers. Slow
// subscribers lose lines rather than stalling logging.
type logStreamHook struct {
	mu     sync.Mutex
	subs   map[chan string]struct{}
	closed bool
}

func newLogStreamHook() *logStreamHook {
	return &logStreamHook{subs: make(map[chan string]struct{})}
}

func (h *logStreamHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *logStreamHook) Fire(entry *logrus.Entry) error {
	line := fmt.Sprintf("%s %s %s",
		entry.Time.Format("15:04:05.000"), entry.Level.String(), entry.Message)

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- line:
		default:
		}
	}
	return nil
}

func (h *logStreamHook) subscribe() chan string {
	ch := make(chan string, 64)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}
	return ch
}

func (h *logStreamHook) unsubscribe(ch chan string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *logStreamHook) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
