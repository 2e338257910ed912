package receiver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/glidedeck/glidedeck/input"
	"github.com/glidedeck/glidedeck/macros"
	"github.com/glidedeck/glidedeck/protocol"
	"github.com/glidedeck/glidedeck/utils"
)

const (
	// maxControlLine bounds a single control message; anything longer is
	// a broken or hostile peer.
	maxControlLine = 64 * 1024

	// rejectedSourceCacheSize caps the log-once cache for addresses that
	// send datagrams with a bad token.
	rejectedSourceCacheSize = 512
)

// Config carries the host's startup options.
type Config struct {
	BindIP     string // empty binds all interfaces
	Port       int
	MacrosPath string // empty disables the macro store

	SessionTimeout  time.Duration
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Port:            protocol.DefaultPort,
		SessionTimeout:  SessionTimeout,
		CleanupInterval: time.Minute,
	}
}

// PairingInfo is the JSON payload rendered as a QR code for the phone
// to scan.
type PairingInfo struct {
	IP      string `json:"ip"`
	Port    int    `json:"port"`
	Token   string `json:"token"`
	Version int    `json:"ver"`
}

// Host runs the receiver: the TCP control listener, the UDP data
// listener, the session registry and the periodic session sweep. One
// token is issued per run; every client must present it on both
// channels.
type Host struct {
	cfg      Config
	token    string
	sessions *SessionManager
	dispatch *Dispatcher
	store    *macros.Store

	registry *prometheus.Registry
	metrics  *Metrics

	tcpLn   net.Listener
	udpConn *net.UDPConn

	// addresses already reported for sending a bad token, so a spoofing
	// or stale peer cannot flood the log
	rejectedSources *lru.Cache[string, struct{}]

	// every open control connection, so Stop can cut off peers that
	// never authenticated
	connMu sync.Mutex
	conns  map[net.Conn]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Start binds both listeners and launches the host loops.
func Start(cfg Config, injector input.Injector) (*Host, error) {
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = SessionTimeout
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}

	rejected, err := lru.New[string, struct{}](rejectedSourceCacheSize)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	h := &Host{
		cfg:             cfg,
		token:           uuid.NewString(),
		sessions:        NewSessionManager(),
		dispatch:        NewDispatcher(injector),
		registry:        registry,
		metrics:         newMetrics(registry),
		rejectedSources: rejected,
		conns:           make(map[net.Conn]struct{}),
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.sessions.SetNotify(
		func(s *Session) {
			h.metrics.ConnectedClients.Inc()
			utils.Info("client connected: %s (%s)", s.DeviceLabel(), s.TCPEndpoint())
		},
		func(s *Session) {
			h.metrics.ConnectedClients.Dec()
			utils.Info("client disconnected: %s (%s)", s.DeviceLabel(), s.TCPEndpoint())
		},
	)

	if cfg.MacrosPath != "" {
		store, err := macros.Open(h.ctx, cfg.MacrosPath)
		if err != nil {
			h.cancel()
			return nil, err
		}
		h.store = store
	}

	addr := fmt.Sprintf("%s:%d", cfg.BindIP, cfg.Port)
	h.tcpLn, err = net.Listen("tcp", addr)
	if err != nil {
		h.cancel()
		h.closeResources()
		return nil, fmt.Errorf("listen tcp %s: %w", addr, err)
	}

	udpAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", cfg.BindIP, h.Port()))
	if err != nil {
		h.cancel()
		h.closeResources()
		return nil, err
	}
	h.udpConn, err = net.ListenUDP("udp", udpAddr)
	if err != nil {
		h.cancel()
		h.closeResources()
		return nil, fmt.Errorf("listen udp %s: %w", udpAddr, err)
	}

	h.wg.Add(3)
	go h.acceptLoop()
	go h.udpLoop()
	go h.cleanupLoop()

	utils.Info("receiver listening on %s (tcp+udp)", h.tcpLn.Addr())
	return h, nil
}

// Token is the pairing token for this run.
func (h *Host) Token() string { return h.token }

// Port is the bound TCP port (resolves port 0 to the actual port).
func (h *Host) Port() int {
	return h.tcpLn.Addr().(*net.TCPAddr).Port
}

// Registry exposes the host's metric registry to the status server.
func (h *Host) Registry() *prometheus.Registry { return h.registry }

// ActiveSessions is the number of authenticated clients.
func (h *Host) ActiveSessions() int { return h.sessions.ActiveCount() }

// Pairing assembles the payload the phone scans to connect.
func (h *Host) Pairing() (PairingInfo, error) {
	ip, err := utils.BestLocalIP()
	if err != nil {
		return PairingInfo{}, err
	}
	return PairingInfo{
		IP:      ip,
		Port:    h.Port(),
		Token:   h.token,
		Version: protocol.ProtocolVersion,
	}, nil
}

// PairingJSON is Pairing marshaled for QR rendering.
func (h *Host) PairingJSON() (string, error) {
	info, err := h.Pairing()
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(info)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// BroadcastClipboard pushes desktop clipboard text to every
// authenticated client, tagged with the receiver source so clients do
// not echo it back.
func (h *Host) BroadcastClipboard(text string) {
	msg := protocol.Message{
		Type:   protocol.TypeClipboard,
		Text:   text,
		Source: protocol.ClipboardSourceReceiver,
	}
	for _, s := range h.sessions.AllSessions() {
		if !s.IsAuthenticated() {
			continue
		}
		if err := s.Send(msg); err != nil {
			utils.Verbose("clipboard push to %s failed: %v", s.TCPEndpoint(), err)
		}
	}
}

// Stop shuts down both listeners and waits for the loops to drain. The
// macro store closes only after the connection goroutines are gone, so
// an in-flight macro execution never sees a closed database.
func (h *Host) Stop() {
	h.cancel()
	h.closeListeners()
	for _, s := range h.sessions.AllSessions() {
		h.sessions.RemoveSession(s.Token)
	}

	h.connMu.Lock()
	for conn := range h.conns {
		_ = conn.Close()
	}
	h.connMu.Unlock()

	h.wg.Wait()
	if h.store != nil {
		_ = h.store.Close()
	}
	utils.Info("receiver stopped")
}

func (h *Host) trackConn(conn net.Conn) {
	h.connMu.Lock()
	h.conns[conn] = struct{}{}
	h.connMu.Unlock()
}

func (h *Host) untrackConn(conn net.Conn) {
	h.connMu.Lock()
	delete(h.conns, conn)
	h.connMu.Unlock()
}

// closeResources backs out a partially started host; Stop sequences the
// same teardown itself.
func (h *Host) closeResources() {
	h.closeListeners()
	if h.store != nil {
		_ = h.store.Close()
	}
}

func (h *Host) closeListeners() {
	if h.tcpLn != nil {
		_ = h.tcpLn.Close()
	}
	if h.udpConn != nil {
		_ = h.udpConn.Close()
	}
}

func (h *Host) acceptLoop() {
	defer h.wg.Done()
	for {
		conn, err := h.tcpLn.Accept()
		if err != nil {
			if h.ctx.Err() != nil {
				return
			}
			utils.Verbose("accept failed: %v", err)
			continue
		}
		h.wg.Add(1)
		go h.handleConn(conn)
	}
}

// handleConn reads newline-delimited control messages for the life of
// one client connection. Nothing past AUTH is acted on until the
// session authenticates.
func (h *Host) handleConn(conn net.Conn) {
	defer h.wg.Done()
	defer conn.Close()
	h.trackConn(conn)
	defer h.untrackConn(conn)

	remote := conn.RemoteAddr().String()
	utils.Verbose("control connection from %s", remote)

	var session *Session
	defer func() {
		if session != nil {
			h.sessions.RemoveIfCurrent(session)
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxControlLine)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		msg, err := protocol.DecodeMessage(line)
		if err != nil {
			utils.Verbose("bad control message from %s: %v", remote, err)
			continue
		}

		if msg.Type == protocol.TypeAuth {
			s, err := h.handleAuth(conn, remote, msg)
			if err != nil {
				utils.Warn("auth from %s rejected: %v", remote, err)
				return
			}
			session = s
			continue
		}

		if session == nil || !session.IsAuthenticated() {
			utils.Verbose("dropping %s from unauthenticated %s", msg.Type, remote)
			continue
		}

		session.UpdateActivity()
		h.handleMessage(session, msg)
	}

	if err := scanner.Err(); err != nil && h.ctx.Err() == nil {
		utils.Verbose("control connection %s read error: %v", remote, err)
	}
}

// handleAuth validates the token and protocol version, answering with
// AUTH_RESULT either way. The error strings are part of the wire
// contract; clients display them verbatim.
func (h *Host) handleAuth(conn net.Conn, remote string, msg protocol.Message) (*Session, error) {
	reject := func(reason string) (*Session, error) {
		h.metrics.AuthFailures.Inc()
		data, _ := protocol.EncodeMessage(protocol.AuthResultError(reason))
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		_, _ = conn.Write(data)
		return nil, errors.New(reason)
	}

	if msg.Token != h.token {
		return reject("Invalid token")
	}
	if msg.Version != protocol.ProtocolVersion {
		return reject("Version mismatch. Please update the app.")
	}

	session := h.sessions.CreateSession(h.token, conn, remote)
	h.sessions.AuthenticateSession(h.token, msg.Version, msg.Device)

	if err := session.Send(protocol.AuthResultOK()); err != nil {
		h.sessions.RemoveIfCurrent(session)
		return nil, fmt.Errorf("send auth result: %w", err)
	}
	return session, nil
}

func (h *Host) handleMessage(session *Session, msg protocol.Message) {
	switch msg.Type {
	case protocol.TypePing:
		reply := protocol.Message{Type: protocol.TypePong, Time: time.Now().UnixMilli()}
		if err := session.Send(reply); err != nil {
			utils.Verbose("pong to %s failed: %v", session.TCPEndpoint(), err)
		}

	case protocol.TypeGetMacros:
		h.sendMacroList(session)

	case protocol.TypeExecMacro:
		h.execMacro(session, msg.ID)

	default:
		if err := h.dispatch.DispatchMessage(msg); err != nil {
			utils.Verbose("dispatch %s failed: %v", msg.Type, err)
			return
		}
		h.metrics.Commands.WithLabelValues(msg.Type).Inc()
	}
}

func (h *Host) sendMacroList(session *Session) {
	infos := []protocol.MacroInfo{}
	if h.store != nil {
		list, err := h.store.List(h.ctx)
		if err != nil {
			utils.Error("list macros: %v", err)
			return
		}
		for _, m := range list {
			infos = append(infos, protocol.MacroInfo{ID: m.ID, Name: m.Name})
		}
	}

	reply := protocol.Message{Type: protocol.TypeMacros, Macros: infos}
	if err := session.Send(reply); err != nil {
		utils.Verbose("macro list to %s failed: %v", session.TCPEndpoint(), err)
	}
}

func (h *Host) execMacro(session *Session, id string) {
	if h.store == nil {
		utils.Verbose("macro %s requested but no store is configured", id)
		return
	}
	if err := h.store.Execute(h.ctx, id, h.dispatch.injector); err != nil {
		utils.Warn("execute macro %s: %v", id, err)
		return
	}
	h.metrics.Commands.WithLabelValues(protocol.TypeExecMacro).Inc()
}

// udpLoop receives motion datagrams. The token prefix is checked before
// anything else is parsed; packets from unknown sources are dropped and
// each offending address is logged once.
func (h *Host) udpLoop() {
	defer h.wg.Done()

	buf := make([]byte, 1500)
	for {
		n, addr, err := h.udpConn.ReadFromUDP(buf)
		if err != nil {
			if h.ctx.Err() != nil {
				return
			}
			utils.Verbose("udp read failed: %v", err)
			continue
		}

		pkt := buf[:n]
		sep := bytes.IndexByte(pkt, '|')
		if sep < 0 || string(pkt[:sep]) != h.token {
			h.noteRejectedSource(addr.String())
			continue
		}

		dg, err := protocol.ParseDatagram(pkt)
		if err != nil {
			utils.Verbose("bad datagram from %s: %v", addr, err)
			continue
		}

		endpoint := addr.String()
		session := h.sessions.GetSessionByUDPEndpoint(endpoint)
		if session == nil {
			session = h.sessions.GetSession(dg.Token)
			if session == nil || !session.IsAuthenticated() {
				h.noteRejectedSource(endpoint)
				continue
			}
			h.sessions.RegisterUDPEndpoint(session, endpoint)
		}

		session.UpdateActivity()
		h.dispatch.DispatchDatagram(dg)

		kind := "move"
		if dg.Kind == protocol.DatagramScroll {
			kind = "scroll"
		}
		h.metrics.Datagrams.WithLabelValues(kind).Inc()
	}
}

func (h *Host) noteRejectedSource(endpoint string) {
	h.metrics.RejectedDatagrams.Inc()
	if _, seen := h.rejectedSources.Get(endpoint); seen {
		return
	}
	h.rejectedSources.Add(endpoint, struct{}{})
	utils.Warn("dropping datagrams from %s: bad token", endpoint)
}

func (h *Host) cleanupLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			if n := h.sessions.CleanupTimedOutSessions(h.cfg.SessionTimeout); n > 0 {
				utils.Verbose("reaped %d timed-out session(s)", n)
			}
		}
	}
}
