// Package receiver implements the desktop side: the TCP/UDP host,
// session tracking with liveness, and the dispatch of authenticated
// commands into the input injector.
package receiver

import (
	"net"
	"sync"
	"time"

	"github.com/glidedeck/glidedeck/protocol"
	"github.com/glidedeck/glidedeck/utils"
)

// SessionTimeout is how long a session may stay silent before the
// cleanup sweep reclaims it.
const SessionTimeout = 5 * time.Minute

// Session is one client connection across both channels. Field access
// goes through the methods; the session's own mutex covers them so the
// TCP reader, the UDP receiver and the sweep never race.
type Session struct {
	Token string

	mu            sync.Mutex
	conn          net.Conn
	tcpEndpoint   string
	udpEndpoint   string
	authenticated bool
	version       int
	deviceLabel   string
	lastActivity  time.Time
}

func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *Session) DeviceLabel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceLabel
}

func (s *Session) TCPEndpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tcpEndpoint
}

func (s *Session) UDPEndpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.udpEndpoint
}

// UpdateActivity stamps the liveness clock; every accepted message
// calls it.
func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

func (s *Session) timedOut(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActivity) > timeout
}

// Send writes one control message to the client, best-effort.
func (s *Session) Send(msg protocol.Message) error {
	data, err := protocol.EncodeMessage(msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	_, err = s.conn.Write(data)
	return err
}

func (s *Session) closeConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// SessionManager owns the session indexes. It is the only mutator of
// the token and UDP-endpoint maps, and every map access holds its
// mutex.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	byUDP    map[string]*Session

	// injectable clock so the reap sweep is testable
	now func() time.Time

	onConnected    func(*Session)
	onDisconnected func(*Session)
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		byUDP:    make(map[string]*Session),
		now:      time.Now,
	}
}

// SetNotify registers the connected/disconnected observers (the host
// uses them for the client counter and log stream). Must be called
// before the first session exists.
func (m *SessionManager) SetNotify(connected, disconnected func(*Session)) {
	m.onConnected = connected
	m.onDisconnected = disconnected
}

// CreateSession registers a new pending, unauthenticated session. A
// prior session under the same token is evicted first: the token space
// is single-use per run, so a fresh AUTH supersedes the old client.
func (m *SessionManager) CreateSession(token string, conn net.Conn, tcpEndpoint string) *Session {
	m.RemoveSession(token)

	s := &Session{
		Token:        token,
		conn:         conn,
		tcpEndpoint:  tcpEndpoint,
		lastActivity: m.now(),
	}

	m.mu.Lock()
	m.sessions[token] = s
	m.mu.Unlock()

	return s
}

// AuthenticateSession marks a pending session authenticated and fires
// the connected notification.
func (m *SessionManager) AuthenticateSession(token string, version int, deviceLabel string) {
	m.mu.Lock()
	s := m.sessions[token]
	m.mu.Unlock()
	if s == nil {
		return
	}

	s.mu.Lock()
	s.authenticated = true
	s.version = version
	s.deviceLabel = deviceLabel
	s.lastActivity = m.now()
	s.mu.Unlock()

	if m.onConnected != nil {
		m.onConnected(s)
	}
}

func (m *SessionManager) GetSession(token string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[token]
}

func (m *SessionManager) GetSessionByUDPEndpoint(endpoint string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byUDP[endpoint]
}

// RegisterUDPEndpoint binds the source address of the first valid
// datagram to the session, so later lookups can go by endpoint.
func (m *SessionManager) RegisterUDPEndpoint(s *Session, endpoint string) {
	s.mu.Lock()
	s.udpEndpoint = endpoint
	s.mu.Unlock()

	m.mu.Lock()
	m.byUDP[endpoint] = s
	m.mu.Unlock()

	utils.Verbose("bound udp endpoint %s to session %s", endpoint, s.DeviceLabel())
}

// RemoveSession closes the session's stream and drops both index
// entries. Safe to call for tokens with no session.
func (m *SessionManager) RemoveSession(token string) {
	m.mu.Lock()
	s := m.sessions[token]
	if s != nil {
		delete(m.sessions, token)
		if ep := s.UDPEndpoint(); ep != "" {
			delete(m.byUDP, ep)
		}
	}
	m.mu.Unlock()

	if s == nil {
		return
	}

	wasAuthenticated := s.IsAuthenticated()
	s.closeConn()
	if wasAuthenticated && m.onDisconnected != nil {
		m.onDisconnected(s)
	}
}

// RemoveIfCurrent removes the session only if it is still the one
// registered under its token; a replacement session made by a newer
// connection survives.
func (m *SessionManager) RemoveIfCurrent(s *Session) {
	m.mu.Lock()
	current := m.sessions[s.Token] == s
	m.mu.Unlock()
	if current {
		m.RemoveSession(s.Token)
	}
}

// CleanupTimedOutSessions reaps sessions silent for longer than
// timeout. It runs on a timer so peers that vanished without closing
// the stream (a phone going to sleep) are still reclaimed.
func (m *SessionManager) CleanupTimedOutSessions(timeout time.Duration) int {
	now := m.now()

	m.mu.Lock()
	var stale []*Session
	for _, s := range m.sessions {
		if s.timedOut(now, timeout) {
			stale = append(stale, s)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		utils.Info("session timed out: %s (%s)", s.DeviceLabel(), s.TCPEndpoint())
		m.RemoveIfCurrent(s)
	}
	return len(stale)
}

// ActiveCount is the number of authenticated sessions.
func (m *SessionManager) ActiveCount() int {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	count := 0
	for _, s := range sessions {
		if s.IsAuthenticated() {
			count++
		}
	}
	return count
}

// AllSessions snapshots the current session list.
func (m *SessionManager) AllSessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}
