// Package client implements the mobile-side connection manager: the TCP
// control channel with authentication, heartbeat and automatic
// reconnection, and the UDP data channel for high-frequency pointer
// traffic.
package client

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glidedeck/glidedeck/gesture"
	"github.com/glidedeck/glidedeck/protocol"
	"github.com/glidedeck/glidedeck/utils"
)

const (
	dialTimeout    = 10 * time.Second
	authTimeout    = 10 * time.Second
	maxControlLine = 64 * 1024

	// bounded queues keep the gesture path from ever blocking on a
	// slow socket; overflow drops
	tcpQueueSize = 64
	udpQueueSize = 256
)

// Timing groups the heartbeat and reconnect tunables. Production runs
// use the defaults; tests shrink them to watch the behavior quickly.
type Timing struct {
	// HeartbeatInterval is the PING cadence; HeartbeatTimeout is how
	// long after each PING the answer is checked for. A connection is
	// declared dead after MaxMissedHeartbeats silent windows.
	HeartbeatInterval   time.Duration
	HeartbeatTimeout    time.Duration
	MaxMissedHeartbeats int

	// ReconnectBaseDelay is the first backoff; each further attempt
	// doubles it up to ReconnectMaxDelay.
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
}

// DefaultTiming returns the production timing values.
func DefaultTiming() Timing {
	return Timing{
		HeartbeatInterval:   5000 * time.Millisecond,
		HeartbeatTimeout:    3000 * time.Millisecond,
		MaxMissedHeartbeats: 3,
		ReconnectBaseDelay:  1000 * time.Millisecond,
		ReconnectMaxDelay:   30000 * time.Millisecond,
	}
}

// nextReconnectDelay doubles the backoff up to the cap.
func nextReconnectDelay(delay, max time.Duration) time.Duration {
	delay *= 2
	if delay > max {
		return max
	}
	return delay
}

// ErrAuthRejected wraps an AUTH_RESULT failure. Not retried: the token
// or version is wrong and retrying with the same credentials cannot
// succeed.
var ErrAuthRejected = errors.New("authentication rejected")

// ErrNotConnected is returned when sending without a live connection.
var ErrNotConnected = errors.New("not connected")

// State is the UI-visible connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// link bundles the sockets and queues of one established connection.
// Every loop goroutine holds the link it serves, so a reconnect's fresh
// link never races a dying one.
type link struct {
	tcp      net.Conn
	udp      *net.UDPConn
	tcpQueue chan []byte
	udpQueue chan []byte
	done     chan struct{}
	closer   sync.Once
}

func (l *link) close() {
	l.closer.Do(func() {
		close(l.done)
		_ = l.tcp.Close()
		if l.udp != nil {
			_ = l.udp.Close()
		}
	})
}

// Client is the connection manager. All exported methods are safe for
// concurrent use.
type Client struct {
	deviceLabel string

	mu   sync.Mutex
	link *link

	// last successful credentials, reused by the reconnect loop
	host  string
	port  int
	token string

	state         atomic.Int32
	connected     atomic.Bool
	reconnecting  atomic.Bool
	autoReconnect atomic.Bool

	lastPong atomic.Int64 // unix millis
	missed   atomic.Int32

	reconnectAbort chan struct{}

	timing Timing

	subs subscribers
}

// New creates a disconnected client. deviceLabel identifies this device
// in the receiver's session list.
func New(deviceLabel string) *Client {
	c := &Client{deviceLabel: deviceLabel, timing: DefaultTiming()}
	c.autoReconnect.Store(true)
	c.reconnectAbort = make(chan struct{})
	return c
}

// SetTiming replaces the timing tunables. Call before Connect; the
// running loops read the values set at connect time.
func (c *Client) SetTiming(t Timing) {
	c.timing = t
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// IsConnected reports whether a live authenticated connection exists.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Subscribe returns a channel of client events. Multiple subscribers
// are supported; each must be released with Unsubscribe.
func (c *Client) Subscribe() <-chan Event {
	return c.subs.subscribe()
}

// Unsubscribe releases a channel obtained from Subscribe.
func (c *Client) Unsubscribe(ch <-chan Event) {
	c.subs.unsubscribe(ch)
}

// EnableAutoReconnect toggles automatic reconnection after an
// unexpected disconnect.
func (c *Client) EnableAutoReconnect(enabled bool) {
	c.autoReconnect.Store(enabled)
}

// Connect opens the control channel, authenticates, opens the data
// channel and starts the background loops. On any failure the client
// is left disconnected and the error describes the first thing that
// went wrong.
func (c *Client) Connect(host string, port int, token string) error {
	c.disconnectQuietly()
	c.setTransientState(StateConnecting)

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	tcp, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		c.setTransientState(StateDisconnected)
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if t, ok := tcp.(*net.TCPConn); ok {
		_ = t.SetKeepAlive(true)
	}

	if err := c.handshake(tcp, token); err != nil {
		_ = tcp.Close()
		c.setTransientState(StateDisconnected)
		return err
	}

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		_ = tcp.Close()
		c.setTransientState(StateDisconnected)
		return fmt.Errorf("resolve udp %s: %w", addr, err)
	}
	udp, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		_ = tcp.Close()
		c.setTransientState(StateDisconnected)
		return fmt.Errorf("open udp socket: %w", err)
	}

	l := &link{
		tcp:      tcp,
		udp:      udp,
		tcpQueue: make(chan []byte, tcpQueueSize),
		udpQueue: make(chan []byte, udpQueueSize),
		done:     make(chan struct{}),
	}

	c.mu.Lock()
	c.link = l
	c.host, c.port, c.token = host, port, token
	c.mu.Unlock()

	c.lastPong.Store(time.Now().UnixMilli())
	c.missed.Store(0)
	c.connected.Store(true)
	c.reconnecting.Store(false)
	c.setState(StateConnected)

	go c.listenLoop(l)
	go c.heartbeatLoop(l)
	go c.tcpSendLoop(l)
	go c.udpSendLoop(l)

	utils.Info("connected to %s", addr)
	return nil
}

// handshake sends AUTH and requires a successful AUTH_RESULT as the
// first line back.
func (c *Client) handshake(tcp net.Conn, token string) error {
	auth := protocol.Message{
		Type:    protocol.TypeAuth,
		Token:   token,
		Version: protocol.ProtocolVersion,
		Device:  c.deviceLabel,
	}
	data, err := protocol.EncodeMessage(auth)
	if err != nil {
		return err
	}

	_ = tcp.SetDeadline(time.Now().Add(authTimeout))
	defer tcp.SetDeadline(time.Time{})

	if _, err := tcp.Write(data); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	reader := bufio.NewReaderSize(tcp, maxControlLine)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("read auth result: %w", err)
	}

	msg, err := protocol.DecodeMessage(line)
	if err != nil {
		return fmt.Errorf("auth result: %w", err)
	}
	if msg.Type != protocol.TypeAuthResult {
		return fmt.Errorf("unexpected %s message before auth result", msg.Type)
	}
	if !msg.IsSuccess() {
		if msg.Error != "" {
			return fmt.Errorf("%w: %s", ErrAuthRejected, msg.Error)
		}
		return ErrAuthRejected
	}
	return nil
}

// Send routes one command to the proper channel. MouseMove and Scroll
// go over UDP through the bounded sender queue; everything else is a
// control message queued for the TCP writer. Both paths return without
// blocking.
func (c *Client) Send(cmd gesture.Command) {
	if !c.connected.Load() {
		return
	}

	c.mu.Lock()
	l := c.link
	token := c.token
	c.mu.Unlock()
	if l == nil {
		return
	}

	switch cmd.Kind {
	case gesture.CmdMouseMove:
		c.enqueueUDP(l, protocol.EncodeMouseMove(token, cmd.DX, cmd.DY))
	case gesture.CmdScroll:
		c.enqueueUDP(l, protocol.EncodeScroll(token, cmd.DX, cmd.DY))
	case gesture.CmdClick:
		c.enqueueMessage(l, protocol.Message{Type: protocol.TypeClick, Button: string(cmd.Button)})
	case gesture.CmdMouseDown:
		c.enqueueMessage(l, protocol.Message{Type: protocol.TypeMouseDown, Button: string(cmd.Button)})
	case gesture.CmdMouseUp:
		c.enqueueMessage(l, protocol.Message{Type: protocol.TypeMouseUp, Button: string(cmd.Button)})
	case gesture.CmdKey:
		c.enqueueMessage(l, protocol.Message{Type: protocol.TypeKey, Code: cmd.Code, Modifiers: cmd.Modifiers})
	case gesture.CmdText:
		c.enqueueMessage(l, protocol.Message{Type: protocol.TypeText, Text: cmd.Text})
	case gesture.CmdClipboardPush:
		c.enqueueMessage(l, protocol.Message{
			Type:   protocol.TypeClipboard,
			Text:   cmd.Text,
			Source: protocol.ClipboardSourceClient,
		})
	case gesture.CmdGetMacros:
		c.enqueueMessage(l, protocol.Message{Type: protocol.TypeGetMacros})
	case gesture.CmdExecMacro:
		c.enqueueMessage(l, protocol.Message{Type: protocol.TypeExecMacro, ID: cmd.MacroID})
	case gesture.CmdMenuToggle:
		// client-local intent, nothing on the wire
	}
}

// SendKey sends a key press with optional modifiers.
func (c *Client) SendKey(code string, modifiers ...string) {
	c.Send(gesture.Command{Kind: gesture.CmdKey, Code: code, Modifiers: modifiers})
}

// SendText sends literal text to be typed on the receiver.
func (c *Client) SendText(text string) {
	c.Send(gesture.Command{Kind: gesture.CmdText, Text: text})
}

// SendClipboard pushes clipboard text to the receiver.
func (c *Client) SendClipboard(text string) {
	c.Send(gesture.Command{Kind: gesture.CmdClipboardPush, Text: text})
}

// RequestMacros asks for the macro list; the answer arrives as an
// EventMacros event.
func (c *Client) RequestMacros() {
	c.Send(gesture.Command{Kind: gesture.CmdGetMacros})
}

// ExecuteMacro runs a stored macro on the receiver.
func (c *Client) ExecuteMacro(id string) {
	c.Send(gesture.Command{Kind: gesture.CmdExecMacro, MacroID: id})
}

func (c *Client) enqueueMessage(l *link, msg protocol.Message) {
	data, err := protocol.EncodeMessage(msg)
	if err != nil {
		utils.Warn("encode %s: %v", msg.Type, err)
		return
	}
	select {
	case l.tcpQueue <- data:
	default:
		utils.Warn("control queue full, dropping %s", msg.Type)
	}
}

func (c *Client) enqueueUDP(l *link, data []byte) {
	select {
	case l.udpQueue <- data:
	default:
		// data channel is lossy anyway; dropping beats stalling the
		// gesture thread
	}
}

// tcpSendLoop owns all writes to the control socket.
func (c *Client) tcpSendLoop(l *link) {
	for {
		select {
		case <-l.done:
			return
		case data := <-l.tcpQueue:
			if _, err := l.tcp.Write(data); err != nil {
				utils.Warn("control send failed: %v", err)
			}
		}
	}
}

// udpSendLoop is the single dedicated datagram sender. Send errors are
// swallowed: the data channel is best-effort by contract.
func (c *Client) udpSendLoop(l *link) {
	for {
		select {
		case <-l.done:
			return
		case data := <-l.udpQueue:
			_, _ = l.udp.Write(data)
		}
	}
}

// listenLoop reads control messages until the stream breaks, then runs
// the shared disconnect path.
func (c *Client) listenLoop(l *link) {
	defer c.handleDisconnection(l)

	scanner := bufio.NewScanner(l.tcp)
	scanner.Buffer(make([]byte, 4096), maxControlLine)

	for scanner.Scan() {
		msg, err := protocol.DecodeMessage(scanner.Bytes())
		if err != nil {
			utils.Verbose("dropping malformed server message: %v", err)
			continue
		}

		switch msg.Type {
		case protocol.TypePong:
			c.lastPong.Store(time.Now().UnixMilli())
			c.missed.Store(0)
		case protocol.TypeClipboard:
			if msg.Text != "" {
				c.subs.publish(Event{Kind: EventClipboard, Text: msg.Text})
			}
		case protocol.TypeMacros:
			c.subs.publish(Event{Kind: EventMacros, Macros: msg.Macros})
		default:
			utils.Verbose("ignoring unexpected %s message", msg.Type)
		}
	}

	if err := scanner.Err(); err != nil && c.connected.Load() {
		utils.Verbose("control channel closed: %v", err)
	}
}

// heartbeatLoop sends a PING every interval and counts intervals that
// pass without any PONG. Three misses force a disconnect.
func (c *Client) heartbeatLoop(l *link) {
	t := c.timing
	for {
		select {
		case <-l.done:
			return
		case <-time.After(t.HeartbeatInterval):
		}
		if !c.connected.Load() {
			return
		}

		c.enqueueMessage(l, protocol.Message{
			Type: protocol.TypePing,
			Time: time.Now().UnixMilli(),
		})

		select {
		case <-l.done:
			return
		case <-time.After(t.HeartbeatTimeout):
		}

		sinceLastPong := time.Duration(time.Now().UnixMilli()-c.lastPong.Load()) * time.Millisecond
		if sinceLastPong > t.HeartbeatInterval+t.HeartbeatTimeout {
			missed := c.missed.Add(1)
			utils.Warn("missed heartbeat %d/%d", missed, t.MaxMissedHeartbeats)
			if int(missed) >= t.MaxMissedHeartbeats {
				utils.Error("connection lost: %d heartbeats missed", missed)
				c.handleDisconnection(l)
				return
			}
		}
	}
}

// handleDisconnection is the single authoritative disconnect path. The
// listener and heartbeat loops may both arrive here; the CAS guarantees
// the teardown and the state event fire exactly once per connection.
func (c *Client) handleDisconnection(l *link) {
	c.mu.Lock()
	current := c.link == l
	c.mu.Unlock()
	if !current || !c.connected.CompareAndSwap(true, false) {
		return
	}

	l.close()
	c.setState(StateDisconnected)

	c.mu.Lock()
	host, token := c.host, c.token
	c.mu.Unlock()

	if c.autoReconnect.Load() && host != "" && token != "" {
		go c.attemptReconnect()
	}
}

// attemptReconnect retries Connect with exponential backoff until it
// succeeds, auto-reconnect is disabled, or Disconnect aborts it. Only
// one sequence runs at a time.
func (c *Client) attemptReconnect() {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	c.setState(StateReconnecting)

	c.mu.Lock()
	abort := c.reconnectAbort
	c.mu.Unlock()

	delay := c.timing.ReconnectBaseDelay
	attempt := 0

	for c.autoReconnect.Load() && !c.connected.Load() {
		attempt++
		utils.Info("reconnection attempt %d in %v", attempt, delay)

		select {
		case <-abort:
			// Disconnect was called; autoReconnect is already false
		case <-time.After(delay):
		}
		if !c.autoReconnect.Load() || c.connected.Load() {
			break
		}

		c.mu.Lock()
		host, port, token := c.host, c.port, c.token
		c.mu.Unlock()

		if err := c.Connect(host, port, token); err != nil {
			utils.Verbose("reconnect attempt %d failed: %v", attempt, err)
			if errors.Is(err, ErrAuthRejected) {
				// credentials are no longer valid, retrying is pointless
				utils.Error("reconnect aborted: %v", err)
				break
			}
		} else {
			utils.Info("reconnected after %d attempts", attempt)
			return
		}

		delay = nextReconnectDelay(delay, c.timing.ReconnectMaxDelay)
	}

	c.reconnecting.Store(false)
	if !c.connected.Load() {
		c.setState(StateDisconnected)
	}
}

// Disconnect is the user-initiated teardown: auto-reconnect is disabled
// and any in-flight reconnect sequence aborts immediately.
func (c *Client) Disconnect() {
	c.autoReconnect.Store(false)

	c.mu.Lock()
	close(c.reconnectAbort)
	c.reconnectAbort = make(chan struct{})
	c.mu.Unlock()

	c.mu.Lock()
	l := c.link
	c.link = nil
	c.mu.Unlock()

	c.connected.Store(false)
	c.reconnecting.Store(false)
	if l != nil {
		l.close()
	}
	c.setState(StateDisconnected)
}

// disconnectQuietly tears down any previous link without emitting a
// state transition; Connect calls it before dialing.
func (c *Client) disconnectQuietly() {
	c.mu.Lock()
	l := c.link
	c.link = nil
	c.mu.Unlock()

	c.connected.Store(false)
	if l != nil {
		l.close()
	}
}

// setState publishes the transition to subscribers when it changes.
func (c *Client) setState(s State) {
	if c.state.Swap(int32(s)) != int32(s) {
		c.subs.publish(Event{Kind: EventStateChanged, State: s})
	}
}

// setTransientState is setState except during a reconnect sequence,
// which owns the visible state until it resolves. Keeps the UI from
// flapping between Reconnecting and Connecting/Disconnected on every
// failed attempt.
func (c *Client) setTransientState(s State) {
	if c.reconnecting.Load() {
		return
	}
	c.setState(s)
}
