package client

import (
	"bufio"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glidedeck/glidedeck/gesture"
	"github.com/glidedeck/glidedeck/input"
	"github.com/glidedeck/glidedeck/protocol"
)

const testToken = "test-token"

// fakeReceiver speaks just enough of the receiver protocol to exercise
// the client: line-based TCP with AUTH handling and a UDP socket on the
// same port.
type fakeReceiver struct {
	t   *testing.T
	ln  net.Listener
	udp *net.UDPConn

	rejectWith  string // when set, AUTH is rejected with this reason
	answerPings bool   // when set, PING gets a PONG back

	mu            sync.Mutex
	conns         []net.Conn
	closeOnAccept bool // when set, new connections are dropped before AUTH

	messages    chan protocol.Message
	datagrams   chan protocol.Datagram
	acceptTimes chan time.Time
}

func startFakeReceiver(t *testing.T) *fakeReceiver {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	udp, err := net.ListenUDP("udp", &net.UDPAddr{
		IP:   net.ParseIP("127.0.0.1"),
		Port: ln.Addr().(*net.TCPAddr).Port,
	})
	require.NoError(t, err)

	f := &fakeReceiver{
		t:           t,
		ln:          ln,
		udp:         udp,
		messages:    make(chan protocol.Message, 64),
		datagrams:   make(chan protocol.Datagram, 256),
		acceptTimes: make(chan time.Time, 64),
	}
	go f.acceptLoop()
	go f.udpLoop()
	t.Cleanup(f.close)
	return f
}

func (f *fakeReceiver) port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func (f *fakeReceiver) close() {
	_ = f.ln.Close()
	_ = f.udp.Close()
	f.mu.Lock()
	for _, c := range f.conns {
		_ = c.Close()
	}
	f.mu.Unlock()
}

// dropClients closes every accepted connection, simulating a receiver
// crash.
func (f *fakeReceiver) dropClients() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		_ = c.Close()
	}
	f.conns = nil
}

// rejectConnections makes every future accept close immediately, so
// connection attempts keep failing while their timing stays observable
// through acceptTimes.
func (f *fakeReceiver) rejectConnections() {
	f.mu.Lock()
	f.closeOnAccept = true
	f.mu.Unlock()
}

// sendToClients pushes a server-initiated message to every connection.
func (f *fakeReceiver) sendToClients(msg protocol.Message) {
	data, err := protocol.EncodeMessage(msg)
	require.NoError(f.t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		_, _ = c.Write(data)
	}
}

func (f *fakeReceiver) acceptLoop() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		select {
		case f.acceptTimes <- time.Now():
		default:
		}
		f.mu.Lock()
		reject := f.closeOnAccept
		if !reject {
			f.conns = append(f.conns, conn)
		}
		f.mu.Unlock()
		if reject {
			_ = conn.Close()
			continue
		}
		go f.serveConn(conn)
	}
}

func (f *fakeReceiver) serveConn(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		msg, err := protocol.DecodeMessage(scanner.Bytes())
		if err != nil {
			continue
		}

		if msg.Type == protocol.TypeAuth {
			reply := protocol.AuthResultOK()
			if f.rejectWith != "" {
				reply = protocol.AuthResultError(f.rejectWith)
			}
			data, _ := protocol.EncodeMessage(reply)
			_, _ = conn.Write(data)
		}

		if msg.Type == protocol.TypePing && f.answerPings {
			data, _ := protocol.EncodeMessage(protocol.Message{
				Type: protocol.TypePong,
				Time: msg.Time,
			})
			_, _ = conn.Write(data)
		}

		f.messages <- msg
	}
}

func (f *fakeReceiver) udpLoop() {
	buf := make([]byte, 1500)
	for {
		n, _, err := f.udp.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if dg, err := protocol.ParseDatagram(buf[:n]); err == nil {
			f.datagrams <- dg
		}
	}
}

func waitMessage(t *testing.T, f *fakeReceiver, msgType string) protocol.Message {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case msg := <-f.messages:
			if msg.Type == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s message", msgType)
			return protocol.Message{}
		}
	}
}

func nextAccept(t *testing.T, f *fakeReceiver) time.Time {
	t.Helper()
	select {
	case ts := <-f.acceptTimes:
		return ts
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a connection attempt")
		return time.Time{}
	}
}

// fastTiming shrinks the heartbeat and backoff windows so their
// behavior is observable within a test run.
func fastTiming() Timing {
	return Timing{
		HeartbeatInterval:   20 * time.Millisecond,
		HeartbeatTimeout:    10 * time.Millisecond,
		MaxMissedHeartbeats: 3,
		ReconnectBaseDelay:  40 * time.Millisecond,
		ReconnectMaxDelay:   160 * time.Millisecond,
	}
}

func waitState(t *testing.T, events <-chan Event, want State) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind == EventStateChanged && ev.State == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}

func TestConnect_Authenticates(t *testing.T) {
	f := startFakeReceiver(t)

	c := New("test-device")
	c.EnableAutoReconnect(false)
	defer c.Disconnect()

	require.NoError(t, c.Connect("127.0.0.1", f.port(), testToken))
	assert.True(t, c.IsConnected())
	assert.Equal(t, StateConnected, c.State())

	auth := waitMessage(t, f, protocol.TypeAuth)
	assert.Equal(t, testToken, auth.Token)
	assert.Equal(t, protocol.ProtocolVersion, auth.Version)
	assert.Equal(t, "test-device", auth.Device)
}

func TestConnect_AuthRejected(t *testing.T) {
	f := startFakeReceiver(t)
	f.rejectWith = "Invalid token"

	c := New("test-device")
	c.EnableAutoReconnect(false)

	err := c.Connect("127.0.0.1", f.port(), "wrong")
	require.ErrorIs(t, err, ErrAuthRejected)
	assert.Contains(t, err.Error(), "Invalid token")
	assert.False(t, c.IsConnected())
	assert.Equal(t, StateDisconnected, c.State())
}

func TestConnect_RefusedPort(t *testing.T) {
	c := New("test-device")
	c.EnableAutoReconnect(false)

	// a port nothing listens on
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	err = c.Connect("127.0.0.1", port, testToken)
	assert.Error(t, err)
	assert.False(t, c.IsConnected())
}

func TestSend_ControlMessagesOverTCP(t *testing.T) {
	f := startFakeReceiver(t)

	c := New("test-device")
	c.EnableAutoReconnect(false)
	defer c.Disconnect()
	require.NoError(t, c.Connect("127.0.0.1", f.port(), testToken))

	c.Send(gesture.Command{Kind: gesture.CmdClick, Button: input.MouseRight})
	msg := waitMessage(t, f, protocol.TypeClick)
	assert.Equal(t, "RIGHT", msg.Button)

	c.SendKey("Tab", "ALT")
	msg = waitMessage(t, f, protocol.TypeKey)
	assert.Equal(t, "Tab", msg.Code)
	assert.Equal(t, []string{"ALT"}, msg.Modifiers)

	c.SendText("hello")
	msg = waitMessage(t, f, protocol.TypeText)
	assert.Equal(t, "hello", msg.Text)

	c.SendClipboard("copied")
	msg = waitMessage(t, f, protocol.TypeClipboard)
	assert.Equal(t, "copied", msg.Text)
	assert.Equal(t, protocol.ClipboardSourceClient, msg.Source)
}

func TestSend_MotionOverUDP(t *testing.T) {
	f := startFakeReceiver(t)

	c := New("test-device")
	c.EnableAutoReconnect(false)
	defer c.Disconnect()
	require.NoError(t, c.Connect("127.0.0.1", f.port(), testToken))

	c.Send(gesture.Command{Kind: gesture.CmdMouseMove, DX: 5, DY: -3})

	select {
	case dg := <-f.datagrams:
		assert.Equal(t, testToken, dg.Token)
		assert.Equal(t, protocol.DatagramMouseMove, dg.Kind)
		assert.Equal(t, 5, dg.DX)
		assert.Equal(t, -3, dg.DY)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for mouse move datagram")
	}

	c.Send(gesture.Command{Kind: gesture.CmdScroll, DX: 0, DY: 2})

	select {
	case dg := <-f.datagrams:
		assert.Equal(t, protocol.DatagramScroll, dg.Kind)
		assert.Equal(t, 2, dg.DY)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for scroll datagram")
	}
}

func TestSend_WhileDisconnectedIsNoop(t *testing.T) {
	c := New("test-device")

	// must not panic or block
	c.Send(gesture.Command{Kind: gesture.CmdMouseMove, DX: 1, DY: 1})
	c.SendText("nobody home")
	assert.False(t, c.IsConnected())
}

func TestServerDrop_EmitsDisconnected(t *testing.T) {
	f := startFakeReceiver(t)

	c := New("test-device")
	c.EnableAutoReconnect(false)

	events := c.Subscribe()
	defer c.Unsubscribe(events)

	require.NoError(t, c.Connect("127.0.0.1", f.port(), testToken))
	waitState(t, events, StateConnected)

	f.dropClients()
	waitState(t, events, StateDisconnected)
	assert.False(t, c.IsConnected())
}

func TestServerDrop_StartsReconnectSequence(t *testing.T) {
	f := startFakeReceiver(t)

	c := New("test-device")
	events := c.Subscribe()
	defer c.Unsubscribe(events)

	require.NoError(t, c.Connect("127.0.0.1", f.port(), testToken))
	waitState(t, events, StateConnected)

	f.dropClients()
	waitState(t, events, StateReconnecting)

	// user-initiated disconnect aborts the sequence immediately
	c.Disconnect()
	waitState(t, events, StateDisconnected)
	assert.False(t, c.IsConnected())
	assert.Equal(t, StateDisconnected, c.State())
}

func TestReconnectDelay_DoublesThenCaps(t *testing.T) {
	timing := DefaultTiming()

	var seq []time.Duration
	delay := timing.ReconnectBaseDelay
	for i := 0; i < 7; i++ {
		seq = append(seq, delay)
		delay = nextReconnectDelay(delay, timing.ReconnectMaxDelay)
	}

	assert.Equal(t, []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
		30000 * time.Millisecond,
		30000 * time.Millisecond,
	}, seq)
}

func TestReconnect_BackoffDelaysGrow(t *testing.T) {
	f := startFakeReceiver(t)

	c := New("test-device")
	defer c.Disconnect()

	timing := fastTiming()
	timing.HeartbeatInterval = time.Second
	timing.HeartbeatTimeout = time.Second
	c.SetTiming(timing)

	events := c.Subscribe()
	defer c.Unsubscribe(events)

	require.NoError(t, c.Connect("127.0.0.1", f.port(), testToken))
	waitState(t, events, StateConnected)
	nextAccept(t, f) // the initial connection

	// every further attempt fails before AUTH, so the client keeps
	// backing off between attempts
	f.rejectConnections()
	f.dropClients()
	waitState(t, events, StateReconnecting)

	first := nextAccept(t, f)
	second := nextAccept(t, f)
	third := nextAccept(t, f)

	// attempt spacing is bounded below by the doubling backoff; upper
	// bounds would make the test hostage to scheduler jitter
	assert.GreaterOrEqual(t, second.Sub(first), 2*timing.ReconnectBaseDelay)
	assert.GreaterOrEqual(t, third.Sub(second), 4*timing.ReconnectBaseDelay)
}

func TestHeartbeat_MissedPongsForceDisconnect(t *testing.T) {
	f := startFakeReceiver(t) // never answers PING

	c := New("test-device")
	c.EnableAutoReconnect(false)
	c.SetTiming(fastTiming())

	events := c.Subscribe()
	defer c.Unsubscribe(events)

	require.NoError(t, c.Connect("127.0.0.1", f.port(), testToken))
	waitState(t, events, StateConnected)

	// three silent heartbeat windows force the disconnect
	waitState(t, events, StateDisconnected)
	assert.False(t, c.IsConnected())
}

func TestHeartbeat_PongsKeepConnectionAlive(t *testing.T) {
	f := startFakeReceiver(t)
	f.answerPings = true

	c := New("test-device")
	c.EnableAutoReconnect(false)
	defer c.Disconnect()
	c.SetTiming(fastTiming())

	require.NoError(t, c.Connect("127.0.0.1", f.port(), testToken))
	waitMessage(t, f, protocol.TypePing)

	// long enough for several missed windows if PONGs were ignored
	time.Sleep(250 * time.Millisecond)
	assert.True(t, c.IsConnected())
	assert.Equal(t, StateConnected, c.State())
}

func TestClipboardAndMacroEvents(t *testing.T) {
	f := startFakeReceiver(t)

	c := New("test-device")
	c.EnableAutoReconnect(false)
	defer c.Disconnect()

	events := c.Subscribe()
	defer c.Unsubscribe(events)

	require.NoError(t, c.Connect("127.0.0.1", f.port(), testToken))
	waitState(t, events, StateConnected)

	f.sendToClients(protocol.Message{
		Type:   protocol.TypeClipboard,
		Text:   "from desktop",
		Source: protocol.ClipboardSourceReceiver,
	})
	f.sendToClients(protocol.Message{
		Type:   protocol.TypeMacros,
		Macros: []protocol.MacroInfo{{ID: "m1", Name: "Copy"}},
	})

	var gotClipboard, gotMacros bool
	deadline := time.After(3 * time.Second)
	for !gotClipboard || !gotMacros {
		select {
		case ev := <-events:
			switch ev.Kind {
			case EventClipboard:
				assert.Equal(t, "from desktop", ev.Text)
				gotClipboard = true
			case EventMacros:
				require.Len(t, ev.Macros, 1)
				assert.Equal(t, "Copy", ev.Macros[0].Name)
				gotMacros = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for clipboard and macro events")
		}
	}
}

func TestParsePairing(t *testing.T) {
	p, err := ParsePairing([]byte(`{"ip":"192.168.1.20","port":50000,"token":"abc","ver":1}`))
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20", p.IP)
	assert.Equal(t, 50000, p.Port)
	assert.Equal(t, "abc", p.Token)

	_, err = ParsePairing([]byte(`{"port":50000,"token":"abc","ver":1}`))
	assert.Error(t, err)

	_, err = ParsePairing([]byte(`{"ip":"192.168.1.20","port":99999,"token":"abc","ver":1}`))
	assert.Error(t, err)

	_, err = ParsePairing([]byte(`{"ip":"192.168.1.20","port":50000,"token":"abc","ver":2}`))
	assert.Error(t, err)

	_, err = ParsePairing([]byte(`nonsense`))
	assert.Error(t, err)
}
