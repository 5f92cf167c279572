package channel

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Frame is the wire message of the relay protocol: the full document text
// tagged with how it left the sender. Relays rebroadcast commits to the
// other participants as changes.
type Frame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const (
	FrameChange = "change"
	FrameCommit = "commit"
)

// WSClient connects a session to a relay server over a websocket. A read
// loop goroutine dispatches incoming frames to the change callback;
// Commit writes commit frames.
type WSClient struct {
	log  *zap.Logger
	conn *websocket.Conn
	done chan struct{}

	mu       sync.Mutex
	onChange func(text string)
	closed   bool
}

var _ Remote = (*WSClient)(nil)

// DialWS connects to a relay server and starts the read loop. A nil
// logger disables logging.
func DialWS(url string, log *zap.Logger) (*WSClient, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &WSClient{log: log, conn: conn, done: make(chan struct{})}
	go c.readLoop()
	return c, nil
}

// OnRemoteChange registers the callback for document texts arriving from
// the relay. The callback runs on the read loop goroutine.
func (c *WSClient) OnRemoteChange(fn func(text string)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Commit publishes the local document text to the relay.
func (c *WSClient) Commit(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.conn.WriteJSON(Frame{Type: FrameCommit, Text: text})
}

// Close sends a close frame, tears down the connection, and waits for the
// read loop to exit.
func (c *WSClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteMessage(websocket.CloseMessage, msg)
	c.mu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}

func (c *WSClient) readLoop() {
	defer close(c.done)
	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.log.Debug("read loop ended", zap.Error(err))
			}
			return
		}
		switch f.Type {
		case FrameChange, FrameCommit:
			c.mu.Lock()
			fn := c.onChange
			c.mu.Unlock()
			if fn != nil {
				fn(f.Text)
			}
		default:
			c.log.Debug("unknown frame type", zap.String("type", f.Type))
		}
	}
}

// Relay is an http.Handler that upgrades connections to websockets and
// rebroadcasts each participant's frames to all the others. It carries no
// document state; late joiners receive text on the next commit.
type Relay struct {
	log      *zap.Logger
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewRelay returns a relay backed by a fresh hub. A nil logger disables
// logging.
func NewRelay(log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{
		log: log,
		hub: NewHub(log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		rl.log.Error("upgrade failed", zap.Error(err))
		return
	}
	member := rl.hub.Join(r.RemoteAddr)

	// Fan-in from other members arrives on their read goroutines.
	var writeMu sync.Mutex
	member.OnRemoteChange(func(text string) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(Frame{Type: FrameChange, Text: text}); err != nil {
			rl.log.Debug("relay write failed", zap.Error(err))
		}
	})

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			break
		}
		if f.Type != FrameChange && f.Type != FrameCommit {
			rl.log.Debug("unknown frame type", zap.String("type", f.Type))
			continue
		}
		if err := member.Commit(f.Text); err != nil {
			break
		}
	}
	_ = member.Close()
	_ = conn.Close()
}
