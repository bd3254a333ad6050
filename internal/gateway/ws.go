package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomasbasham/devtoolsd/internal/session"
	"github.com/tomasbasham/devtoolsd/internal/wire"
)

const (
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The extension is a local, same-origin browser context; the daemon only
	// ever listens on loopback, so the usual cross-site WS origin check would
	// just add friction without a meaningful security boundary here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage is one client->server frame over /ws, per spec section 4.7.
type wsMessage struct {
	Type string          `json:"type"` // "event", "recording", "trace"
	Data json.RawMessage `json:"data"`
}

type wsEventData struct {
	EventType wire.EventType  `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// handleWS upgrades to a bidirectional WebSocket session. The server pings
// periodically; the client is expected to pong. Outbound messages queue in a
// bounded channel; overflow closes the connection with a policy-violation
// code rather than blocking or silently dropping, so the extension can
// detect the condition and reconnect.
func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := g.sessionFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := newWSClient(conn, g.wsMaxQueue)
	go client.writeLoop()
	client.readLoop(sess)
}

type wsClient struct {
	conn    *websocket.Conn
	outbox  chan []byte
	closeCh chan struct{}
}

func newWSClient(conn *websocket.Conn, maxQueue int) *wsClient {
	return &wsClient{
		conn:    conn,
		outbox:  make(chan []byte, maxQueue),
		closeCh: make(chan struct{}),
	}
}

func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case msg, ok := <-c.outbox:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

// send enqueues msg for delivery. If the outbound buffer is already full,
// the connection is closed with a policy-violation code and the extension
// is expected to reconnect, per spec section 4.7.
func (c *wsClient) send(msg []byte) {
	select {
	case c.outbox <- msg:
	default:
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "outbound queue full"),
			time.Now().Add(wsWriteTimeout))
		close(c.closeCh)
	}
}

func (c *wsClient) readLoop(sess *session.Session) {
	defer close(c.outbox)

	c.conn.SetPongHandler(func(string) error { return nil })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "event":
			var ev wsEventData
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				continue
			}
			sess.Collectors.Extension.Ingest(ev.EventType, json.RawMessage(ev.Payload))
			sess.Touch()
		default:
			// recording/trace control messages are handled via the POST
			// routes; the WS channel is reserved for high-rate event
			// streaming per spec section 4.7.
		}
	}
}
