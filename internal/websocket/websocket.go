package websocket_client

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	bufferSize = 64
	writeWait  = 10 * time.Second

	// A peer that answers no ping within pongWait is dropped.
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type WebsocketClient interface {
	Listen(context.Context)
	HandleConnection(w http.ResponseWriter, r *http.Request) error
	Broadcast([]byte)
	Shutdown() error
}

var _ WebsocketClient = &websocketClient{}

type websocketClient struct {
	log         *slog.Logger
	upgrader    websocket.Upgrader
	connections map[*websocket.Conn]bool
	broadcast   chan []byte
	register    chan *websocket.Conn
	unregister  chan *websocket.Conn
	pongWait    time.Duration
	pingPeriod  time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewWebsocketClient(log *slog.Logger) WebsocketClient {
	return &websocketClient{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*websocket.Conn]bool),
		broadcast:   make(chan []byte, bufferSize),
		register:    make(chan *websocket.Conn, bufferSize),
		unregister:  make(chan *websocket.Conn, bufferSize),
		pongWait:    pongWait,
		pingPeriod:  pingPeriod,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Listen owns the connection set and is the only writer to every connection.
// It returns when ctx is done or Shutdown is called, closing every open
// connection.
func (c *websocketClient) Listen(ctx context.Context) {
	defer close(c.doneCh)
	defer c.closeAll()

	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case conn := <-c.register:
			if _, ok := c.connections[conn]; ok {
				c.log.Info("not registering already registered connection", "address", conn.RemoteAddr().String())
			} else {
				c.log.Info("registered connection", "address", conn.RemoteAddr().String())
				c.connections[conn] = true
			}
		case conn := <-c.unregister:
			c.remove(conn)
		case <-ticker.C:
			for conn := range c.connections {
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					c.log.Info("ping failed", "address", conn.RemoteAddr().String(), "err", err)
					c.remove(conn)
				}
			}
		case message := <-c.broadcast:
			for conn := range c.connections {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					c.log.Info("broadcast message failed", "address", conn.RemoteAddr().String(), "err", err)
					c.remove(conn)
				}
			}
		}
	}
}

func (c *websocketClient) remove(conn *websocket.Conn) {
	if _, ok := c.connections[conn]; !ok {
		return
	}
	c.log.Info("unregistered connection", "address", conn.RemoteAddr().String())
	delete(c.connections, conn)
	conn.Close()
}

func (c *websocketClient) closeAll() {
	for conn := range c.connections {
		conn.Close()
		delete(c.connections, conn)
	}
}

func (c *websocketClient) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return errors.Wrap(err, "failed to upgrade http connection to websocket")
	}

	select {
	case c.register <- conn:
	case <-c.doneCh:
		conn.Close()
		return errors.New("websocket client is shut down")
	}

	go c.readLoop(conn)
	return nil
}

// readLoop drains incoming frames so that control messages are handled, and
// unregisters the connection once the peer goes away.
func (c *websocketClient) readLoop(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(c.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	select {
	case c.unregister <- conn:
	case <-c.doneCh:
	}
}

// Broadcast queues message for every connection. Messages are dropped when
// the queue is full or the client has shut down.
func (c *websocketClient) Broadcast(message []byte) {
	select {
	case <-c.doneCh:
	case c.broadcast <- message:
	default:
		c.log.Warn("dropping websocket message, queue is full")
	}
}

// Shutdown stops Listen and waits for it to close all connections.
func (c *websocketClient) Shutdown() error {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	<-c.doneCh
	return nil
}
