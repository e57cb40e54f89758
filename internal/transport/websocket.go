// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	applog "seedscope/internal/log"
)

const (
	// WebSocketPath is the endpoint clients connect to.
	WebSocketPath = "/ws"

	broadcastQueue = 256
	writeTimeout   = time.Second
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

type wsClient struct {
	id   string
	conn *websocket.Conn
}

// WebSocketTransport implements the Transport interface for WebSocket connections.
// Every frame is written as JSON to all connected clients.
type WebSocketTransport struct {
	upgrader  websocket.Upgrader
	clients   map[string]*wsClient
	clientsMu sync.Mutex
	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	server    *http.Server
	listener  net.Listener
	dropped   atomic.Uint64

	log applog.Component
}

// NewWebSocketTransport starts a server on addr serving WebSocketPath.
func NewWebSocketTransport(addr string) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	wst := newWebSocketTransport()
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, wst.handleWebSocket)

	wst.listener = ln
	wst.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wst.wg.Add(1)
	go func() {
		defer wst.wg.Done()
		wst.log.Infof("serving %s on %s", WebSocketPath, ln.Addr())
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wst.log.Errorf("server error: %v", err)
		}
	}()

	return wst, nil
}

func newWebSocketTransport() *WebSocketTransport {
	wst := &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // visualizers are served from anywhere
			},
		},
		clients:   make(map[string]*wsClient),
		broadcast: make(chan any, broadcastQueue),
		done:      make(chan struct{}),
		log:       applog.Component("Transport[ws]"),
	}

	wst.wg.Add(1)
	go wst.handleBroadcasts()
	return wst
}

// Addr returns the listening address.
func (wst *WebSocketTransport) Addr() net.Addr {
	if wst.listener == nil {
		return nil
	}
	return wst.listener.Addr()
}

// Handler returns the upgrade handler for mounting on another server.
func (wst *WebSocketTransport) Handler() http.Handler {
	return http.HandlerFunc(wst.handleWebSocket)
}

// NumClients returns the number of connected clients.
func (wst *WebSocketTransport) NumClients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wst.log.Warnf("upgrade error: %v", err)
		return
	}

	c := &wsClient{id: uuid.NewString(), conn: conn}

	wst.clientsMu.Lock()
	select {
	case <-wst.done:
		wst.clientsMu.Unlock()
		conn.Close()
		return
	default:
	}
	wst.clients[c.id] = c
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	wst.log.Infof("client %s connected from %s, total: %d", c.id, r.RemoteAddr, total)

	// Clients only listen; reading detects the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.removeClient(c)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) removeClient(c *wsClient) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[c.id]
	delete(wst.clients, c.id)
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	c.conn.Close()
	if ok {
		wst.log.Infof("client %s disconnected, total: %d", c.id, total)
	}
}

// handleBroadcasts sends messages to all connected clients
func (wst *WebSocketTransport) handleBroadcasts() {
	defer wst.wg.Done()
	for {
		select {
		case data := <-wst.broadcast:
			wst.writeAll(data)
		case <-wst.done:
			return
		}
	}
}

func (wst *WebSocketTransport) writeAll(data any) {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()

	for id, client := range wst.clients {
		client.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := client.conn.WriteJSON(data); err != nil {
			wst.log.Warnf("error sending to client %s: %v", id, err)
			client.conn.Close()
			delete(wst.clients, id)
		}
	}
}

// Send queues data for broadcast. When the queue is full the frame is
// dropped.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return ErrClosed
	default:
	}

	select {
	case wst.broadcast <- data:
	default:
		wst.dropped.Add(1)
	}
	return nil
}

// Dropped returns the number of frames discarded on a full queue.
func (wst *WebSocketTransport) Dropped() uint64 {
	return wst.dropped.Load()
}

// Close disconnects all clients and shuts the server down.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		wst.log.Infof("closing server")

		wst.clientsMu.Lock()
		close(wst.done)
		for id, client := range wst.clients {
			client.conn.Close()
			delete(wst.clients, id)
		}
		wst.clientsMu.Unlock()

		if wst.server != nil {
			err = wst.server.Close()
		}
		wst.wg.Wait()
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
