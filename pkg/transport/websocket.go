package transport

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dbehnke/modem-emu/pkg/logger"
)

// wsConn exposes a WebSocket as a byte stream. Each modem write becomes one
// text message; incoming messages are read back to back.
type wsConn struct {
	conn   *websocket.Conn
	reader io.Reader
	wmu    sync.Mutex
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			_, r, err := c.conn.NextReader()
			if err != nil {
				return 0, err
			}
			c.reader = r
		}
		n, err := c.reader.Read(p)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error { return c.conn.Close() }

// WebSocketHandler serves the AT stream of instance {id} on a WebSocket.
// It expects to be mounted on a pattern carrying an {id} wildcard.
func WebSocketHandler(ctx context.Context, lookup Lookup, log *logger.Logger) http.Handler {
	log = log.WithComponent("transport.ws")
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("id"))
		if err != nil {
			http.Error(w, "invalid instance", http.StatusBadRequest)
			return
		}
		ep, ok := lookup(id)
		if !ok {
			http.Error(w, "unknown instance", http.StatusNotFound)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		log.Info("Guest connected", logger.Int("instance", id), logger.String("remote", r.RemoteAddr))
		go func() {
			if err := Serve(ctx, ep, &wsConn{conn: conn}, log); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("Guest connection failed", logger.Int("instance", id), logger.Error(err))
			}
			log.Info("Guest disconnected", logger.Int("instance", id))
		}()
	})
}
