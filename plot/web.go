package plot

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

//go:embed index.html
var indexHTML []byte

const (
	writeWait   = 2 * time.Second
	clientQueue = 4
)

// Layout describes the plot axes. It is sent to every client on connect.
type Layout struct {
	Title  string  `json:"title"`
	XLabel string  `json:"x_label"`
	YLabel string  `json:"y_label"`
	XMin   float64 `json:"x_min"`
	XMax   float64 `json:"x_max"`
	YMin   float64 `json:"y_min"`
	YMax   float64 `json:"y_max"`
}

// WebConfig holds the settings of the browser plot.
type WebConfig struct {
	Listen    string
	FrameRate int
	Layout    Layout
}

func GetDefaultWebConfig() WebConfig {
	return WebConfig{
		Listen:    "127.0.0.1:8090",
		FrameRate: 30,
		Layout: Layout{
			Title:  "voice fem tools",
			XLabel: "x-axis",
			YLabel: "y-axis",
			XMin:   0,
			XMax:   22050,
			YMin:   0,
			YMax:   500,
		},
	}
}

type message struct {
	Type   string  `json:"type"`
	Layout *Layout `json:"layout,omitempty"`
	Frame  *Frame  `json:"frame,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// WebRenderer serves a canvas page and pushes frames to it over a websocket.
type WebRenderer struct {
	config   WebConfig
	upgrader websocket.Upgrader
	log      *logrus.Entry

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	addr    net.Addr
}

var _ Renderer = (*WebRenderer)(nil)

func NewWebRenderer(config WebConfig) *WebRenderer {
	if config.FrameRate <= 0 {
		config.FrameRate = GetDefaultWebConfig().FrameRate
	}
	return &WebRenderer{
		config:  config,
		log:     logrus.WithField("component", "web"),
		clients: make(map[*client]struct{}),
	}
}

// Handler serves the page at / and the frame stream at /ws.
func (w *WebRenderer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(rw, r)
			return
		}
		rw.Header().Set("Content-Type", "text/html; charset=utf-8")
		rw.Write(indexHTML)
	})
	mux.HandleFunc("/ws", w.serveWS)
	return mux
}

// Clients returns the number of connected viewers.
func (w *WebRenderer) Clients() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.clients)
}

// Addr returns the address Run listens on, or nil before it does.
func (w *WebRenderer) Addr() net.Addr {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.addr
}

// Run listens on the configured address and streams frames until ctx ends.
// Viewers still connected then are closed.
func (w *WebRenderer) Run(ctx context.Context, frames *Mailbox) error {
	ln, err := net.Listen("tcp", w.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.config.Listen, err)
	}
	w.mu.Lock()
	w.closed = false
	w.addr = ln.Addr()
	w.mu.Unlock()
	srv := &http.Server{Handler: w.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	w.log.WithField("url", "http://"+ln.Addr().String()+"/").Info("Plot available")

	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go w.Pump(pumpCtx, frames)

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("plot server failed: %w", err)
		}
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	w.closeClients()
	return srv.Shutdown(shutdownCtx)
}

// Pump broadcasts the newest frame to all clients at most FrameRate times a
// second. Frames that arrive between ticks are skipped.
func (w *WebRenderer) Pump(ctx context.Context, frames *Mailbox) {
	ticker := time.NewTicker(time.Second / time.Duration(w.config.FrameRate))
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, ok := frames.Latest()
			if !ok || frame.Seq == last {
				continue
			}
			last = frame.Seq
			data, err := json.Marshal(message{Type: "frame", Frame: &frame})
			if err != nil {
				w.log.WithError(err).Error("Failed to encode frame")
				continue
			}
			w.broadcast(data)
		}
	}
}

func (w *WebRenderer) broadcast(data []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for c := range w.clients {
		select {
		case c.send <- data:
		default:
			// Slow viewer: drop it rather than stall the others.
			delete(w.clients, c)
			c.close()
		}
	}
}

// closeClients drops every viewer and turns away new ones.
func (w *WebRenderer) closeClients() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for c := range w.clients {
		delete(w.clients, c)
		c.close()
	}
}

func (w *WebRenderer) remove(c *client) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.clients[c]; ok {
		delete(w.clients, c)
		c.close()
	}
}

func (w *WebRenderer) serveWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.log.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	layout, err := json.Marshal(message{Type: "layout", Layout: &w.config.Layout})
	if err != nil {
		conn.Close()
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientQueue)}
	c.send <- layout

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		conn.Close()
		return
	}
	w.clients[c] = struct{}{}
	w.mu.Unlock()
	w.log.WithField("remote", r.RemoteAddr).Debug("Viewer connected")

	go w.writeLoop(c)
	go w.readLoop(c)
}

func (w *WebRenderer) writeLoop(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			w.remove(c)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readLoop discards client messages; it exists to notice disconnects.
func (w *WebRenderer) readLoop(c *client) {
	defer w.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
