// Package web is a browser surface. The current frame is pushed to every
// connected page over a websocket as JPEG, and key and mouse events come
// back as JSON.
package web

import (
	"bytes"
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
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/menta2k/frame-annotator/pkg/annotation"
	"github.com/menta2k/frame-annotator/pkg/imageio"
	"github.com/menta2k/frame-annotator/pkg/keymap"
	"github.com/menta2k/frame-annotator/pkg/surface"
)

//go:embed index.html
var indexHTML []byte

// DefaultListen is the listen address when none is configured
const DefaultListen = "127.0.0.1:8090"

const writeTimeout = 5 * time.Second

// Options configures a Server
type Options struct {
	Listen      string
	JPEGQuality int
	Keymap      *keymap.Keymap
}

// Server is a Surface backed by an HTTP server
type Server struct {
	opts       Options
	log        *zap.Logger
	router     *httprouter.Router
	wsUpgrader websocket.Upgrader
	httpServer *http.Server
	events     chan annotation.Event
	closed     chan struct{}
	closeOnce  sync.Once

	mu      sync.Mutex
	clients map[*client]bool
	frame   []byte
	status  statusMessage
}

// client is one connected page. Writes to a websocket must be serialized.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(msgType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(msgType, data)
}

// clientMessage is what the page sends
type clientMessage struct {
	Type string  `json:"type"`
	Key  string  `json:"key"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// statusMessage accompanies every frame
type statusMessage struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Video   string `json:"video"`
	Index   int    `json:"index"`
	Message string `json:"message,omitempty"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// New creates a Server. Call Start to listen, or use Handler directly.
func New(opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Listen == "" {
		opts.Listen = DefaultListen
	}
	if opts.Keymap == nil {
		opts.Keymap = keymap.Default()
	}
	s := &Server{
		opts:    opts,
		log:     logger,
		events:  make(chan annotation.Event, 64),
		closed:  make(chan struct{}),
		clients: make(map[*client]bool),
	}
	s.router = s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() *httprouter.Router {
	router := httprouter.New()
	router.GET("/", s.httpIndex)
	router.GET("/frame.jpg", s.httpFrame)
	router.GET("/api/keymap", s.httpKeymap)
	router.GET("/ws", s.httpWebSocket)
	return router
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler { return s.router }

// Start listens in the background and returns the bound address
func (s *Server) Start() (string, error) {
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return "", fmt.Errorf("listen on %s: %w", s.opts.Listen, err)
	}
	s.httpServer = &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("web surface stopped", zap.Error(err))
		}
	}()
	addr := ln.Addr().String()
	s.log.Info("web surface listening", zap.String("url", "http://"+addr+"/"))
	return addr, nil
}

// Show encodes the frame and pushes it to every connected page
func (s *Server) Show(ctx context.Context, frame surface.Frame) error {
	var buf bytes.Buffer
	if err := imageio.EncodeJPEG(&buf, frame.Image, s.opts.JPEGQuality); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	b := frame.Image.Bounds()
	status := statusMessage{
		Type:    "frame",
		Title:   frame.Title(),
		Video:   frame.Video,
		Index:   frame.Index,
		Message: frame.Message,
		Width:   b.Dx(),
		Height:  b.Dy(),
	}
	statusJSON, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	data := buf.Bytes()
	s.mu.Lock()
	newFrame := s.frame == nil || s.status.Video != frame.Video || s.status.Index != frame.Index
	s.frame = data
	s.status = status
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	// Input queued for the previous frame must not leak into this one
	if newFrame {
		if n := s.dropPending(); n > 0 {
			s.log.Debug("dropped stale events", zap.Int("count", n), zap.String("title", frame.Title()))
		}
	}

	for _, c := range clients {
		if err := s.send(c, statusJSON, data); err != nil {
			s.log.Warn("failed to push frame", zap.Error(err))
		}
	}
	return nil
}

func (s *Server) dropPending() int {
	n := 0
	for {
		select {
		case <-s.events:
			n++
		default:
			return n
		}
	}
}

func (s *Server) send(c *client, status, frame []byte) error {
	if err := c.write(websocket.TextMessage, status); err != nil {
		return err
	}
	return c.write(websocket.BinaryMessage, frame)
}

// NextEvent blocks until the page sends an event
func (s *Server) NextEvent(ctx context.Context) (annotation.Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.closed:
		return annotation.Event{}, surface.ErrClosed
	case <-ctx.Done():
		return annotation.Event{}, ctx.Err()
	}
}

// Close disconnects every page and stops the HTTP server
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.mu.Lock()
		for c := range s.clients {
			c.conn.Close()
		}
		s.clients = map[*client]bool{}
		s.mu.Unlock()
		if s.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err = s.httpServer.Shutdown(ctx)
		}
	})
	return err
}

func (s *Server) httpIndex(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) httpFrame(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.mu.Lock()
	frame := s.frame
	s.mu.Unlock()
	if frame == nil {
		http.Error(w, "no frame yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(frame)
}

func (s *Server) httpKeymap(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.opts.Keymap.Bindings())
}

func (s *Server) httpWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn}

	s.mu.Lock()
	s.clients[c] = true
	frame, status := s.frame, s.status
	s.mu.Unlock()
	s.log.Info("page connected", zap.String("remote", r.RemoteAddr))

	if frame != nil {
		if statusJSON, err := json.Marshal(status); err == nil {
			if err := s.send(c, statusJSON, frame); err != nil {
				s.log.Warn("failed to send initial frame", zap.Error(err))
			}
		}
	}

	go s.webSocketReader(c)
}

// webSocketReader turns page messages into events until the connection drops
func (s *Server) webSocketReader(c *client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		c.conn.Close()
		s.log.Info("page disconnected")
	}()

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn("invalid message from page", zap.Error(err))
			continue
		}
		ev, ok := s.translate(msg)
		if !ok {
			s.log.Debug("unhandled message from page", zap.String("type", msg.Type), zap.String("key", msg.Key))
			continue
		}
		select {
		case s.events <- ev:
		case <-s.closed:
			return
		}
	}
}

func (s *Server) translate(msg clientMessage) (annotation.Event, bool) {
	switch msg.Type {
	case "key":
		return s.opts.Keymap.Lookup(msg.Key)
	case "down":
		return annotation.PointerDown(msg.X, msg.Y), true
	case "move":
		return annotation.PointerMove(msg.X, msg.Y), true
	case "up":
		return annotation.PointerUp(msg.X, msg.Y), true
	}
	return annotation.Event{}, false
}
