package onlineplayers

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const boardPath = "/board.png"

// WebTarget serves the latest board over HTTP for browser overlay sources.
// It provides the PNG at /board.png, the player list at /api/players and a
// websocket at /ws that pushes the player list after every update.
type WebTarget struct {
	addr           string
	originPatterns []string
	log            *zap.Logger

	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
	frame    *Frame
	png      []byte
	subs     map[chan []byte]struct{}
	started  bool
	closed   bool
}

// WebOption configures a WebTarget.
type WebOption func(*WebTarget)

// WithOriginPatterns allows websocket connections from the given origins.
func WithOriginPatterns(patterns ...string) WebOption {
	return func(t *WebTarget) {
		t.originPatterns = patterns
	}
}

// WithWebLogger sets the logger.
func WithWebLogger(l *zap.Logger) WebOption {
	return func(t *WebTarget) {
		t.log = l
	}
}

// NewWebTarget creates a target that serves boards on addr.
func NewWebTarget(addr string, opts ...WebOption) *WebTarget {
	t := &WebTarget{
		addr: addr,
		subs: make(map[chan []byte]struct{}),
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name implements Target.
func (t *WebTarget) Name() string {
	return fmt.Sprintf("WebTarget(%s)", t.addr)
}

// Update implements Target. The server starts on the first update.
func (t *WebTarget) Update(ctx context.Context, frame *Frame) error {
	if frame == nil || frame.Board == nil {
		return fmt.Errorf("no board to serve")
	}
	data, err := encodePNG(frame.Board)
	if err != nil {
		return err
	}
	msg, err := FrameToJSONBytes(frame)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("web target closed")
	}
	t.frame = frame
	t.png = data
	for ch := range t.subs {
		select {
		case ch <- msg:
		default:
			// slow subscriber; it will get the next one
		}
	}
	started := t.started
	t.mu.Unlock()

	if !started {
		return t.start()
	}
	return nil
}

// Handler returns the HTTP handler for embedding in existing servers.
func (t *WebTarget) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get(boardPath, t.handleBoard)
	r.Get("/api/players", t.handlePlayers)
	r.Get("/ws", t.handleWS)
	r.Get("/", t.handleIndex)
	return r
}

func (t *WebTarget) handleBoard(w http.ResponseWriter, r *http.Request) {
	t.mu.RLock()
	data := t.png
	t.mu.RUnlock()

	if data == nil {
		http.Error(w, "no board rendered yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

func (t *WebTarget) handlePlayers(w http.ResponseWriter, r *http.Request) {
	t.mu.RLock()
	frame := t.frame
	t.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_ = json.NewEncoder(w).Encode(FrameToJSON(frame))
}

func (t *WebTarget) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: t.originPatterns,
	})
	if err != nil {
		t.log.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	ch, current := t.subscribe()
	if ch == nil {
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer t.unsubscribe(ch)

	ctx := conn.CloseRead(r.Context())
	write := func(msg []byte) error {
		wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return conn.Write(wctx, websocket.MessageText, msg)
	}

	if current != nil {
		if err := write(current); err != nil {
			return
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "shutting down")
				return
			}
			if err := write(msg); err != nil {
				return
			}
		}
	}
}

func (t *WebTarget) subscribe() (chan []byte, []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, nil
	}
	ch := make(chan []byte, 4)
	t.subs[ch] = struct{}{}

	var current []byte
	if t.frame != nil {
		current, _ = FrameToJSONBytes(t.frame)
	}
	return ch, current
}

func (t *WebTarget) unsubscribe(ch chan []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.subs[ch]; ok {
		delete(t.subs, ch)
		close(ch)
	}
}

func (t *WebTarget) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>online players</title>
    <style>body { margin: 0; background: transparent; } img { max-width: 100%; }</style>
</head>
<body>
    <img id="board" src="/board.png">
    <script>
        const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
        ws.onmessage = () => { document.getElementById("board").src = "/board.png?t=" + Date.now(); };
    </script>
</body>
</html>`))
}

func (t *WebTarget) start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started || t.closed {
		return nil
	}

	ln, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", t.addr, err)
	}
	t.listener = ln
	t.server = &http.Server{
		Handler:           t.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			t.log.Error("web target stopped", zap.Error(err))
		}
	}(t.server)

	t.started = true
	t.log.Info("serving board", zap.String("url", t.urlLocked()))
	return nil
}

// Close implements Target.
func (t *WebTarget) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	for ch := range t.subs {
		delete(t.subs, ch)
		close(ch)
	}
	srv := t.server
	t.mu.Unlock()

	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// URL returns the base URL the target serves on.
func (t *WebTarget) URL() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.urlLocked()
}

func (t *WebTarget) urlLocked() string {
	if t.listener != nil {
		return "http://" + t.listener.Addr().String()
	}
	host, port, err := net.SplitHostPort(t.addr)
	if err != nil {
		return "http://" + t.addr
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
