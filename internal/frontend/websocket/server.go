// Package websocket serves the JSON envelope protocol over WebSocket
// connections.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/diceraja/internal/auth"
	"github.com/cory-johannsen/diceraja/internal/config"
	"github.com/cory-johannsen/diceraja/internal/gameserver"
	"github.com/cory-johannsen/diceraja/internal/observability"
	"github.com/cory-johannsen/diceraja/internal/protocol"
)

// Dispatcher applies actions in arrival order.
type Dispatcher interface {
	Submit(ctx context.Context, a protocol.Action) (gameserver.Outcome, error)
}

// disconnectTimeout bounds the Disconnect submission after a socket closes.
const disconnectTimeout = 5 * time.Second

// Server upgrades HTTP requests on the configured path and pumps frames
// between each socket and the dispatcher.
type Server struct {
	cfg        config.WebSocketConfig
	hub        *gameserver.Hub
	dispatcher Dispatcher
	verifier   *auth.Verifier
	logger     *zap.Logger
	upgrader   websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	http     *http.Server
	listener net.Listener
	conns    map[string]*websocket.Conn
	wg       sync.WaitGroup
}

// NewServer creates a WebSocket server.
//
// Precondition: hub, dispatcher, verifier and logger must be non-nil.
// Postcondition: Returns a Server ready to be started with ListenAndServe.
func NewServer(cfg config.WebSocketConfig, hub *gameserver.Hub, dispatcher Dispatcher, verifier *auth.Verifier, logger *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:        cfg,
		hub:        hub,
		dispatcher: dispatcher,
		verifier:   verifier,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[string]*websocket.Conn),
	}
}

// Handler returns the HTTP routes: the upgrade path and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ListenAndServe listens on the configured address until Stop is called.
//
// Postcondition: returns nil after a clean Stop.
func (s *Server) ListenAndServe() error {
	start := time.Now()
	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.http = srv
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("websocket server listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("path", s.cfg.Path),
		zap.Duration("startup", time.Since(start)),
	)
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving websocket: %w", err)
	}
	return nil
}

// Stop closes the listener and every open socket, then waits for their
// pumps to finish.
func (s *Server) Stop() {
	s.cancel()

	s.mu.Lock()
	srv := s.http
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Warn("websocket shutdown", zap.Error(err))
		}
	}
	s.wg.Wait()
	s.logger.Info("websocket server stopped")
}

// Addr returns the listening address, or "" before ListenAndServe.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func requestToken(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	return auth.BearerToken(r.Header.Get("Authorization"))
}

func (s *Server) track(connID string, c *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.conns[connID] = c
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(connID string) {
	s.mu.Lock()
	delete(s.conns, connID)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	identity, err := s.verifier.Identify(requestToken(r))
	if err != nil {
		s.logger.Info("rejecting websocket client",
			zap.String("remote", r.RemoteAddr),
			zap.Error(err),
		)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	connID := uuid.NewString()
	if !s.track(connID, conn) {
		_ = conn.Close()
		return
	}
	defer s.untrack(connID)
	defer conn.Close()

	logger := observability.ForConnection(s.logger, "websocket", connID, r.RemoteAddr)
	outbox, err := s.hub.Register(connID)
	if err != nil {
		logger.Error("registering connection", zap.Error(err))
		return
	}
	logger.Info("client connected", zap.String("user", identity.UserID))

	start := time.Now()
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump(conn, outbox, logger)
	}()

	err = s.readPump(conn, outbox, identity, logger)

	s.hub.Unregister(connID)
	<-writerDone

	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if _, serr := s.dispatcher.Submit(ctx, protocol.Disconnect{ConnID: connID}); serr != nil {
		logger.Debug("submitting disconnect", zap.Error(serr))
	}
	logger.Info("client disconnected",
		zap.Duration("duration", time.Since(start)),
		zap.NamedError("cause", err),
	)
}

// readPump decodes frames and submits them until the socket fails.
func (s *Server) readPump(conn *websocket.Conn, outbox *gameserver.Outbox, identity auth.Identity, logger *zap.Logger) error {
	if s.cfg.ReadLimit > 0 {
		conn.SetReadLimit(s.cfg.ReadLimit)
	}
	if s.cfg.PongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
		})
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		action, err := protocol.DecodeAction(outbox.ConnectionID(), identity.UserID, data)
		if err != nil {
			logger.Debug("malformed frame", zap.Error(err))
			if perr := outbox.Push(protocol.Rejected("", "", err)); perr != nil {
				logger.Warn("dropping rejection", zap.Error(perr))
			}
			continue
		}

		out, err := s.dispatcher.Submit(s.ctx, action)
		if err != nil {
			return fmt.Errorf("submitting %s: %w", action.Name(), err)
		}
		if out.Rejected() {
			logger.Debug("action rejected",
				zap.String("action", out.Action),
				zap.String("reason", string(out.Reason())),
			)
		}
	}
}

// writePump drains the outbox onto the socket and keeps it alive with pings.
func (s *Server) writePump(conn *websocket.Conn, outbox *gameserver.Outbox, logger *zap.Logger) {
	var ping <-chan time.Time
	if s.cfg.PingInterval > 0 {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case n, ok := <-outbox.Events():
			s.setWriteDeadline(conn)
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(n); err != nil {
				logger.Debug("writing notification", zap.String("type", n.Type), zap.Error(err))
				_ = conn.Close()
				drain(outbox)
				return
			}
		case <-ping:
			s.setWriteDeadline(conn)
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				drain(outbox)
				return
			}
		}
	}
}

func (s *Server) setWriteDeadline(conn *websocket.Conn) {
	if s.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
}

// drain discards notifications until the outbox is closed.
func drain(outbox *gameserver.Outbox) {
	for range outbox.Events() {
	}
}
