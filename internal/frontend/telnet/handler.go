package telnet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/diceraja/internal/auth"
	"github.com/cory-johannsen/diceraja/internal/gameserver"
	"github.com/cory-johannsen/diceraja/internal/observability"
	"github.com/cory-johannsen/diceraja/internal/protocol"
)

// Dispatcher applies actions in arrival order.
type Dispatcher interface {
	Submit(ctx context.Context, a protocol.Action) (gameserver.Outcome, error)
}

const disconnectTimeout = 5 * time.Second

// maxLoginAttempts is the number of rejected tokens before the connection is
// closed.
const maxLoginAttempts = 3

var banner = []string{
	Colorize(Bold, "Welcome to Dice Raja."),
	"Type help for the list of commands.",
}

// GameHandler runs the line command loop for one Telnet client. Each client
// gets its own hub connection and renderer.
type GameHandler struct {
	hub        *gameserver.Hub
	dispatcher Dispatcher
	verifier   *auth.Verifier
	logger     *zap.Logger
}

// NewGameHandler creates a GameHandler. A nil verifier makes every client
// anonymous. When the verifier requires tokens, clients must log in before
// any game command is accepted.
//
// Precondition: hub, dispatcher and logger must be non-nil.
func NewGameHandler(hub *gameserver.Hub, dispatcher Dispatcher, verifier *auth.Verifier, logger *zap.Logger) *GameHandler {
	return &GameHandler{hub: hub, dispatcher: dispatcher, verifier: verifier, logger: logger}
}

func (h *GameHandler) loginRequired() bool {
	return h.verifier != nil && h.verifier.Required()
}

// HandleSession reads commands until the client quits or the connection
// fails, then reports the disconnect.
//
// Postcondition: the connection is unregistered from the hub and a
// Disconnect action has been submitted.
func (h *GameHandler) HandleSession(ctx context.Context, conn *Conn) error {
	connID := uuid.NewString()
	logger := observability.ForConnection(h.logger, "telnet", connID, conn.RemoteAddr().String())

	outbox, err := h.hub.Register(connID)
	if err != nil {
		return fmt.Errorf("registering connection: %w", err)
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(conn, outbox, logger)
	}()
	defer func() {
		h.hub.Unregister(connID)
		<-writerDone

		dctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()
		if _, err := h.dispatcher.Submit(dctx, protocol.Disconnect{ConnID: connID}); err != nil {
			logger.Debug("submitting disconnect", zap.Error(err))
		}
	}()

	if err := conn.WriteLines(banner); err != nil {
		return err
	}
	if h.loginRequired() {
		if err := conn.WriteLine("This server requires a token: login <token>"); err != nil {
			return err
		}
	}

	var identity auth.Identity
	loggedIn := !h.loginRequired()
	failedLogins := 0
	for {
		line, err := conn.ReadLine()
		if errors.Is(err, ErrLineTooLong) {
			if werr := conn.WriteLine(Colorize(Red, "Line too long.")); werr != nil {
				return werr
			}
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		cmd, err := ParseCommand(connID, line)
		if err != nil {
			if werr := conn.WriteLine(Colorize(Red, err.Error())); werr != nil {
				return werr
			}
			continue
		}
		switch {
		case cmd.Quit:
			_ = conn.WriteLine("Goodbye.")
			return nil
		case cmd.Help:
			if err := conn.WriteLines(HelpText); err != nil {
				return err
			}
			continue
		case cmd.Login != "":
			id, ok, err := h.login(conn, cmd.Login, logger)
			if err != nil {
				return err
			}
			if !ok {
				failedLogins++
				if failedLogins >= maxLoginAttempts {
					_ = conn.WriteLine("Too many failed logins.")
					return nil
				}
				continue
			}
			identity, loggedIn = id, true
			continue
		case cmd.Action == nil:
			continue
		case !loggedIn:
			if err := conn.WriteLine(Colorize(Red, "Log in first: login <token>")); err != nil {
				return err
			}
			continue
		}

		if _, err := h.dispatcher.Submit(ctx, withUser(cmd.Action, identity.UserID)); err != nil {
			return fmt.Errorf("submitting %s: %w", cmd.Action.Name(), err)
		}
	}
}

// login verifies token and reports the result to the client.
//
// Postcondition: ok is false when the token was refused; err is only set
// when the connection failed.
func (h *GameHandler) login(conn *Conn, token string, logger *zap.Logger) (auth.Identity, bool, error) {
	if h.verifier == nil || !h.verifier.Enabled() {
		return auth.Identity{}, true, conn.WriteLine("Tokens are not checked on this server.")
	}
	id, err := h.verifier.Identify(token)
	if err != nil {
		logger.Info("telnet login rejected", zap.Error(err))
		return auth.Identity{}, false, conn.WriteLine(Colorize(Red, "Login failed."))
	}
	logger.Info("telnet login", zap.String("user", id.UserID))
	return id, true, conn.WriteLine(Colorize(Green, fmt.Sprintf("Logged in as %s.", id.UserID)))
}

// writeLoop renders notifications until the outbox closes.
func (h *GameHandler) writeLoop(conn *Conn, outbox *gameserver.Outbox, logger *zap.Logger) {
	r := NewRenderer()
	for n := range outbox.Events() {
		if err := conn.WriteLines(r.Render(n)); err != nil {
			logger.Debug("writing notification", zap.String("type", n.Type), zap.Error(err))
			_ = conn.Close()
			for range outbox.Events() {
			}
			return
		}
	}
}
