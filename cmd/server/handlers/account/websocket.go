package account

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"infinitiflow/cmd/server/ctxkeys"
	"infinitiflow/cmd/server/handlers/httperr"
	"infinitiflow/internal/logger"
	"infinitiflow/internal/services/auth"
	"infinitiflow/internal/services/events"
	"infinitiflow/internal/services/tokens"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	// WSClosePolicyViolation represents WebSocket close code for policy violation
	WSClosePolicyViolation = 1008

	wsWriteTimeout     = 10 * time.Second
	wsPingInterval     = 25 * time.Second
	wsPingWriteTimeout = 5 * time.Second

	msgFailedToCloseWebSocketConnection = "failed to close WebSocket connection"
)

// Hub is the part of the events hub the stream needs.
type Hub interface {
	Subscribe(connID ulid.ULID, userID string) (*events.Subscriber, func())
}

// TokenVerifier checks access tokens passed in the query string.
type TokenVerifier interface {
	VerifyAccessToken(raw string) (*tokens.Claims, error)
}

// UserLoader resolves the subject of a verified token.
type UserLoader interface {
	UserByID(ctx context.Context, id bson.ObjectID) (*auth.User, error)
}

// StreamHandlers serves the per-user account event stream.
type StreamHandlers struct {
	hub           Hub
	verifier      TokenVerifier
	users         UserLoader
	maxSessionSec int
}

// NewStreamHandlers creates new account stream handlers
func NewStreamHandlers(hub Hub, verifier TokenVerifier, users UserLoader, maxSessionSec int) *StreamHandlers {
	return &StreamHandlers{
		hub:           hub,
		verifier:      verifier,
		users:         users,
		maxSessionSec: maxSessionSec,
	}
}

// WSUpgrade authenticates the ?token= access token and lets the upgrade through.
func (h *StreamHandlers) WSUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		logger.L().Warn("websocket upgrade required", "handler", "WSUpgrade", "path", c.Path())
		return httperr.Fail(httperr.E{Status: 400, Message: "WebSocket upgrade required"})
	}

	token := c.Query("token")
	if token == "" {
		logger.L().Info("missing token in websocket upgrade", "handler", "WSUpgrade", "path", c.Path())
		return httperr.Fail(httperr.E{Status: 401, Message: "Missing token"})
	}

	userID, err := h.authenticate(c.UserContext(), token)
	if err != nil {
		logger.L().Info("websocket upgrade refused", "handler", "WSUpgrade", "path", c.Path(), "error", err)
		return httperr.Fail(httperr.E{Status: 401, Message: "Invalid token"})
	}

	c.Locals(ctxkeys.UserIDKey, userID.Hex())
	c.Locals(ctxkeys.ParentCtxKey, c.UserContext())
	return c.Next()
}

func (h *StreamHandlers) authenticate(ctx context.Context, raw string) (bson.ObjectID, error) {
	claims, err := h.verifier.VerifyAccessToken(raw)
	if err != nil {
		return bson.ObjectID{}, err
	}
	id, err := bson.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return bson.ObjectID{}, fmt.Errorf("invalid user id: %w", err)
	}

	user, err := h.users.UserByID(ctx, id)
	if err != nil {
		return bson.ObjectID{}, err
	}
	if !user.Active {
		return bson.ObjectID{}, auth.ErrAccountDeactivated
	}
	if claims.IssuedAt != nil && user.ChangedPasswordAfter(claims.IssuedAt.Unix()) {
		return bson.ObjectID{}, auth.ErrPasswordChanged
	}
	return id, nil
}

// WSAccountStream pushes usage and subscription events to the connected user.
func (h *StreamHandlers) WSAccountStream(c *websocket.Conn) {
	conn, parentCtx, err := h.initializeConnection(c)
	if err != nil {
		h.closeConnection(c)
		return
	}

	ctx, cancelCtx := context.WithCancel(parentCtx)
	defer cancelCtx()

	subscriber, cancel := h.hub.Subscribe(conn.connULID, conn.userID)
	defer cancel()

	logger.L().Info("WebSocket connection established", "user_id", conn.userID, "conn_id", conn.connID)

	sessionTimer := time.AfterFunc(time.Duration(h.maxSessionSec)*time.Second, func() {
		logger.L().Info("WebSocket session timeout", "user_id", conn.userID, "conn_id", conn.connID)
		h.sendCloseMessage(c, conn)
		h.closeConnection(c)
		cancelCtx()
	})
	defer sessionTimer.Stop()

	ping := h.startKeepAlive(c, conn)
	defer ping.Stop()

	go h.handleOutgoingMessages(ctx, c, conn, subscriber)

	h.handleIncomingMessages(c, conn)

	logger.L().Info("WebSocket connection closed", "user_id", conn.userID, "conn_id", conn.connID)
}

type wsConnection struct {
	userID   string
	connULID ulid.ULID
	connID   string
}

func (h *StreamHandlers) initializeConnection(c *websocket.Conn) (*wsConnection, context.Context, error) {
	userID, ok := c.Locals(ctxkeys.UserIDKey).(string)
	if !ok || userID == "" {
		logger.L().Error(ctxkeys.UserIDKey + " not found in WebSocket context")
		return nil, nil, errors.New(ctxkeys.UserIDKey + " not found")
	}

	parentCtx, ok := c.Locals(ctxkeys.ParentCtxKey).(context.Context)
	if !ok {
		logger.L().Error(ctxkeys.ParentCtxKey + " not found in WebSocket context")
		return nil, nil, errors.New(ctxkeys.ParentCtxKey + " not found")
	}

	connULID := ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader)

	return &wsConnection{
		userID:   userID,
		connULID: connULID,
		connID:   connULID.String(),
	}, parentCtx, nil
}

func (h *StreamHandlers) closeConnection(c *websocket.Conn) {
	if err := c.Close(); err != nil {
		logger.L().Debug(msgFailedToCloseWebSocketConnection, "error", err)
	}
}

func (h *StreamHandlers) sendCloseMessage(c *websocket.Conn, conn *wsConnection) {
	err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(WSClosePolicyViolation, "session timeout"))
	if err != nil {
		logger.L().Warn("failed to send close message", "error", err, "user_id", conn.userID, "conn_id", conn.connID)
	}
}

func (h *StreamHandlers) startKeepAlive(c *websocket.Conn, conn *wsConnection) *time.Ticker {
	ping := time.NewTicker(wsPingInterval)
	go func() {
		for range ping.C {
			if err := c.SetWriteDeadline(time.Now().Add(wsPingWriteTimeout)); err != nil {
				return
			}
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.L().Debug("failed to write ping message", "error", err, "user_id", conn.userID, "conn_id", conn.connID)
				return
			}
		}
	}()
	return ping
}

func (h *StreamHandlers) handleOutgoingMessages(ctx context.Context, c *websocket.Conn, conn *wsConnection, subscriber *events.Subscriber) {
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("panic in WebSocket sender", "error", r, "user_id", conn.userID)
		}
	}()

	for {
		select {
		case ev, ok := <-subscriber.Ch:
			if !ok {
				return
			}
			if err := c.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
			if err := c.WriteJSON(ev); err != nil {
				logger.L().Warn("failed to write WebSocket message", "error", err, "user_id", conn.userID, "conn_id", conn.connID)
				return
			}
		case <-subscriber.Done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// The stream is push-only; reads just drain control frames until the peer goes away.
func (h *StreamHandlers) handleIncomingMessages(c *websocket.Conn, conn *wsConnection) {
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.L().Warn("WebSocket error", "error", err, "user_id", conn.userID, "conn_id", conn.connID)
			}
			return
		}
	}
}

// LogWSConnections logs every WebSocket upgrade attempt. The user id is only
// logged when the token verifies, so it can't be spoofed.
func LogWSConnections(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			user := ""
			if claims, err := verifier.VerifyAccessToken(c.Query("token")); err == nil {
				user = claims.UserID
			}
			logger.L().Info("WebSocket upgrade attempt", "ip", c.IP(), "user", user)
		}
		return c.Next()
	}
}
