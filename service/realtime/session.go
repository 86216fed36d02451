package realtime

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"CampusHub/logger"
	"CampusHub/service/backplane"
	"CampusHub/tools/ids"
	"CampusHub/tools/safe"
)

const (
	writeWait       = 10 * time.Second
	teardownTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Gateway orchestrates the lifetime of one inbound websocket connection:
// accept, authenticate, compute the topic subscription set, run the read
// loop alongside the outbound listener, and tear everything down in a
// fixed order on disconnect.
type Gateway struct {
	mgr      *Manager
	svc      *Service
	bp       backplane.Backplane
	members  MembershipResolver
	tokens   TokenVerifier
	presence PresenceQuerier
}

func NewGateway(mgr *Manager, svc *Service, bp backplane.Backplane, members MembershipResolver, tokens TokenVerifier, presence PresenceQuerier) *Gateway {
	return &Gateway{
		mgr:      mgr,
		svc:      svc,
		bp:       bp,
		members:  members,
		tokens:   tokens,
		presence: presence,
	}
}

// HandleWS serves GET /ws?token=... The token travels as a query
// parameter, not a header: browsers cannot set headers on websocket
// handshakes.
func (g *Gateway) HandleWS(c *gin.Context) {
	token := c.Query("token")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[HandleWS] upgrade websocket error: %v", err)
		return
	}

	connID := ids.GenerateString()
	ctx := c.Request.Context()

	// AUTHENTICATING. Failure closes with a policy-violation code and the
	// connection is never registered.
	userID, err := g.tokens.Verify(ctx, token)
	if err != nil {
		logger.Warn("websocket auth failed",
			zap.String("conn_id", connID),
			zap.Error(err))
		closeWith(ws, websocket.ClosePolicyViolation)
		return
	}

	// SUBSCRIBING. From here on every failure is internal: the handshake
	// has been acknowledged and the user is authenticated.
	if err := g.mgr.Connect(ctx, ws, userID, connID); err != nil {
		logger.Error("registry connect failed",
			zap.String("user_id", userID.String()),
			zap.String("conn_id", connID),
			zap.Error(err))
		closeWith(ws, websocket.CloseInternalServerErr)
		g.disconnect(userID, connID)
		return
	}

	channelTopics, err := g.members.ChannelTopics(ctx, userID)
	if err != nil {
		logger.Error("resolve channel topics failed",
			zap.String("user_id", userID.String()),
			zap.String("conn_id", connID),
			zap.Error(err))
		closeWith(ws, websocket.CloseInternalServerErr)
		g.disconnect(userID, connID)
		return
	}

	topics := append([]string{UserTopic(userID), TopicGlobal}, channelTopics...)
	sub, err := g.bp.Subscribe(ctx, topics...)
	if err != nil {
		logger.Error("backplane subscribe failed",
			zap.String("user_id", userID.String()),
			zap.String("conn_id", connID),
			zap.Error(err))
		closeWith(ws, websocket.CloseInternalServerErr)
		g.disconnect(userID, connID)
		return
	}

	logger.Info("websocket connected",
		zap.String("user_id", userID.String()),
		zap.String("conn_id", connID),
		zap.Int("topics", len(topics)))

	// LISTENING. Exactly one cancellable background task per connection,
	// always joined before the connection is considered closed.
	listenCtx, cancelListen := context.WithCancel(context.Background())
	listenerDone := make(chan struct{})
	safe.Go(func() {
		defer close(listenerDone)
		g.listen(listenCtx, sub, userID, connID)
	})

	g.readLoop(ctx, ws, userID, connID)

	// DISCONNECTING. The order is fixed regardless of which trigger
	// fired: join the listener first so it never runs against a closed
	// subscription handle, tear down the registry last so racing
	// SendToUser calls never target a half-torn-down connection.
	cancelListen()
	<-listenerDone
	if err := sub.Close(); err != nil {
		logger.Warn("subscription close failed",
			zap.String("conn_id", connID),
			zap.Error(err))
	}
	g.disconnect(userID, connID)
	_ = ws.Close()

	logger.Info("websocket closed",
		zap.String("user_id", userID.String()),
		zap.String("conn_id", connID))
}

// listen forwards every backplane message to the socket until cancelled.
// A failure on one message is logged and the next message proceeds.
func (g *Gateway) listen(ctx context.Context, sub backplane.Subscription, userID uuid.UUID, connID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			g.forward(msg, userID, connID)
		}
	}
}

func (g *Gateway) forward(msg backplane.Message, userID uuid.UUID, connID string) {
	var env Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		logger.Error("drop malformed backplane message",
			zap.String("topic", msg.Topic),
			zap.String("user_id", userID.String()),
			zap.String("conn_id", connID),
			zap.Error(err))
		return
	}
	// Checked immediately before the send: the socket may have been torn
	// down while this message sat in the subscription buffer.
	if !g.mgr.IsConnected(connID) {
		return
	}
	g.mgr.SendToConnection(connID, env)
}

// readLoop dispatches client frames until the peer disconnects, the
// frame stream turns unparseable, or the process shuts the socket.
func (g *Gateway) readLoop(ctx context.Context, ws *websocket.Conn, userID uuid.UUID, connID string) {
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[WS] peer closed conn_id=%s user=%s", connID, userID)
			} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logger.Infof("[WS] read timeout conn_id=%s user=%s err=%v", connID, userID, err)
			} else {
				logger.Warnf("[WS] read err conn_id=%s user=%s err=%v", connID, userID, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		cmd, err := parseClientFrame(data)
		if err != nil {
			logger.Warnf("[WS] bad client frame conn_id=%s user=%s err=%v", connID, userID, err)
			closeWith(ws, websocket.CloseInternalServerErr)
			return
		}
		switch cmd := cmd.(type) {
		case typingCommand:
			g.handleTyping(ctx, userID, cmd)
		case nil:
			// Unknown frame kind: forward-compatible no-op.
		}
	}
}

func (g *Gateway) handleTyping(ctx context.Context, userID uuid.UUID, cmd typingCommand) {
	if cmd.ChannelID == "" {
		return
	}
	channelID, err := uuid.Parse(cmd.ChannelID)
	if err != nil {
		logger.Debug("ignore typing frame with bad channel id",
			zap.String("user_id", userID.String()),
			zap.String("channel_id", cmd.ChannelID))
		return
	}

	username, err := g.members.Username(ctx, userID)
	if err != nil {
		logger.Warn("username lookup failed",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		username = "Unknown"
	}

	if err := g.svc.SendTypingIndicator(ctx, channelID, userID, username, cmd.IsTyping); err != nil {
		logger.Error("typing indicator publish failed",
			zap.String("user_id", userID.String()),
			zap.String("channel_id", channelID.String()),
			zap.Error(err))
	}
}

// disconnect runs registry teardown on a fresh context so it completes
// even when the request context is already gone.
func (g *Gateway) disconnect(userID uuid.UUID, connID string) {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	if err := g.mgr.Disconnect(ctx, userID, connID); err != nil {
		logger.Warn("registry disconnect failed",
			zap.String("user_id", userID.String()),
			zap.String("conn_id", connID),
			zap.Error(err))
	}
}

func closeWith(ws *websocket.Conn, code int) {
	deadline := time.Now().Add(writeWait)
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), deadline)
	_ = ws.Close()
}
