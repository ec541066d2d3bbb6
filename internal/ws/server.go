package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"chatrelay/internal/relay"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10 // must be < pongWait
	dispatchTimeout = 1900 * time.Millisecond

	defaultReadLimit = 4096
)

// IdentityResolver extracts the authenticated username from the upgrade
// request.
type IdentityResolver interface {
	Resolve(r *http.Request) (string, error)
}

type Config struct {
	ReadLimit int64
	Identity  IdentityResolver // nil trusts the username sent in "join"
}

type WsServer struct {
	relay     *relay.Relay
	router    *Router
	upgrader  websocket.Upgrader
	identity  IdentityResolver
	readLimit int64
}

func NewWsServer(rl *relay.Relay, cfg Config) *WsServer {
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaultReadLimit
	}
	srv := &WsServer{
		relay:  rl,
		router: NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		identity:  cfg.Identity,
		readLimit: cfg.ReadLimit,
	}
	srv.registerHandlers() // ← all WS events configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry‑point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	var identity string
	if s.identity != nil {
		name, err := s.identity.Resolve(ginCtx.Request)
		if err != nil {
			ginCtx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			return
		}
		identity = name
	}

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(s.readLimit)

	cc := &ConnContext{ID: uuid.NewString(), Identity: identity}
	wsConn := &clientConn{rawConn: rawConn}
	s.relay.Connect(cc.ID, identity, wsConn)
	zap.L().Debug("ws.connected", zap.String("conn", cc.ID), zap.String("identity", identity))

	done := make(chan struct{})
	go s.reader(cc, wsConn, done)
	go s.pinger(wsConn, done)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	join := func(ctx context.Context, cc *ConnContext, req JoinRequest) error {
		return s.relay.Join(cc.ID, req.room(), req.Username)
	}
	Register(s.router, relay.EventJoin, join)
	Register(s.router, relay.EventJoinChat, join)

	Register(
		s.router,
		relay.EventMessage,
		func(ctx context.Context, cc *ConnContext, req MessageRequest) error {
			return s.relay.Message(cc.ID, req.room(), req.Username, req.text())
		},
	)
}

// reader processes one connection's frames in arrival order. Every exit
// path releases the connection's membership.
func (s *WsServer) reader(cc *ConnContext, conn *clientConn, done chan struct{}) {
	defer func() {
		close(done)
		s.relay.Disconnect(cc.ID)
		_ = conn.Close()
		zap.L().Debug("ws.disconnected", zap.String("conn", cc.ID))
	}()

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.rawConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("ws.read", zap.String("conn", cc.ID), zap.Error(err))
			}
			return // client closed or errored
		}

		var env relay.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			zap.L().Debug("ws.drop", zap.String("conn", cc.ID), zap.Error(err))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		err = s.router.dispatch(ctx, cc, env)
		cancel()

		// dropped events get no reply
		if err != nil {
			zap.L().Debug("ws.drop",
				zap.String("conn", cc.ID),
				zap.String("event", env.Event),
				zap.Error(err),
			)
		}
	}
}

func (s *WsServer) pinger(conn *clientConn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
