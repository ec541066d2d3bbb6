package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"chatrelay/internal/http/chathandler"
	"chatrelay/internal/registry"
	"chatrelay/internal/services/history"
	"chatrelay/internal/ws"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abrar71/swaggerfilesv2" // swagger embed files
)

type httpServer struct {
	listenPort uint16
	srv        http.Server
	ln         net.Listener
	historySvc history.IHistoryService
	reg        *registry.Registry
	wsSrv      *ws.WsServer
	ctx        context.Context
}

// historySvc may be nil when no database is configured.
func NewHttpServer(ctx context.Context, listenPort uint16, wsSrv *ws.WsServer, reg *registry.Registry, historySvc history.IHistoryService) *httpServer {
	return &httpServer{
		listenPort: listenPort,
		wsSrv:      wsSrv,
		reg:        reg,
		historySvc: historySvc,
		ctx:        ctx,
	}
}

// Handler builds the gin engine with every route mounted.
func (h *httpServer) Handler() http.Handler {
	routerEngine := gin.New()

	// Swagger UI and API specs
	routerEngine.StaticFS("/swagger-apis", http.FS(swaggerfilesv2.FS))

	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	// websocket endpoint
	routerEngine.GET("/ws", h.wsSrv.Handle)

	// REST API
	ch := chathandler.New(h.historySvc, h.reg)
	ch.Register(routerEngine)

	return routerEngine
}

// Start blocks serving until Dispose is called.
func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	h.srv = http.Server{
		Handler: h.Handler(),
	}
	zap.L().Info("http_listen", zap.String("addr", listenAddr))

	if err := h.srv.Serve(h.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in‑flight requests to finish.
func (h *httpServer) Dispose() error {
	// The parent ctx is usually already cancelled by the time we get here.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), 10*time.Second)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err // e.g. active conns didn’t finish in time
	}
	return nil
}
