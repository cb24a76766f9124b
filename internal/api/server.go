// Package api exposes the back office over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dusk-indust/gestor/internal/boleto"
	"github.com/dusk-indust/gestor/internal/gatewaylog"
	"github.com/dusk-indust/gestor/internal/invoice"
	"github.com/dusk-indust/gestor/internal/pagseguro"
	"github.com/dusk-indust/gestor/internal/pdfmerge"
	"github.com/dusk-indust/gestor/internal/serviceorder"
	"github.com/dusk-indust/gestor/internal/whatsapp"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// Deps are the services the HTTP surface delegates to.
type Deps struct {
	Boletos    *boleto.Service
	Invoices   *invoice.Service
	Orders     *serviceorder.Generator
	Merger     *pdfmerge.Merger
	WhatsApp   *whatsapp.Client
	Timeouts   *whatsapp.TimeoutChecker
	PagSeguro  *pagseguro.Client
	GatewayLog *gatewaylog.Recorder

	// HTTPClient performs the cron self-call to PublicURL.
	HTTPClient *http.Client
	CronSecret string
	PublicURL  string
	Logger     *slog.Logger
}

// Server is the gestor HTTP server.
type Server struct {
	deps   Deps
	logger *slog.Logger
	router *gin.Engine
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// NewServer builds the router with every route registered.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	router := gin.New()
	s := &Server{deps: deps, logger: deps.Logger, router: router}

	router.Use(requestID(), requestLogger(s.logger), gin.CustomRecovery(s.recover))

	router.GET("/healthz", s.handleHealth)
	router.POST("/merge-pdfs", s.handleMergePDFs)

	boletos := router.Group("/boletos")
	{
		boletos.GET("", s.handleListBoletos)
		boletos.POST("", s.handleCreateBoleto)
		boletos.GET("/status-by-invoice", s.handleStatusByInvoice)
		boletos.GET("/check-vencimentos", s.cronAuth(), s.handleCheckDueDates)
		boletos.POST("/:id/marcar-pago", s.handleMarkPaid)
	}

	notas := router.Group("/notas-fiscais")
	{
		notas.GET("", s.handleListInvoices)
		notas.POST("", s.handleCreateInvoice)
		notas.GET("/servicos-municipais", s.handleMunicipalServices)
		notas.GET("/:id", s.handleGetInvoice)
		notas.PUT("/:id", s.handleUpdateInvoice)
		notas.DELETE("/:id", s.handleDeleteInvoice)
		notas.POST("/:id/cancelar", s.handleCancelInvoice)
	}

	orders := router.Group("/ordens-servico")
	{
		orders.GET("/proximo-numero", s.handleNextOrderNumber)
		orders.POST("", s.handleCreateOrder)
	}

	router.GET("/cron/whatsapp-timeouts", s.cronAuth(), s.handleCronTimeouts)

	wa := router.Group("/whatsapp")
	{
		wa.GET("/check-timeouts", s.handleCheckTimeouts)
		wa.POST("/send", s.handleWhatsAppSend)
		wa.GET("/status", s.handleWhatsAppStatus)
	}

	router.GET("/pagseguro/public-key", s.handlePublicKey)

	pagbank := router.Group("/pagbank")
	{
		pagbank.GET("/logs", s.handleListLogs)
		pagbank.DELETE("/logs", s.handleClearLogs)
		pagbank.POST("/webhook", s.handleWebhook)
	}

	return s
}

// Handler returns the router for use with httptest or a custom server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully, waiting at most shutdownTimeout for in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("http.listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("http.shutdown")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func (s *Server) recover(c *gin.Context, rec any) {
	s.logger.Error("http.panic", "path", c.Request.URL.Path, "panic", rec)
	fail(c, http.StatusInternalServerError, "internal server error")
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
