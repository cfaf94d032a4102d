package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	affiliatedomain "github.com/worldcitisim/affiliates/internal/affiliate/domain"
	"github.com/worldcitisim/affiliates/internal/attribution"
	auditdomain "github.com/worldcitisim/affiliates/internal/audit/domain"
	"github.com/worldcitisim/affiliates/internal/commission"
	"github.com/worldcitisim/affiliates/internal/config"
	"github.com/worldcitisim/affiliates/internal/export"
	ledgerdomain "github.com/worldcitisim/affiliates/internal/ledger/domain"
	"github.com/worldcitisim/affiliates/internal/observability"
	obsmiddleware "github.com/worldcitisim/affiliates/internal/observability/logger"
	obsmetrics "github.com/worldcitisim/affiliates/internal/observability/metrics"
	"github.com/worldcitisim/affiliates/internal/providers/qr"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, obsCfg observability.Config, m *obsmetrics.Metrics) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obsmetrics.GinMiddleware(m))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, m *obsmetrics.Metrics) *gin.Engine {
	return NewEngine(cfg, obsCfg, m)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	program      *config.ProgramConfigHolder
	tracker      *attribution.Tracker
	affiliateSvc affiliatedomain.Service
	ledgerRepo   ledgerdomain.Repository
	engineSvc    *commission.Engine
	exportSvc    *export.Service
	auditSvc     auditdomain.Service
	qrClient     *qr.Client
	obsMetrics   *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Program      *config.ProgramConfigHolder
	Tracker      *attribution.Tracker
	AffiliateSvc affiliatedomain.Service
	LedgerRepo   ledgerdomain.Repository
	Engine       *commission.Engine
	ExportSvc    *export.Service
	AuditSvc     auditdomain.Service
	QRClient     *qr.Client
	ObsMetrics   *obsmetrics.Metrics
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		log:          p.Log.Named("http.server"),
		genID:        p.GenID,
		program:      p.Program,
		tracker:      p.Tracker,
		affiliateSvc: p.AffiliateSvc,
		ledgerRepo:   p.LedgerRepo,
		engineSvc:    p.Engine,
		exportSvc:    p.ExportSvc,
		auditSvc:     p.AuditSvc,
		qrClient:     p.QRClient,
		obsMetrics:   p.ObsMetrics,
	}

	svc.registerPublicRoutes()
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerDashboardRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPublicRoutes() {
	capture := attribution.GinMiddleware(s.tracker, s.cfg.CookieSecure, s.obsMetrics)

	s.engine.GET("/", capture, s.ReferralLanding)
	s.engine.GET("/r", capture, s.ReferralLanding)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/checkout/attribution", s.CheckoutAttribution)
	api.POST("/orders/events", s.HandleOrderEvent)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.AdminAuthRequired())

	admin.GET("/affiliates", s.ListAffiliates)
	admin.POST("/affiliates", s.CreateAffiliate)
	admin.POST("/affiliates/bulk", s.BulkGenerateAffiliates)
	admin.GET("/affiliates/qr-bundle", s.DownloadQRBundle)
	admin.GET("/affiliates/:id", s.GetAffiliateByID)
	admin.PATCH("/affiliates/:id", s.UpdateAffiliate)
	admin.DELETE("/affiliates/:id", s.DeleteAffiliate)
	admin.GET("/affiliates/:id/qr", s.DownloadQRCode)

	admin.GET("/commissions/rollups", s.GetCommissionRollups)
	admin.GET("/orders/:id/commissions", s.ListOrderCommissions)

	admin.POST("/exports", s.ExportPayoutBatch)
	admin.POST("/exports/:batch_id/paid", s.MarkBatchPaid)

	admin.GET("/program", s.GetProgramConfig)
	admin.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) registerDashboardRoutes() {
	dashboard := s.engine.Group("/dashboard")
	dashboard.Use(s.DashboardAuthRequired())

	dashboard.GET("/summary", s.GetDashboardSummary)
	dashboard.GET("/commissions", s.ListDashboardCommissions)
	dashboard.GET("/referral", s.GetDashboardReferral)
	dashboard.PUT("/payout", s.UpdateDashboardPayout)
}

// ReferralLanding lands referral clicks: the capture middleware has
// already set the cookie, so the buyer just bounces to the storefront.
func (s *Server) ReferralLanding(c *gin.Context) {
	c.Redirect(http.StatusFound, s.program.Get().StoreURL)
}
