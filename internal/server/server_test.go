package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	affiliatedomain "github.com/worldcitisim/affiliates/internal/affiliate/domain"
	affiliaterepo "github.com/worldcitisim/affiliates/internal/affiliate/repository"
	affiliateservice "github.com/worldcitisim/affiliates/internal/affiliate/service"
	"github.com/worldcitisim/affiliates/internal/attribution"
	auditrepo "github.com/worldcitisim/affiliates/internal/audit/repository"
	auditservice "github.com/worldcitisim/affiliates/internal/audit/service"
	"github.com/worldcitisim/affiliates/internal/clock"
	"github.com/worldcitisim/affiliates/internal/commission"
	"github.com/worldcitisim/affiliates/internal/config"
	"github.com/worldcitisim/affiliates/internal/export"
	identityrepo "github.com/worldcitisim/affiliates/internal/identity/repository"
	identityservice "github.com/worldcitisim/affiliates/internal/identity/service"
	ledgerrepo "github.com/worldcitisim/affiliates/internal/ledger/repository"
	"github.com/worldcitisim/affiliates/internal/migration"
	"github.com/worldcitisim/affiliates/internal/providers/qr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testAdminToken = "test-admin-token"

func setupServer(t *testing.T) (*Server, affiliatedomain.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	cfg := config.Config{
		Environment:   "test",
		CookieSecret:  "test-secret",
		AdminAPIToken: testAdminToken,
	}
	program := config.NewStaticProgramConfigHolder(config.DefaultProgramConfig())

	ledgerRepo := ledgerrepo.Provide()
	affiliateRepo := affiliaterepo.Provide()

	auditSvc := auditservice.NewService(auditservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, Repo: auditrepo.Provide(),
	})
	provisioner := identityservice.New(identityservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, Repo: identityrepo.Provide(),
	})
	affiliateSvc := affiliateservice.New(affiliateservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
		Repo: affiliateRepo, LedgerRepo: ledgerRepo,
		Provisioner: provisioner, Audit: auditSvc, Program: program,
	})
	tracker := attribution.NewTracker(attribution.Params{
		Log: log, Config: cfg, Program: program, Affiliates: affiliateSvc,
	})
	engine := commission.NewEngine(commission.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
		Affiliates: affiliateRepo, Ledger: ledgerRepo,
		Audit: auditSvc, Program: program,
	})
	exportSvc := export.New(export.Params{
		DB: db, Log: log, Clock: fake,
		Ledger: ledgerRepo, Affiliates: affiliateRepo, Audit: auditSvc,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	srv := NewServer(ServerParams{
		Gin:          r,
		Cfg:          cfg,
		DB:           db,
		Log:          log,
		GenID:        node,
		Program:      program,
		Tracker:      tracker,
		AffiliateSvc: affiliateSvc,
		LedgerRepo:   ledgerRepo,
		Engine:       engine,
		ExportSvc:    exportSvc,
		AuditSvc:     auditSvc,
		QRClient:     qr.NewClient(log),
	})

	return srv, affiliateSvc
}

func createTestAgent(t *testing.T, svc affiliatedomain.Service, uid string) affiliatedomain.Affiliate {
	t.Helper()
	created, err := svc.Create(context.Background(), affiliatedomain.CreateAffiliateRequest{
		Name: "Agent " + uid,
		UID:  uid,
	})
	require.NoError(t, err)
	return created
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

func orderEventBody(eventType string, agent affiliatedomain.Affiliate, orderID string) map[string]any {
	return map[string]any{
		"type": eventType,
		"order": map[string]any{
			"id":       orderID,
			"status":   "completed",
			"currency": "COP",
			"total":    100.0,
			"line_items": []map[string]any{
				{"subtotal": 100.0},
			},
			"metadata": map[string]string{
				"affiliate_uid": agent.UID,
				"affiliate_id":  agent.ID.String(),
			},
		},
	}
}

func TestOrderEventLifecycle(t *testing.T) {
	srv, affiliates := setupServer(t)
	agent := createTestAgent(t, affiliates, "AGENT1")

	w := doJSON(t, srv, http.MethodPost, "/api/orders/events", "",
		orderEventBody("order.completed", agent, "order-1"))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Applied bool   `json:"applied"`
			Reason  string `json:"reason"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Data.Applied)

	// Replayed delivery is a duplicate no-op, still 200.
	w = doJSON(t, srv, http.MethodPost, "/api/orders/events", "",
		orderEventBody("order.completed", agent, "order-1"))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Data.Applied)
	require.Equal(t, "duplicate", resp.Data.Reason)

	// Cancellation settles the order back to zero.
	w = doJSON(t, srv, http.MethodPost, "/api/orders/events", "",
		orderEventBody("order.cancelled", agent, "order-1"))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Data.Applied)

	// Unknown event types are acknowledged and skipped.
	w = doJSON(t, srv, http.MethodPost, "/api/orders/events", "",
		orderEventBody("order.opened", agent, "order-1"))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "ignored_event", resp.Data.Reason)
}

func TestAdminAuthRequired(t *testing.T) {
	srv, _ := setupServer(t)

	w := doJSON(t, srv, http.MethodGet, "/admin/affiliates", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/admin/affiliates", "wrong-token", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/admin/affiliates", testAdminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAdminCreateAndGetAffiliate(t *testing.T) {
	srv, _ := setupServer(t)

	w := doJSON(t, srv, http.MethodPost, "/admin/affiliates", testAdminToken, map[string]any{
		"name":               "Maria Lopez",
		"uid":                "MARIA1",
		"commission_percent": "12.5",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var created struct {
		Data affiliatedomain.Affiliate `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Equal(t, "MARIA1", created.Data.UID)

	w = doJSON(t, srv, http.MethodGet, "/admin/affiliates/"+created.Data.ID.String(), testAdminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "referral_url")

	// Duplicate UID conflicts.
	w = doJSON(t, srv, http.MethodPost, "/admin/affiliates", testAdminToken, map[string]any{
		"name": "Someone Else",
		"uid":  "MARIA1",
	})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestCaptureSetsSignedCookie(t *testing.T) {
	srv, affiliates := setupServer(t)
	createTestAgent(t, affiliates, "AGENT1")

	req := httptest.NewRequest(http.MethodGet, "/?AGENT1", nil)
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == attribution.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "expected attribution cookie")
	require.True(t, cookie.HttpOnly)
	require.True(t, strings.HasPrefix(cookie.Value, "AGENT1."), cookie.Value)

	// The signed value round-trips through checkout attribution.
	body := map[string]any{"cookie": cookie.Value}
	resp := doJSON(t, srv, http.MethodPost, "/api/checkout/attribution", "", body)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"attributed":true`)
	require.Contains(t, resp.Body.String(), "AGENT1")
}

func TestCaptureIgnoresUnknownUID(t *testing.T) {
	srv, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/?NOBODY1", nil)
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	require.Empty(t, w.Result().Cookies())
}

func TestDashboardAuth(t *testing.T) {
	srv, affiliates := setupServer(t)
	agent := createTestAgent(t, affiliates, "AGENT1")

	req := httptest.NewRequest(http.MethodGet, "/dashboard/summary", nil)
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/dashboard/summary", nil)
	req.Header.Set("X-Affiliate-UID", agent.UID)
	w = httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"uid":"AGENT1"`)
	require.Contains(t, w.Body.String(), "balance")
}

func TestExportEndpoint(t *testing.T) {
	srv, affiliates := setupServer(t)
	agent := createTestAgent(t, affiliates, "AGENT1")

	w := doJSON(t, srv, http.MethodPost, "/api/orders/events", "",
		orderEventBody("order.completed", agent, "order-1"))
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/admin/exports", testAdminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Disposition"), "affiliate-commissions-")
	batchID := w.Header().Get("X-Batch-Id")
	require.NotEmpty(t, batchID)
	require.Contains(t, w.Body.String(), "AGENT1")

	w = doJSON(t, srv, http.MethodPost, "/admin/exports/"+batchID+"/paid", testAdminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Nothing left to export.
	w = doJSON(t, srv, http.MethodPost, "/admin/exports", testAdminToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
