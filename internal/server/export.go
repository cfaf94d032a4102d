package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// ExportPayoutBatch builds the payout CSV and streams it back. Every
// pending row flips to exported as a side effect.
func (s *Server) ExportPayoutBatch(c *gin.Context) {
	batch, err := s.exportSvc.BuildPayoutBatch(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+batch.Filename+`"`)
	c.Header("X-Batch-Id", batch.BatchID)
	c.Header("X-Batch-Entries", strconv.Itoa(batch.Entries))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", batch.CSV)
}

func (s *Server) MarkBatchPaid(c *gin.Context) {
	batchID := strings.TrimSpace(c.Param("batch_id"))
	marked, err := s.exportSvc.MarkBatchPaid(c.Request.Context(), batchID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"batch_id": batchID,
		"entries":  marked,
	}})
}

func (s *Server) GetCommissionRollups(c *gin.Context) {
	rollups, err := s.ledgerRepo.GlobalRollups(c.Request.Context(), s.db)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rollups})
}

// GetProgramConfig exposes the running program policy. Read-only: the
// policy file is the source of truth and reloads on change.
func (s *Server) GetProgramConfig(c *gin.Context) {
	cfg := s.program.Get()
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"default_commission_percent": cfg.DefaultCommissionPercent,
		"commission_base":            cfg.CommissionBase,
		"cookie_days":                cfg.CookieDays,
		"link_prefix":                cfg.LinkPrefix,
		"store_url":                  cfg.StoreURL,
		"default_dashboard_mode":     cfg.DefaultDashboardMode,
		"allow_edit_payout":          cfg.AllowEditPayout,
		"enable_utm":                 cfg.EnableUTM,
	}})
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	var query struct {
		ResourceType string `form:"resource_type"`
		ResourceID   string `form:"resource_id"`
		Limit        int    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(query.ResourceType) == "" {
		AbortWithError(c, newValidationError("resource_type", "invalid_resource_type", "invalid value"))
		return
	}

	logs, err := s.auditSvc.ListByResource(c.Request.Context(),
		strings.TrimSpace(query.ResourceType), strings.TrimSpace(query.ResourceID), query.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs})
}
