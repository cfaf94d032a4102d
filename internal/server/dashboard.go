package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	affiliatedomain "github.com/worldcitisim/affiliates/internal/affiliate/domain"
)

// GetDashboardSummary returns the agent's earnings rollup. Balance is
// everything not yet paid out; all figures are signed sums, so refund
// adjustments already reduce them.
func (s *Server) GetDashboardSummary(c *gin.Context) {
	affiliate, ok := dashboardAffiliate(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	totals, err := s.ledgerRepo.TotalsByAffiliate(c.Request.Context(), s.db, affiliate.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	mode := affiliate.DashboardMode
	if mode == "" || mode == "default" {
		mode = s.program.Get().DefaultDashboardMode
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"uid":            affiliate.UID,
		"name":           affiliate.Name,
		"dashboard_mode": mode,
		"balance":        totals.Unpaid(),
		"total_paid":     totals.Exported.Add(totals.Paid),
		"total_earned":   totals.Total,
		"totals":         totals,
	}})
}

func (s *Server) ListDashboardCommissions(c *gin.Context) {
	affiliate, ok := dashboardAffiliate(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var query struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	entries, err := s.ledgerRepo.RecentByAffiliate(c.Request.Context(), s.db, affiliate.ID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (s *Server) GetDashboardReferral(c *gin.Context) {
	affiliate, ok := dashboardAffiliate(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"uid":          affiliate.UID,
		"referral_url": s.affiliateSvc.ReferralURL(affiliate.UID),
	}})
}

func (s *Server) UpdateDashboardPayout(c *gin.Context) {
	affiliate, ok := dashboardAffiliate(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req struct {
		NequiPhone        string `json:"nequi_phone"`
		BankName          string `json:"bank_name"`
		BankAccountType   string `json:"bank_account_type"`
		BankAccountNumber string `json:"bank_account_number"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.affiliateSvc.UpdatePayoutDetails(c.Request.Context(), affiliatedomain.UpdatePayoutRequest{
		UID:               affiliate.UID,
		NequiPhone:        strings.TrimSpace(req.NequiPhone),
		BankName:          strings.TrimSpace(req.BankName),
		BankAccountType:   strings.TrimSpace(req.BankAccountType),
		BankAccountNumber: strings.TrimSpace(req.BankAccountNumber),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
