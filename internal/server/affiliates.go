package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	affiliatedomain "github.com/worldcitisim/affiliates/internal/affiliate/domain"
	"github.com/worldcitisim/affiliates/pkg/db/pagination"
)

type affiliatePayload struct {
	Name              string  `json:"name"`
	Email             string  `json:"email"`
	Phone             string  `json:"phone"`
	UID               string  `json:"uid"`
	CommissionPercent string  `json:"commission_percent"`
	NequiPhone        string  `json:"nequi_phone"`
	BankName          string  `json:"bank_name"`
	BankAccountType   string  `json:"bank_account_type"`
	BankAccountNumber string  `json:"bank_account_number"`
	DashboardMode     string  `json:"dashboard_mode"`
	Status            *string `json:"status"`
}

func (p affiliatePayload) commissionPercent() (decimal.Decimal, error) {
	raw := strings.TrimSpace(p.CommissionPercent)
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func (s *Server) CreateAffiliate(c *gin.Context) {
	var req affiliatePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	percent, err := req.commissionPercent()
	if err != nil {
		AbortWithError(c, newValidationError("commission_percent", "invalid_percent", "invalid value"))
		return
	}

	resp, err := s.affiliateSvc.Create(c.Request.Context(), affiliatedomain.CreateAffiliateRequest{
		Name:              strings.TrimSpace(req.Name),
		Email:             strings.TrimSpace(req.Email),
		Phone:             strings.TrimSpace(req.Phone),
		UID:               strings.TrimSpace(req.UID),
		CommissionPercent: percent,
		NequiPhone:        strings.TrimSpace(req.NequiPhone),
		BankName:          strings.TrimSpace(req.BankName),
		BankAccountType:   strings.TrimSpace(req.BankAccountType),
		BankAccountNumber: strings.TrimSpace(req.BankAccountNumber),
		DashboardMode:     strings.TrimSpace(req.DashboardMode),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateAffiliate(c *gin.Context) {
	var req affiliatePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	percent, err := req.commissionPercent()
	if err != nil {
		AbortWithError(c, newValidationError("commission_percent", "invalid_percent", "invalid value"))
		return
	}

	status := affiliatedomain.AffiliateStatus("")
	if req.Status != nil {
		status = affiliatedomain.AffiliateStatus(strings.TrimSpace(*req.Status))
	}

	resp, err := s.affiliateSvc.Update(c.Request.Context(), affiliatedomain.UpdateAffiliateRequest{
		ID:                strings.TrimSpace(c.Param("id")),
		Name:              strings.TrimSpace(req.Name),
		Email:             strings.TrimSpace(req.Email),
		Phone:             strings.TrimSpace(req.Phone),
		CommissionPercent: percent,
		NequiPhone:        strings.TrimSpace(req.NequiPhone),
		BankName:          strings.TrimSpace(req.BankName),
		BankAccountType:   strings.TrimSpace(req.BankAccountType),
		BankAccountNumber: strings.TrimSpace(req.BankAccountNumber),
		DashboardMode:     strings.TrimSpace(req.DashboardMode),
		Status:            status,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) BulkGenerateAffiliates(c *gin.Context) {
	var req struct {
		Count int `json:"count"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	created, err := s.affiliateSvc.BulkGenerate(c.Request.Context(), req.Count)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": created})
}

func (s *Server) GetAffiliateByID(c *gin.Context) {
	resp, err := s.affiliateSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":         resp,
		"referral_url": s.affiliateSvc.ReferralURL(resp.UID),
	})
}

func (s *Server) ListAffiliates(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status     string `form:"status"`
		Search     string `form:"search"`
		WithTotals bool   `form:"with_totals"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.affiliateSvc.List(c.Request.Context(), affiliatedomain.ListAffiliateRequest{
		PageToken:  query.PageToken,
		PageSize:   int32(query.PageSize),
		Status:     affiliatedomain.AffiliateStatus(strings.TrimSpace(query.Status)),
		Search:     strings.TrimSpace(query.Search),
		WithTotals: query.WithTotals,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteAffiliate(c *gin.Context) {
	if err := s.affiliateSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}
