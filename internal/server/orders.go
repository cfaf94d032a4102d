package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/worldcitisim/affiliates/internal/attribution"
	"github.com/worldcitisim/affiliates/internal/commission"
	ledgerdomain "github.com/worldcitisim/affiliates/internal/ledger/domain"
	orderdomain "github.com/worldcitisim/affiliates/internal/order/domain"
	"go.uber.org/zap"
)

// Order lifecycle event types accepted on the webhook.
const (
	eventOrderCompleted     = "order.completed"
	eventOrderRefundCreated = "order.refund_created"
	eventOrderRefunded      = "order.refunded"
	eventOrderCancelled     = "order.cancelled"
	eventOrderFailed        = "order.failed"
)

type orderEventRequest struct {
	Type   string              `json:"type"`
	Order  orderdomain.Order   `json:"order"`
	Refund *orderdomain.Refund `json:"refund"`
}

// CheckoutAttribution transfers the cookie claim onto checkout metadata.
// The storefront calls this at checkout start with the buyer's cookie
// value; an unattributed checkout is the common case, not an error.
func (s *Server) CheckoutAttribution(c *gin.Context) {
	var req struct {
		Cookie string `json:"cookie"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	cookieValue := strings.TrimSpace(req.Cookie)
	if cookieValue == "" {
		if raw, err := c.Cookie(attribution.CookieName); err == nil {
			cookieValue = raw
		}
	}

	claim, ok := s.tracker.Attach(c.Request.Context(), cookieValue)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"attributed": false}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"attributed": true,
		"metadata": gin.H{
			orderdomain.MetaAffiliateUID: claim.UID,
			orderdomain.MetaAffiliateID:  claim.AffiliateID.String(),
		},
	}})
}

// HandleOrderEvent dispatches order lifecycle events to the commission
// engine. The response is always 200: a storage failure is logged and
// reported in the body, but never propagates a non-2xx back into the
// storefront's order pipeline.
func (s *Server) HandleOrderEvent(c *gin.Context) {
	var req orderEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	eventType := strings.TrimSpace(req.Type)
	if eventType == "" || strings.TrimSpace(req.Order.ID) == "" {
		AbortWithError(c, invalidRequestError())
		return
	}
	s.obsMetrics.IncOrderEvent(eventType)

	ctx := c.Request.Context()
	var (
		outcome commission.Outcome
		err     error
	)
	switch eventType {
	case eventOrderCompleted:
		outcome, err = s.engineSvc.CreateCommission(ctx, req.Order)
	case eventOrderRefundCreated:
		if req.Refund == nil {
			AbortWithError(c, newValidationError("refund", "invalid_refund", "invalid value"))
			return
		}
		outcome, err = s.engineSvc.ApplyRefund(ctx, req.Order, *req.Refund)
	case eventOrderRefunded, eventOrderCancelled, eventOrderFailed:
		reason := "order_" + strings.TrimPrefix(eventType, "order.")
		outcome, err = s.engineSvc.SettleToZero(ctx, req.Order, reason)
	default:
		c.JSON(http.StatusOK, gin.H{"data": gin.H{
			"applied": false,
			"reason":  "ignored_event",
		}})
		return
	}

	if err != nil {
		s.log.Error("order event processing failed",
			zap.String("event_type", eventType),
			zap.String("order_id", req.Order.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"data": gin.H{
			"applied": false,
			"reason":  "storage_error",
		}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": outcome})
}

// ListOrderCommissions exposes the full signed history for one order.
func (s *Server) ListOrderCommissions(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("id"))
	if orderID == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	entries, err := s.ledgerRepo.ListByOrder(c.Request.Context(), s.db, orderID, ledgerdomain.EntryFilter{})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries})
}
