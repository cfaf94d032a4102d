package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	affiliatedomain "github.com/worldcitisim/affiliates/internal/affiliate/domain"
	"github.com/worldcitisim/affiliates/internal/reqcontext"
)

const (
	affiliateContextKey = "dashboard_affiliate"

	// The host platform authenticates the agent and forwards their UID.
	affiliateUIDHeader = "X-Affiliate-UID"
)

// AdminAuthRequired gates the admin surface behind the static bearer
// token. An unset token closes the surface entirely.
func (s *Server) AdminAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := s.cfg.AdminAPIToken
		if token == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(presented)), []byte(token)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := reqcontext.WithActor(c.Request.Context(), "admin", "admin_api")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// DashboardAuthRequired resolves the trusted agent UID header to an
// active agent and stashes it for the dashboard handlers.
func (s *Server) DashboardAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader(affiliateUIDHeader))
		if uid == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		affiliate, err := s.affiliateSvc.GetActiveByUID(c.Request.Context(), uid)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := reqcontext.WithActor(c.Request.Context(), "affiliate", affiliate.UID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(affiliateContextKey, affiliate)
		c.Set("affiliate_uid", affiliate.UID)
		c.Next()
	}
}

func dashboardAffiliate(c *gin.Context) (affiliatedomain.Affiliate, bool) {
	value, ok := c.Get(affiliateContextKey)
	if !ok {
		return affiliatedomain.Affiliate{}, false
	}
	affiliate, ok := value.(affiliatedomain.Affiliate)
	return affiliate, ok
}
