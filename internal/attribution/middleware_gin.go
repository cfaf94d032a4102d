package attribution

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/worldcitisim/affiliates/internal/observability/metrics"
)

// GinMiddleware captures referral UIDs on public routes and persists the
// match in the signed attribution cookie.
func GinMiddleware(tracker *Tracker, secure bool, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawQuery := c.Request.URL.RawQuery
		if rawQuery == "" {
			c.Next()
			return
		}

		uid := tracker.Capture(c.Request.Context(), rawQuery)
		if uid == "" {
			m.IncAttributionCapture("no_match")
			c.Next()
			return
		}

		maxAge := tracker.CookieDays() * 24 * 60 * 60
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     CookieName,
			Value:    tracker.Codec().Encode(uid),
			Path:     "/",
			MaxAge:   maxAge,
			Secure:   secure,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		c.Set("affiliate_uid", uid)
		m.IncAttributionCapture("captured")

		c.Next()
	}
}
