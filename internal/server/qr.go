package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	affiliatedomain "github.com/worldcitisim/affiliates/internal/affiliate/domain"
	"github.com/worldcitisim/affiliates/internal/providers/qr"
)

const qrBundleFilename = "worldcitisim-affiliate-qr-codes.zip"

// DownloadQRCode streams one agent's referral QR code as PNG.
func (s *Server) DownloadQRCode(c *gin.Context) {
	affiliate, err := s.affiliateSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	png, err := s.qrClient.FetchPNG(c.Request.Context(), s.affiliateSvc.ReferralURL(affiliate.UID))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+qr.Filename(affiliate.UID, affiliate.Name)+`"`)
	c.Data(http.StatusOK, "image/png", png)
}

// DownloadQRBundle zips a QR code per active agent.
func (s *Server) DownloadQRBundle(c *gin.Context) {
	ctx := c.Request.Context()

	items := make([]qr.Item, 0, 64)
	pageToken := ""
	for {
		page, err := s.affiliateSvc.List(ctx, affiliatedomain.ListAffiliateRequest{
			PageToken: pageToken,
			PageSize:  200,
			Status:    affiliatedomain.StatusActive,
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}
		for _, affiliate := range page.Affiliates {
			items = append(items, qr.Item{
				UID:         affiliate.UID,
				Name:        affiliate.Name,
				ReferralURL: s.affiliateSvc.ReferralURL(affiliate.UID),
			})
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	if len(items) == 0 {
		AbortWithError(c, ErrNotFound)
		return
	}

	bundle, err := s.qrClient.BuildZip(ctx, items)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+qrBundleFilename+`"`)
	c.Data(http.StatusOK, "application/zip", bundle)
}
