package attribution

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	affiliatedomain "github.com/worldcitisim/affiliates/internal/affiliate/domain"
	"github.com/worldcitisim/affiliates/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Tracking parameters that can never be referral UIDs.
var skipKeys = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_content":  {},
	"utm_term":     {},
	"utm_id":       {},
	"gclid":        {},
	"fbclid":       {},
	"msclkid":      {},
	"ttclid":       {},
	"gbraid":       {},
	"wbraid":       {},
}

const (
	uidMinLen = 4
	uidMaxLen = 128
)

// Attribution is the claim the tracker transfers onto an order.
type Attribution struct {
	AffiliateID snowflake.ID `json:"affiliate_id"`
	UID         string       `json:"uid"`
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Config     config.Config
	Program    *config.ProgramConfigHolder
	Affiliates affiliatedomain.Service
}

// Tracker converts inbound query strings into a persisted referral claim
// and later transfers that claim onto an order. Every miss is a silent
// no-op: attribution never blocks the buyer path.
type Tracker struct {
	log        *zap.Logger
	codec      *CookieCodec
	program    *config.ProgramConfigHolder
	affiliates affiliatedomain.Service
}

func NewTracker(p Params) *Tracker {
	return &Tracker{
		log:        p.Log.Named("attribution.tracker"),
		codec:      NewCookieCodec(p.Config.CookieSecret),
		program:    p.Program,
		affiliates: p.Affiliates,
	}
}

func (t *Tracker) Codec() *CookieCodec { return t.codec }

// CookieDays returns the configured referral cookie lifetime.
func (t *Tracker) CookieDays() int {
	return t.program.Get().CookieDays
}

// Capture walks the query keys in presentation order and returns the UID
// of the first key resolving to an active agent. The empty string means
// no capture, which is the common case and never an error.
func (t *Tracker) Capture(ctx context.Context, rawQuery string) string {
	prefix := t.program.Get().LinkPrefix

	for _, key := range ParseQueryKeys(rawQuery) {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, skip := skipKeys[key]; skip || strings.HasPrefix(key, "utm_") {
			continue
		}
		if len(key) < uidMinLen || len(key) > uidMaxLen {
			continue
		}

		candidate := key
		if prefix != "" && strings.HasPrefix(key, prefix+"-") {
			candidate = key[len(prefix)+1:]
			if candidate == "" {
				continue
			}
		}

		affiliate, err := t.affiliates.GetActiveByUID(ctx, candidate)
		if err != nil {
			if !errors.Is(err, affiliatedomain.ErrNotFound) && !errors.Is(err, affiliatedomain.ErrInactive) {
				t.log.Warn("uid lookup failed", zap.Error(err))
			}
			continue
		}
		// First match wins.
		return affiliate.UID
	}
	return ""
}

// Attach verifies the cookie and resolves the active agent it names.
// A stale cookie for a deactivated or deleted agent attributes nothing.
func (t *Tracker) Attach(ctx context.Context, cookieValue string) (Attribution, bool) {
	if strings.TrimSpace(cookieValue) == "" {
		return Attribution{}, false
	}

	uid, err := t.codec.Decode(cookieValue)
	if err != nil {
		return Attribution{}, false
	}

	affiliate, err := t.affiliates.GetActiveByUID(ctx, uid)
	if err != nil {
		return Attribution{}, false
	}

	return Attribution{AffiliateID: affiliate.ID, UID: affiliate.UID}, true
}
