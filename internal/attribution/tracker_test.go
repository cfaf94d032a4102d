package attribution

import (
	"context"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	affiliatedomain "github.com/worldcitisim/affiliates/internal/affiliate/domain"
	"github.com/worldcitisim/affiliates/internal/config"
	"go.uber.org/zap"
)

type directoryStub struct {
	agents map[string]affiliatedomain.Affiliate
}

func (d *directoryStub) Create(ctx context.Context, req affiliatedomain.CreateAffiliateRequest) (affiliatedomain.Affiliate, error) {
	return affiliatedomain.Affiliate{}, nil
}

func (d *directoryStub) Update(ctx context.Context, req affiliatedomain.UpdateAffiliateRequest) (affiliatedomain.Affiliate, error) {
	return affiliatedomain.Affiliate{}, nil
}

func (d *directoryStub) BulkGenerate(ctx context.Context, count int) ([]affiliatedomain.Affiliate, error) {
	return nil, nil
}

func (d *directoryStub) GetByID(ctx context.Context, id string) (affiliatedomain.Affiliate, error) {
	return affiliatedomain.Affiliate{}, affiliatedomain.ErrNotFound
}

func (d *directoryStub) GetActiveByUID(ctx context.Context, uid string) (affiliatedomain.Affiliate, error) {
	affiliate, ok := d.agents[uid]
	if !ok {
		return affiliatedomain.Affiliate{}, affiliatedomain.ErrNotFound
	}
	if !affiliate.IsActive() {
		return affiliatedomain.Affiliate{}, affiliatedomain.ErrInactive
	}
	return affiliate, nil
}

func (d *directoryStub) List(ctx context.Context, req affiliatedomain.ListAffiliateRequest) (affiliatedomain.ListAffiliateResponse, error) {
	return affiliatedomain.ListAffiliateResponse{}, nil
}

func (d *directoryStub) UpdatePayoutDetails(ctx context.Context, req affiliatedomain.UpdatePayoutRequest) (affiliatedomain.Affiliate, error) {
	return affiliatedomain.Affiliate{}, nil
}

func (d *directoryStub) Delete(ctx context.Context, id string) error { return nil }

func (d *directoryStub) ReferralURL(uid string) string { return "" }

func newTestTracker(t *testing.T, program config.ProgramConfig, agents map[string]affiliatedomain.Affiliate) *Tracker {
	t.Helper()
	return NewTracker(Params{
		Log:        zap.NewNop(),
		Config:     config.Config{CookieSecret: "test-secret"},
		Program:    config.NewStaticProgramConfigHolder(program),
		Affiliates: &directoryStub{agents: agents},
	})
}

func activeAgent(uid string) affiliatedomain.Affiliate {
	return affiliatedomain.Affiliate{
		ID:     snowflake.ID(42),
		UID:    uid,
		Status: affiliatedomain.StatusActive,
	}
}

func TestParseQueryKeysPreservesOrder(t *testing.T) {
	keys := ParseQueryKeys("FIRST&utm_source=x&SECOND=1&THIRD")
	require.Equal(t, []string{"FIRST", "utm_source", "SECOND", "THIRD"}, keys)
}

func TestParseQueryKeysUnescapes(t *testing.T) {
	keys := ParseQueryKeys("AG%45NT=1")
	require.Equal(t, []string{"AGENT"}, keys)
}

func TestCaptureFirstMatchWins(t *testing.T) {
	tracker := newTestTracker(t, config.DefaultProgramConfig(), map[string]affiliatedomain.Affiliate{
		"AGENT1": activeAgent("AGENT1"),
		"AGENT2": activeAgent("AGENT2"),
	})

	uid := tracker.Capture(context.Background(), "AGENT2&AGENT1")
	require.Equal(t, "AGENT2", uid)
}

func TestCaptureSkipsTrackingKeys(t *testing.T) {
	tracker := newTestTracker(t, config.DefaultProgramConfig(), map[string]affiliatedomain.Affiliate{
		"AGENT1": activeAgent("AGENT1"),
	})

	uid := tracker.Capture(context.Background(),
		"utm_source=google&utm_campaign=sale&gclid=abc123&fbclid=def&AGENT1")
	require.Equal(t, "AGENT1", uid)
}

func TestCaptureSkipsUTMPrefix(t *testing.T) {
	tracker := newTestTracker(t, config.DefaultProgramConfig(), map[string]affiliatedomain.Affiliate{
		"utm_custom": activeAgent("utm_custom"),
	})

	require.Empty(t, tracker.Capture(context.Background(), "utm_custom=1"))
}

func TestCaptureLengthBounds(t *testing.T) {
	long := strings.Repeat("A", 129)
	tracker := newTestTracker(t, config.DefaultProgramConfig(), map[string]affiliatedomain.Affiliate{
		"ABC":  activeAgent("ABC"),
		long:   activeAgent(long),
		"ABCD": activeAgent("ABCD"),
	})

	// Too short and too long are skipped before any lookup.
	uid := tracker.Capture(context.Background(), "ABC&"+long+"&ABCD")
	require.Equal(t, "ABCD", uid)
}

func TestCaptureStripsLinkPrefix(t *testing.T) {
	cfg := config.DefaultProgramConfig()
	cfg.LinkPrefix = "go"
	tracker := newTestTracker(t, cfg, map[string]affiliatedomain.Affiliate{
		"AGENT1": activeAgent("AGENT1"),
	})

	require.Equal(t, "AGENT1", tracker.Capture(context.Background(), "go-AGENT1"))
}

func TestCaptureUnknownUID(t *testing.T) {
	tracker := newTestTracker(t, config.DefaultProgramConfig(), nil)
	require.Empty(t, tracker.Capture(context.Background(), "NOBODY"))
}

func TestCaptureInactiveAgent(t *testing.T) {
	inactive := activeAgent("AGENT1")
	inactive.Status = affiliatedomain.StatusInactive
	tracker := newTestTracker(t, config.DefaultProgramConfig(), map[string]affiliatedomain.Affiliate{
		"AGENT1": inactive,
	})

	require.Empty(t, tracker.Capture(context.Background(), "AGENT1"))
}

func TestCookieCodecRoundTrip(t *testing.T) {
	codec := NewCookieCodec("secret")
	encoded := codec.Encode("AGENT1")

	uid, err := codec.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, "AGENT1", uid)
}

func TestCookieCodecRejectsTampering(t *testing.T) {
	codec := NewCookieCodec("secret")
	encoded := codec.Encode("AGENT1")

	tampered := strings.Replace(encoded, "AGENT1", "AGENT2", 1)
	_, err := codec.Decode(tampered)
	require.Error(t, err)

	_, err = codec.Decode("no-dot-here")
	require.Error(t, err)

	other := NewCookieCodec("different-secret")
	_, err = other.Decode(encoded)
	require.Error(t, err)
}

func TestAttachResolvesActiveAgent(t *testing.T) {
	tracker := newTestTracker(t, config.DefaultProgramConfig(), map[string]affiliatedomain.Affiliate{
		"AGENT1": activeAgent("AGENT1"),
	})

	claim, ok := tracker.Attach(context.Background(), tracker.Codec().Encode("AGENT1"))
	require.True(t, ok)
	require.Equal(t, "AGENT1", claim.UID)
	require.Equal(t, snowflake.ID(42), claim.AffiliateID)
}

func TestAttachStaleCookie(t *testing.T) {
	inactive := activeAgent("AGENT1")
	inactive.Status = affiliatedomain.StatusInactive
	tracker := newTestTracker(t, config.DefaultProgramConfig(), map[string]affiliatedomain.Affiliate{
		"AGENT1": inactive,
	})

	_, ok := tracker.Attach(context.Background(), tracker.Codec().Encode("AGENT1"))
	require.False(t, ok)

	_, ok = tracker.Attach(context.Background(), "")
	require.False(t, ok)

	_, ok = tracker.Attach(context.Background(), "garbage.value")
	require.False(t, ok)
}
