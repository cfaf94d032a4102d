package qr

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	defaultEndpoint = "https://api.qrserver.com/v1/create-qr-code/"
	defaultSize     = "600x600"
	requestTimeout  = 20 * time.Second
)

var ErrEmptyResponse = errors.New("qr_empty_response")

// Client fetches referral QR codes as PNGs from the qrserver API and can
// bundle a set of them into a ZIP for bulk download.
type Client struct {
	endpoint string
	http     *http.Client
	log      *zap.Logger
}

func NewClient(log *zap.Logger) *Client {
	return &Client{
		endpoint: defaultEndpoint,
		http:     &http.Client{Timeout: requestTimeout},
		log:      log.Named("qr.client"),
	}
}

// FetchPNG returns the QR code image encoding the given referral URL.
func (c *Client) FetchPNG(ctx context.Context, referralURL string) ([]byte, error) {
	endpoint := c.endpoint + "?size=" + defaultSize + "&data=" + url.QueryEscape(referralURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("qr service returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, ErrEmptyResponse
	}
	return body, nil
}

// Item names one QR code inside a bundle.
type Item struct {
	UID         string
	Name        string
	ReferralURL string
}

// BuildZip fetches a QR per item and bundles them. Items whose fetch
// fails are skipped; a bundle with whatever succeeded is still useful.
func (c *Client) BuildZip(ctx context.Context, items []Item) ([]byte, error) {
	var buf bytes.Buffer
	archive := zip.NewWriter(&buf)

	added := 0
	for _, item := range items {
		png, err := c.FetchPNG(ctx, item.ReferralURL)
		if err != nil {
			c.log.Warn("qr fetch failed, skipping",
				zap.String("uid", item.UID),
				zap.Error(err),
			)
			continue
		}
		entry, err := archive.Create(Filename(item.UID, item.Name))
		if err != nil {
			return nil, err
		}
		if _, err := entry.Write(png); err != nil {
			return nil, err
		}
		added++
	}

	if err := archive.Close(); err != nil {
		return nil, err
	}
	if added == 0 {
		return nil, ErrEmptyResponse
	}
	return buf.Bytes(), nil
}

// Filename builds the download name for one agent's QR code.
func Filename(uid, name string) string {
	return "worldcitisim-affiliate-" + uid + "-" + initials(name, uid) + ".png"
}

func initials(name, uid string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		if len(uid) >= 2 {
			return strings.ToUpper(uid[:2])
		}
		return strings.ToUpper(uid)
	}
	parts := strings.Fields(name)
	if len(parts) >= 2 {
		return strings.ToUpper(firstRune(parts[0]) + firstRune(parts[1]))
	}
	return strings.ToUpper(firstRune(parts[0]))
}

func firstRune(s string) string {
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return ""
	}
	return string(r)
}
