package attribution

import (
	"net/url"
	"strings"
)

// ParseQueryKeys extracts query-string keys in presentation order.
// url.Values loses ordering, and capture is first-match-wins, so the raw
// query is walked directly. The referral UID rides as a bare key
// (?ABC123), which parses as a key with an empty value.
func ParseQueryKeys(rawQuery string) []string {
	if rawQuery == "" {
		return nil
	}

	keys := make([]string, 0, 4)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key := pair
		if idx := strings.IndexByte(pair, '='); idx >= 0 {
			key = pair[:idx]
		}
		decoded, err := url.QueryUnescape(key)
		if err != nil {
			continue
		}
		keys = append(keys, decoded)
	}
	return keys
}
