package attribution

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// CookieName carries the captured referral UID between visits.
const CookieName = "aff_uid"

var errBadSignature = errors.New("bad_cookie_signature")

// CookieCodec signs the UID so a visitor cannot forge attribution by
// editing the cookie value.
type CookieCodec struct {
	secret []byte
}

func NewCookieCodec(secret string) *CookieCodec {
	return &CookieCodec{secret: []byte(secret)}
}

func (c *CookieCodec) Encode(uid string) string {
	return uid + "." + c.sign(uid)
}

func (c *CookieCodec) Decode(value string) (string, error) {
	idx := strings.LastIndexByte(value, '.')
	if idx <= 0 {
		return "", errBadSignature
	}
	uid, signature := value[:idx], value[idx+1:]
	if !hmac.Equal([]byte(signature), []byte(c.sign(uid))) {
		return "", errBadSignature
	}
	return uid, nil
}

func (c *CookieCodec) sign(uid string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(uid))
	return hex.EncodeToString(mac.Sum(nil))
}
