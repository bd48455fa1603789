package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// ExpiryWindow is how long before the real expiry a token is already
// treated as expired.
const ExpiryWindow = 30 * time.Second

var ErrNoStoredCredentials = errors.New("no stored credentials, run the authorization flow first")

// Tokens is the persisted Withings credential set. ExpiresAt is epoch seconds.
type Tokens struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresAt    float64 `json:"expires_at"`
	Scope        string  `json:"scope"`
	UserID       *int64  `json:"userid"`
}

func (t *Tokens) Expiry() time.Time {
	sec, frac := math.Modf(t.ExpiresAt)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

// Expired reports whether the access token is within ExpiryWindow of expiry at now.
func (t *Tokens) Expired(now time.Time) bool {
	return !now.Before(t.Expiry().Add(-ExpiryWindow))
}

func (t *Tokens) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry(),
	}
}

func expiresAtFrom(now time.Time, expiresIn int64) float64 {
	expiry := now.Add(time.Duration(expiresIn) * time.Second)
	return float64(expiry.Unix()) + float64(expiry.Nanosecond())/float64(time.Second)
}

// UnmarshalJSON is lenient about number encodings since token files may have
// been written by other tools. An unreadable expiry counts as already expired.
func (t *Tokens) UnmarshalJSON(data []byte) error {
	var raw struct {
		AccessToken  any `json:"access_token"`
		RefreshToken any `json:"refresh_token"`
		ExpiresAt    any `json:"expires_at"`
		Scope        any `json:"scope"`
		UserID       any `json:"userid"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*t = Tokens{
		AccessToken:  stringOf(raw.AccessToken),
		RefreshToken: stringOf(raw.RefreshToken),
		Scope:        stringOf(raw.Scope),
	}
	if expiresAt, ok := floatOf(raw.ExpiresAt); ok {
		t.ExpiresAt = expiresAt
	}
	if userID, ok := floatOf(raw.UserID); ok {
		id := int64(userID)
		t.UserID = &id
	}
	return nil
}

func stringOf(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

func floatOf(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// flexInt decodes a JSON number or a numeric string.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %s", data)
	}
	*f = flexInt(n)
	return nil
}
