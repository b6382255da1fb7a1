package signedurl

import "time"

// SigningTime is the single instant a URL is signed at, normalized to UTC.
type SigningTime struct {
	time.Time
}

// NewSigningTime converts t to UTC.
func NewSigningTime(t time.Time) SigningTime {
	return SigningTime{Time: t.UTC()}
}

// TimeFormat returns the X-Goog-Date value, e.g. 20250101T000000Z.
func (st SigningTime) TimeFormat() string {
	return st.Time.Format(TimeFormat)
}

// ShortTimeFormat returns the credential scope date, e.g. 20250101.
func (st SigningTime) ShortTimeFormat() string {
	return st.Time.Format(ShortTimeFormat)
}
