package signedurl

import "time"

const (
	// DefaultLifetimeMinutes applies when a caller leaves the lifetime unset.
	DefaultLifetimeMinutes = 15

	// MaxLifetime is the longest lifetime the storage service accepts.
	MaxLifetime = 7 * 24 * time.Hour
)

// ExpiryPolicy validates and clamps requested lifetimes.
type ExpiryPolicy struct {
	Max time.Duration
}

// DefaultExpiryPolicy clamps to seven days.
var DefaultExpiryPolicy = ExpiryPolicy{Max: MaxLifetime}

func (p ExpiryPolicy) limit() time.Duration {
	if p.Max <= 0 || p.Max > MaxLifetime {
		return MaxLifetime
	}
	return p.Max
}

// Lifetime converts minutes into a duration. Non-positive values fail;
// values above the maximum are truncated to it.
func (p ExpiryPolicy) Lifetime(minutes int) (time.Duration, error) {
	if minutes <= 0 {
		return 0, invalid("lifetime", "lifetime must be positive, got %d minutes", minutes)
	}
	// compare in minutes first so huge values cannot overflow
	limit := p.limit()
	if int64(minutes) > int64(limit/time.Minute) {
		return limit, nil
	}
	return time.Duration(minutes) * time.Minute, nil
}

// Seconds is Lifetime expressed as the X-Goog-Expires value.
func (p ExpiryPolicy) Seconds(minutes int) (int64, error) {
	d, err := p.Lifetime(minutes)
	if err != nil {
		return 0, err
	}
	return int64(d / time.Second), nil
}

// ExpiresAt returns issuedAt+lifetime in UTC.
func ExpiresAt(issuedAt time.Time, lifetime time.Duration) time.Time {
	return issuedAt.Add(lifetime).UTC()
}

// LifetimeOrDefault returns *minutes when set, otherwise fallback, or
// DefaultLifetimeMinutes when fallback is not positive. An explicit zero is
// returned as is so the assembler can reject it.
func LifetimeOrDefault(minutes *int, fallback int) int {
	if minutes != nil {
		return *minutes
	}
	if fallback <= 0 {
		return DefaultLifetimeMinutes
	}
	return fallback
}
