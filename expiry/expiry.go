// Package expiry implements the expiry-policy collaborator.
// ForCreate/ForUpdate/ForAccess return a TTL or one of the sentinel values
// below. Sentinels are negative durations so they can never collide with a
// real, caller-requested TTL (which is always >= 0).
package expiry

import "time"

const (
	// NotChanged means "keep the entry's current TTL".
	NotChanged time.Duration = -1
	// Zero means "expire immediately" — on an atomic UPDATE this degrades
	// the operation to DELETE.
	Zero time.Duration = -2
	// Eternal means "no TTL" (the cell's ttl field becomes 0).
	Eternal time.Duration = -3
	// Minimum is the smallest positive TTL a caller may set explicitly;
	// translating a forbidden TTLZero write into "expire immediately"
	// uses this value with a past expire time.
	Minimum time.Duration = time.Millisecond
)

// Policy is the expiry-policy collaborator.
type Policy interface {
	ForCreate() time.Duration
	ForUpdate() time.Duration
	ForAccess() time.Duration
}

// Fixed returns the same TTL for creation and update and leaves access
// alone (NotChanged), the common "TTL set once at insertion" policy.
type Fixed struct {
	TTL time.Duration
}

func (f Fixed) ForCreate() time.Duration { return f.TTL }
func (f Fixed) ForUpdate() time.Duration { return f.TTL }
func (f Fixed) ForAccess() time.Duration { return NotChanged }

// Sliding extends the TTL on every access and update, implementing an
// idle-timeout policy.
type Sliding struct {
	TTL time.Duration
}

func (s Sliding) ForCreate() time.Duration { return s.TTL }
func (s Sliding) ForUpdate() time.Duration { return s.TTL }
func (s Sliding) ForAccess() time.Duration { return s.TTL }

var (
	_ Policy = Fixed{}
	_ Policy = Sliding{}
)
