package entry

import "errors"

// ErrRemoved is the "removed signal": the cell is obsolete
// and the caller must re-fetch a fresh cell from the owning map and retry.
var ErrRemoved = errors.New("entry: cell is obsolete (removed)")

// ErrFilterFailed is the "filter-failed signal": a peek's
// fail-fast filter rejected the value. It is returned as a sentinel, not
// panicked — control flow here is a result variant, not an exception.
var ErrFilterFailed = errors.New("entry: filter rejected value")

// ErrIndexUpdate wraps an index/query-manager failure.
// Fatal to the current operation; never retried inside the core.
type ErrIndexUpdate struct {
	Err error
}

func (e *ErrIndexUpdate) Error() string { return "entry: index update failed: " + e.Err.Error() }
func (e *ErrIndexUpdate) Unwrap() error { return e.Err }

// ErrStore wraps a persistent-store failure, surfaced to
// the caller so a transactional operation can roll back.
type ErrStore struct {
	Err error
}

func (e *ErrStore) Error() string { return "entry: store operation failed: " + e.Err.Error() }
func (e *ErrStore) Unwrap() error { return e.Err }

// ErrOffHeapCodec wraps an off-heap marshal/unmarshal failure. The cell's invariants remain intact: set_value never partially
// overwrites the old value on a codec failure.
type ErrOffHeapCodec struct {
	Err error
}

func (e *ErrOffHeapCodec) Error() string { return "entry: off-heap codec failed: " + e.Err.Error() }
func (e *ErrOffHeapCodec) Unwrap() error { return e.Err }

// ErrSanityAssert indicates a programming error — e.g. a transaction
// missing a lock it should hold. Fatal; never recovered.
type ErrSanityAssert struct {
	Msg string
}

func (e *ErrSanityAssert) Error() string { return "entry: sanity assertion failed: " + e.Msg }

// errNoValue is wrapped into ErrOffHeapCodec when valueBytesUnlocked is
// called on an empty slot.
var errNoValue = errors.New("entry: no value present in either representation")
