package entry

import (
	"time"

	"github.com/gridkv/entrycell/mvcc"
	"github.com/gridkv/entrycell/version"
)

// extrasFields is the full set of optional fields extras may carry. It is
// never stored directly on a cell — narrow() always collapses it to the
// smallest concrete shape that still represents it.
type extrasFields struct {
	attrs       map[string]any
	mvccList    *mvcc.List
	obsoleteVer *version.Version
	ttl         time.Duration
	expireTime  int64
}

func (f extrasFields) hasAttrs() bool    { return len(f.attrs) > 0 }
func (f extrasFields) hasMvcc() bool     { return f.mvccList != nil && !f.mvccList.IsEmpty() }
func (f extrasFields) hasObsolete() bool { return f.obsoleteVer != nil }
func (f extrasFields) hasTTL() bool      { return f.ttl != 0 || f.expireTime != 0 }

func (f extrasFields) isDefault() bool {
	return !f.hasAttrs() && !f.hasMvcc() && !f.hasObsolete() && !f.hasTTL()
}

// extras is the shape-shifting composite. A nil extras means "all
// defaults" (TTL eternal, no MVCC, not obsolete, no attributes).
type extras interface {
	fields() extrasFields
}

// narrow returns the smallest extras shape representing f, or nil if f is
// entirely default.
func narrow(f extrasFields) extras {
	switch {
	case f.isDefault():
		return nil
	case f.hasAttrs() && !f.hasMvcc() && !f.hasObsolete() && !f.hasTTL():
		return extrasAttrsOnly{f.attrs}
	case f.hasMvcc() && !f.hasAttrs() && !f.hasObsolete() && !f.hasTTL():
		return extrasMvccOnly{f.mvccList}
	case f.hasObsolete() && !f.hasAttrs() && !f.hasMvcc() && !f.hasTTL():
		return extrasObsoleteOnly{f.obsoleteVer}
	case f.hasTTL() && !f.hasAttrs() && !f.hasMvcc() && !f.hasObsolete():
		return extrasTTLOnly{f.ttl, f.expireTime}
	default:
		return extrasGeneral{f}
	}
}

type extrasAttrsOnly struct{ attrs map[string]any }

func (e extrasAttrsOnly) fields() extrasFields { return extrasFields{attrs: e.attrs} }

type extrasMvccOnly struct{ mvccList *mvcc.List }

func (e extrasMvccOnly) fields() extrasFields { return extrasFields{mvccList: e.mvccList} }

type extrasObsoleteOnly struct{ obsoleteVer *version.Version }

func (e extrasObsoleteOnly) fields() extrasFields { return extrasFields{obsoleteVer: e.obsoleteVer} }

type extrasTTLOnly struct {
	ttl        time.Duration
	expireTime int64
}

func (e extrasTTLOnly) fields() extrasFields {
	return extrasFields{ttl: e.ttl, expireTime: e.expireTime}
}

type extrasGeneral struct{ f extrasFields }

func (e extrasGeneral) fields() extrasFields { return e.f }

// fieldsOf reads the current extras shape, returning the all-default
// extrasFields if e is nil (absent extras).
func fieldsOf(e extras) extrasFields {
	if e == nil {
		return extrasFields{}
	}
	return e.fields()
}
