package entry

import "time"

// Clock abstracts time.Now for deterministic TTL tests, matching the
// generic cache.Clock shape used elsewhere in this repository.
type Clock interface{ NowUnixNano() int64 }

type systemClock struct{}

func (systemClock) NowUnixNano() int64 { return time.Now().UnixNano() }

// SystemClock is the default Clock, backed by time.Now.
var SystemClock Clock = systemClock{}
