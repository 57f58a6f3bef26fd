package version

import "sync/atomic"

// LocalSource is the default Source: a single logical node assigning
// monotonically increasing orders under the node's own node order and the
// topology version it was last told about.
type LocalSource struct {
	nodeOrder int32
	dc        byte
	counter   atomic.Int64
	topology  atomic.Int64
}

// NewLocalSource constructs a Source for one local node.
func NewLocalSource(nodeOrder int32, dataCenterID byte) *LocalSource {
	return &LocalSource{nodeOrder: nodeOrder, dc: dataCenterID}
}

// SetTopologyVersion updates the topology version stamped onto future
// versions minted by Next/NextFrom. NextForLoad deliberately ignores it.
func (s *LocalSource) SetTopologyVersion(top int64) {
	s.topology.Store(top)
}

func (s *LocalSource) Next() Version {
	return Version{
		TopologyVersion: s.topology.Load(),
		Order:           s.counter.Add(1),
		NodeOrder:       s.nodeOrder,
		DataCenterID:    s.dc,
	}
}

func (s *LocalSource) NextFrom(prev Version) Version {
	return s.Next()
}

// NextForLoad mints a version whose order still advances (so concurrent
// readers can tell a reload happened) but whose topology version is
// pinned to prev's.
func (s *LocalSource) NextForLoad(prev Version) Version {
	return Version{
		TopologyVersion: prev.TopologyVersion,
		Order:           s.counter.Add(1),
		NodeOrder:       s.nodeOrder,
		DataCenterID:    s.dc,
	}
}

var _ Source = (*LocalSource)(nil)
