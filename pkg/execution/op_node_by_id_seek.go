package execution

import (
	"errors"
	"fmt"
	"math"

	"github.com/orneryd/nornicexec/pkg/record"
	"github.com/orneryd/nornicexec/pkg/storage"
)

// UnsignedRange bounds a node id scan.
type UnsignedRange struct {
	Min, Max               uint64
	IncludeMin, IncludeMax bool
}

// normalize converts the range to inclusive bounds. An empty range comes
// back with min > max.
func (r UnsignedRange) normalize() (minID, maxID uint64) {
	minID, maxID = r.Min, r.Max
	if !r.IncludeMin {
		if minID == math.MaxUint64 {
			return 1, 0
		}
		minID++
	}
	if !r.IncludeMax {
		if maxID == 0 {
			return 1, 0
		}
		maxID--
	}
	return minID, maxID
}

// consumeMode selects the Consume behavior picked at Init.
type consumeMode int

const (
	seekStandalone consumeMode = iota
	seekFromChild
)

// NodeByIDSeek emits the live nodes whose id falls in a range, in ascending
// id order.
//
// With a child, the range is scanned once per child row and every match is
// returned as a copy of that row with the node added.
type NodeByIDSeek struct {
	OpBase
	alias     string
	nodeIdx   int
	minID     uint64
	maxID     uint64
	currentID uint64
	empty     bool

	mode        consumeMode
	childRecord *record.Record
}

// NewNodeByIDSeek creates a seek binding matches to alias.
func NewNodeByIDSeek(plan *Plan, alias string, rng UnsignedRange) *NodeByIDSeek {
	op := &NodeByIDSeek{OpBase: newOpBase(plan, OpNodeByIDSeek), alias: alias}
	op.nodeIdx = op.Modifies(alias)
	op.minID, op.maxID = rng.normalize()
	op.empty = op.minID > op.maxID
	op.currentID = op.minID
	return op
}

// Init clamps the upper bound to the ids storage has handed out so far.
func (op *NodeByIDSeek) Init() error {
	count := op.Graph().UncompactedNodeCount()
	if count == 0 {
		op.empty = true
	} else if op.maxID > count-1 {
		op.maxID = count - 1
	}
	if op.minID > op.maxID {
		op.empty = true
	}
	op.currentID = op.minID
	if op.ChildCount() > 0 {
		op.mode = seekFromChild
	}
	return nil
}

// seek advances the cursor to the next live node in range.
func (op *NodeByIDSeek) seek() (*storage.Node, bool) {
	if op.empty {
		return nil, false
	}
	graph := op.Graph()
	for op.currentID <= op.maxID {
		id := op.currentID
		op.currentID++
		n, err := graph.GetNode(storage.NodeID(id))
		if err == nil {
			return n, true
		}
		if !errors.Is(err, storage.ErrNotFound) {
			op.Abort(fmt.Errorf("node by id seek %d: %w", id, err))
			return nil, false
		}
	}
	return nil, false
}

func (op *NodeByIDSeek) Consume() *record.Record {
	if op.mode == seekFromChild {
		return op.consumeFromChild()
	}
	n, ok := op.seek()
	if !ok {
		return nil
	}
	r := op.CreateRecord()
	r.AddNode(op.nodeIdx, n)
	return r
}

// consumeFromChild replays the range for the held child row. When the
// range runs dry it pulls one fresh child row and retries once before
// reporting end of stream for this call.
func (op *NodeByIDSeek) consumeFromChild() *record.Record {
	if op.childRecord == nil {
		op.childRecord = op.ConsumeChild(0)
		if op.childRecord == nil {
			return nil
		}
		op.currentID = op.minID
	}

	n, ok := op.seek()
	if !ok {
		if op.Plan().Context().Aborted() {
			return nil
		}
		op.childRecord.Free()
		op.childRecord = op.ConsumeChild(0)
		if op.childRecord == nil {
			return nil
		}
		op.currentID = op.minID
		if n, ok = op.seek(); !ok {
			return nil
		}
	}

	r := op.childRecord.Clone()
	r.AddNode(op.nodeIdx, n)
	return r
}

// Reset rewinds the cursor. A held child row is kept and replayed.
func (op *NodeByIDSeek) Reset() error {
	op.currentID = op.minID
	return nil
}

// Clone scans the same, already normalized, id span.
func (op *NodeByIDSeek) Clone(plan *Plan) Operator {
	rng := UnsignedRange{Min: op.minID, Max: op.maxID, IncludeMin: true, IncludeMax: true}
	if op.empty {
		rng = UnsignedRange{Min: 0, Max: 0}
	}
	return NewNodeByIDSeek(plan, op.alias, rng)
}

func (op *NodeByIDSeek) Free() {
	if op.childRecord != nil {
		op.childRecord.Free()
		op.childRecord = nil
	}
}

func (op *NodeByIDSeek) describe() string {
	if op.empty {
		return fmt.Sprintf("(%s) empty range", op.alias)
	}
	return fmt.Sprintf("(%s) %d <= id(%s) <= %d", op.alias, op.minID, op.alias, op.maxID)
}
