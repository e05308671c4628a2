package resultset

import (
	"io"
	"sort"

	"github.com/tinylib/msgp/msgp"

	"github.com/orneryd/nornicexec/pkg/storage"
	"github.com/orneryd/nornicexec/pkg/value"
)

// ValueType tags each value written by CompactFormatter.
type ValueType int64

const (
	ValueUnknown ValueType = iota
	ValueNull
	ValueString
	ValueInteger
	ValueBoolean
	ValueDouble
	ValueArray
	ValueEdge
	ValueNode
	ValuePath
	ValueMap
)

// ColumnScalar is the only column type the compact header emits.
const ColumnScalar = 1

// CompactFormatter writes a result set as msgpack:
//
//	[ header, rows, stats ]
//	header: [ [ColumnScalar, name], ... ]
//	rows:   [ [ [type, value], ... ], ... ]
//	stats:  [ "Properties set: 1", ... ]
//
// Nodes encode as [id, [labels], [[key, type, value], ...]] and edges as
// [id, type, src, dst, [[key, type, value], ...]].
type CompactFormatter struct{}

func (CompactFormatter) Format(w io.Writer, rs *ResultSet) error {
	mw := msgp.NewWriter(w)
	if err := mw.WriteArrayHeader(3); err != nil {
		return err
	}

	if err := mw.WriteArrayHeader(uint32(len(rs.columns))); err != nil {
		return err
	}
	for _, col := range rs.columns {
		if err := mw.WriteArrayHeader(2); err != nil {
			return err
		}
		if err := mw.WriteInt64(ColumnScalar); err != nil {
			return err
		}
		if err := mw.WriteString(col); err != nil {
			return err
		}
	}

	if err := mw.WriteArrayHeader(uint32(len(rs.rows))); err != nil {
		return err
	}
	for _, row := range rs.rows {
		if err := mw.WriteArrayHeader(uint32(len(row))); err != nil {
			return err
		}
		for _, v := range row {
			if err := writeTyped(mw, v); err != nil {
				return err
			}
		}
	}

	lines := rs.Stats.Lines()
	if err := mw.WriteArrayHeader(uint32(len(lines))); err != nil {
		return err
	}
	for _, l := range lines {
		if err := mw.WriteString(l); err != nil {
			return err
		}
	}
	return mw.Flush()
}

// writeTyped writes [type, value].
func writeTyped(mw *msgp.Writer, v value.Value) error {
	if err := mw.WriteArrayHeader(2); err != nil {
		return err
	}
	return writeValue(mw, v)
}

func writeValue(mw *msgp.Writer, v value.Value) error {
	switch v.Kind() {
	case value.KindNull:
		if err := mw.WriteInt64(int64(ValueNull)); err != nil {
			return err
		}
		return mw.WriteNil()
	case value.KindString:
		if err := mw.WriteInt64(int64(ValueString)); err != nil {
			return err
		}
		return mw.WriteString(v.Str())
	case value.KindInt:
		if err := mw.WriteInt64(int64(ValueInteger)); err != nil {
			return err
		}
		return mw.WriteInt64(v.IntVal())
	case value.KindBool:
		if err := mw.WriteInt64(int64(ValueBoolean)); err != nil {
			return err
		}
		return mw.WriteBool(v.BoolVal())
	case value.KindFloat:
		if err := mw.WriteInt64(int64(ValueDouble)); err != nil {
			return err
		}
		return mw.WriteFloat64(v.FloatVal())
	case value.KindList:
		if err := mw.WriteInt64(int64(ValueArray)); err != nil {
			return err
		}
		if err := mw.WriteArrayHeader(uint32(v.Len())); err != nil {
			return err
		}
		for i := 0; i < v.Len(); i++ {
			if err := writeTyped(mw, v.ListAt(i)); err != nil {
				return err
			}
		}
		return nil
	case value.KindMap:
		if err := mw.WriteInt64(int64(ValueMap)); err != nil {
			return err
		}
		if err := mw.WriteArrayHeader(uint32(v.Len() * 2)); err != nil {
			return err
		}
		for i := 0; i < v.Len(); i++ {
			key, val := v.MapAt(i)
			if err := mw.WriteString(key); err != nil {
				return err
			}
			if err := writeTyped(mw, val); err != nil {
				return err
			}
		}
		return nil
	case value.KindNode:
		if err := mw.WriteInt64(int64(ValueNode)); err != nil {
			return err
		}
		return writeNode(mw, v.Node())
	case value.KindEdge:
		if err := mw.WriteInt64(int64(ValueEdge)); err != nil {
			return err
		}
		return writeEdge(mw, v.Edge())
	case value.KindPath:
		if err := mw.WriteInt64(int64(ValuePath)); err != nil {
			return err
		}
		return writePath(mw, v.Path())
	default:
		if err := mw.WriteInt64(int64(ValueUnknown)); err != nil {
			return err
		}
		return mw.WriteNil()
	}
}

func writeNode(mw *msgp.Writer, n *storage.Node) error {
	if err := mw.WriteArrayHeader(3); err != nil {
		return err
	}
	if err := mw.WriteUint64(uint64(n.ID)); err != nil {
		return err
	}
	if err := mw.WriteArrayHeader(uint32(len(n.Labels))); err != nil {
		return err
	}
	for _, l := range n.Labels {
		if err := mw.WriteString(l); err != nil {
			return err
		}
	}
	return writeProperties(mw, n.Properties)
}

func writeEdge(mw *msgp.Writer, e *storage.Edge) error {
	if err := mw.WriteArrayHeader(5); err != nil {
		return err
	}
	if err := mw.WriteUint64(uint64(e.ID)); err != nil {
		return err
	}
	if err := mw.WriteString(e.Type); err != nil {
		return err
	}
	if err := mw.WriteUint64(uint64(e.StartNode)); err != nil {
		return err
	}
	if err := mw.WriteUint64(uint64(e.EndNode)); err != nil {
		return err
	}
	return writeProperties(mw, e.Properties)
}

func writePath(mw *msgp.Writer, p *value.Path) error {
	if err := mw.WriteArrayHeader(2); err != nil {
		return err
	}
	if err := mw.WriteArrayHeader(uint32(len(p.Nodes))); err != nil {
		return err
	}
	for _, n := range p.Nodes {
		if err := writeTyped(mw, value.NodeRef(n)); err != nil {
			return err
		}
	}
	if err := mw.WriteArrayHeader(uint32(len(p.Edges))); err != nil {
		return err
	}
	for _, e := range p.Edges {
		if err := writeTyped(mw, value.EdgeRef(e)); err != nil {
			return err
		}
	}
	return nil
}

// writeProperties writes [[key, type, value], ...] in key order.
func writeProperties(mw *msgp.Writer, props map[string]any) error {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if err := mw.WriteArrayHeader(uint32(len(keys))); err != nil {
		return err
	}
	for _, k := range keys {
		if err := mw.WriteArrayHeader(3); err != nil {
			return err
		}
		if err := mw.WriteString(k); err != nil {
			return err
		}
		if err := writeValue(mw, value.FromAny(props[k])); err != nil {
			return err
		}
	}
	return nil
}
