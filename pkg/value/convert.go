package value

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// FromAny converts a storage property into a borrowed Value.
// Unsigned integers above math.MaxInt64 become floats. Typed slices and
// string-keyed maps convert element-wise. Other Go types convert to null.
func FromAny(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null
	case string:
		return Value{kind: KindString, alloc: Volatile, s: val}
	case int:
		return Int(int64(val))
	case int8:
		return Int(int64(val))
	case int16:
		return Int(int64(val))
	case int32:
		return Int(int64(val))
	case int64:
		return Int(val)
	case uint8:
		return Int(int64(val))
	case uint16:
		return Int(int64(val))
	case uint32:
		return Int(int64(val))
	case uint:
		return fromUint(uint64(val))
	case uint64:
		return fromUint(val)
	case float32:
		return Float(float64(val))
	case float64:
		return Float(val)
	case bool:
		return Bool(val)
	case []any:
		items := make([]Value, len(val))
		for i, item := range val {
			items[i] = FromAny(item)
		}
		return Value{kind: KindList, alloc: Volatile, heap: &heap{list: items}}
	case []string:
		items := make([]Value, len(val))
		for i, item := range val {
			items[i] = String(item)
		}
		return Value{kind: KindList, alloc: Volatile, heap: &heap{list: items}}
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]MapEntry, len(keys))
		for i, k := range keys {
			entries[i] = MapEntry{Key: k, Val: FromAny(val[k])}
		}
		return Value{kind: KindMap, alloc: Volatile, heap: &heap{entries: entries}}
	default:
		return fromReflect(reflect.ValueOf(v))
	}
}

func fromUint(u uint64) Value {
	if u > math.MaxInt64 {
		return Float(float64(u))
	}
	return Int(int64(u))
}

// fromReflect handles typed containers such as []int64 or map[string]float64.
func fromReflect(rv reflect.Value) Value {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			items[i] = FromAny(rv.Index(i).Interface())
		}
		return Value{kind: KindList, alloc: Volatile, heap: &heap{list: items}}
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Null
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		entries := make([]MapEntry, len(keys))
		for i, k := range keys {
			mv := rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key()))
			entries[i] = MapEntry{Key: k, Val: FromAny(mv.Interface())}
		}
		return Value{kind: KindMap, alloc: Volatile, heap: &heap{entries: entries}}
	default:
		return Null
	}
}

// ToAny converts v into a plain Go value suitable for storing as a property.
// ok is false for graph entities, paths and composites containing them.
func (v Value) ToAny() (any, bool) {
	switch v.kind {
	case KindNull:
		return nil, true
	case KindString:
		return v.s, true
	case KindInt:
		return v.i, true
	case KindFloat:
		return v.f, true
	case KindBool:
		return v.b, true
	case KindList:
		out := make([]any, len(v.heap.list))
		for i, item := range v.heap.list {
			converted, ok := item.ToAny()
			if !ok {
				return nil, false
			}
			out[i] = converted
		}
		return out, true
	case KindMap:
		out := make(map[string]any, len(v.heap.entries))
		for _, e := range v.heap.entries {
			converted, ok := e.Val.ToAny()
			if !ok {
				return nil, false
			}
			out[e.Key] = converted
		}
		return out, true
	default:
		return nil, false
	}
}

// String renders v as text. Top level strings are verbatim, floats use six
// decimal digits and null is NULL.
func (v Value) String() string {
	var sb strings.Builder
	v.write(&sb, false)
	return sb.String()
}

func (v Value) write(sb *strings.Builder, nested bool) {
	switch v.kind {
	case KindNull:
		sb.WriteString("NULL")
	case KindString:
		if nested {
			sb.WriteString(strconv.Quote(v.s))
		} else {
			sb.WriteString(v.s)
		}
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		fmt.Fprintf(sb, "%f", v.f)
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindNode:
		fmt.Fprintf(sb, "(%d)", v.node.ID)
	case KindEdge:
		fmt.Fprintf(sb, "[%d]", v.edge.ID)
	case KindList:
		sb.WriteByte('[')
		for i, item := range v.heap.list {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.write(sb, true)
		}
		sb.WriteByte(']')
	case KindMap:
		sb.WriteByte('{')
		for i, e := range v.heap.entries {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(e.Key)
			sb.WriteString(": ")
			e.Val.write(sb, true)
		}
		sb.WriteByte('}')
	case KindPath:
		p := v.heap.path
		sb.WriteByte('<')
		for i, n := range p.Nodes {
			if i > 0 {
				e := p.Edges[i-1]
				if e.StartNode == p.Nodes[i-1].ID {
					fmt.Fprintf(sb, "-[%d]->", e.ID)
				} else {
					fmt.Fprintf(sb, "<-[%d]-", e.ID)
				}
			}
			fmt.Fprintf(sb, "(%d)", n.ID)
		}
		sb.WriteByte('>')
	}
}
