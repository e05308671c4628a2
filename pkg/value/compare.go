package value

import "strings"

// orderRank fixes the relative order of different kinds when sorting.
// Numbers of both kinds share a rank and null sorts last.
func orderRank(k Kind) int {
	switch k {
	case KindMap:
		return 0
	case KindNode:
		return 1
	case KindEdge:
		return 2
	case KindList:
		return 3
	case KindPath:
		return 4
	case KindString:
		return 5
	case KindBool:
		return 6
	case KindInt, KindFloat:
		return 7
	default:
		return 8
	}
}

// Compare returns a total order over values: negative if a sorts before b,
// zero if they are equivalent and positive otherwise. NaN sorts after every
// other number.
func Compare(a, b Value) int {
	ra, rb := orderRank(a.kind), orderRank(b.kind)
	if ra != rb {
		return ra - rb
	}

	switch a.kind {
	case KindNull:
		return 0
	case KindString:
		return strings.Compare(a.s, b.s)
	case KindBool:
		return compareBool(a.b, b.b)
	case KindInt, KindFloat:
		return compareNumbers(a, b)
	case KindNode:
		return compareUint(uint64(a.node.ID), uint64(b.node.ID))
	case KindEdge:
		return compareUint(uint64(a.edge.ID), uint64(b.edge.ID))
	case KindList:
		return compareLists(a.heap.list, b.heap.list)
	case KindMap:
		return compareMaps(a.heap.entries, b.heap.entries)
	case KindPath:
		return comparePaths(a.heap.path, b.heap.path)
	}
	return 0
}

// Equal reports structural equality. Two nulls are equal.
func Equal(a, b Value) bool {
	if a.isNaN() || b.isNaN() {
		return false
	}
	return Compare(a, b) == 0
}

func compareNumbers(a, b Value) int {
	if a.kind == KindInt && b.kind == KindInt {
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		}
		return 0
	}
	an, bn := a.isNaN(), b.isNaN()
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	x, y := a.Numeric(), b.Numeric()
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareLists(a, b []Value) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func compareMaps(a, b []MapEntry) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	for i := range a {
		if c := strings.Compare(a[i].Key, b[i].Key); c != 0 {
			return c
		}
		if c := Compare(a[i].Val, b[i].Val); c != 0 {
			return c
		}
	}
	return 0
}

func comparePaths(a, b *Path) int {
	if len(a.Nodes) != len(b.Nodes) {
		return len(a.Nodes) - len(b.Nodes)
	}
	for i := range a.Nodes {
		if c := compareUint(uint64(a.Nodes[i].ID), uint64(b.Nodes[i].ID)); c != 0 {
			return c
		}
	}
	for i := range a.Edges {
		if c := compareUint(uint64(a.Edges[i].ID), uint64(b.Edges[i].ID)); c != 0 {
			return c
		}
	}
	return 0
}
