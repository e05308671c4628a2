package expr

import (
	"fmt"
	"math"

	"github.com/orneryd/nornicexec/pkg/record"
	"github.com/orneryd/nornicexec/pkg/value"
)

// Op is a binary operator.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAnd
	OpOr
)

var opSymbols = map[Op]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpEq: "=", OpNeq: "<>", OpLt: "<", OpLte: "<=", OpGt: ">", OpGte: ">=",
	OpAnd: "AND", OpOr: "OR",
}

func (o Op) String() string {
	if s, ok := opSymbols[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Binary applies an arithmetic, comparison or boolean operator.
//
// Arithmetic and comparison with null yield null. AND and OR use three
// valued logic.
type Binary struct {
	Op    Op
	Left  Expression
	Right Expression
}

func NewBinary(op Op, left, right Expression) *Binary {
	return &Binary{Op: op, Left: left, Right: right}
}

func (b *Binary) Evaluate(r *record.Record) (value.Value, error) {
	l, err := b.Left.Evaluate(r)
	if err != nil {
		return value.Null, err
	}
	defer l.Free()
	rv, err := b.Right.Evaluate(r)
	if err != nil {
		return value.Null, err
	}
	defer rv.Free()

	switch b.Op {
	case OpAnd, OpOr:
		return logical(b.Op, l, rv)
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte:
		return compare(b.Op, l, rv)
	default:
		return arithmetic(b.Op, l, rv)
	}
}

func (b *Binary) Clone() Expression {
	return &Binary{Op: b.Op, Left: b.Left.Clone(), Right: b.Right.Clone()}
}

func (b *Binary) Free() {
	b.Left.Free()
	b.Right.Free()
}

func (b *Binary) String() string {
	return fmt.Sprintf("%s %s %s", b.Left, b.Op, b.Right)
}

func logical(op Op, l, r value.Value) (value.Value, error) {
	lb, lok := l.ToBool()
	rb, rok := r.ToBool()
	if (!lok && !l.IsNull()) || (!rok && !r.IsNull()) {
		return value.Null, fmt.Errorf("%w: %s expects Boolean operands, got %s and %s",
			ErrTypeMismatch, op, l.Kind(), r.Kind())
	}
	if op == OpAnd {
		if (lok && !lb) || (rok && !rb) {
			return value.Bool(false), nil
		}
		if lok && rok {
			return value.Bool(true), nil
		}
		return value.Null, nil
	}
	if (lok && lb) || (rok && rb) {
		return value.Bool(true), nil
	}
	if lok && rok {
		return value.Bool(false), nil
	}
	return value.Null, nil
}

func compare(op Op, l, r value.Value) (value.Value, error) {
	if l.IsNull() || r.IsNull() {
		return value.Null, nil
	}
	switch op {
	case OpEq:
		return value.Bool(value.Equal(l, r)), nil
	case OpNeq:
		return value.Bool(!value.Equal(l, r)), nil
	}

	orderable := (l.IsNumeric() && r.IsNumeric()) || l.Kind() == r.Kind()
	if !orderable {
		return value.Null, nil
	}
	if (l.Kind() == value.KindFloat && math.IsNaN(l.FloatVal())) ||
		(r.Kind() == value.KindFloat && math.IsNaN(r.FloatVal())) {
		return value.Bool(false), nil
	}
	c := value.Compare(l, r)
	switch op {
	case OpLt:
		return value.Bool(c < 0), nil
	case OpLte:
		return value.Bool(c <= 0), nil
	case OpGt:
		return value.Bool(c > 0), nil
	default:
		return value.Bool(c >= 0), nil
	}
}

func arithmetic(op Op, l, r value.Value) (value.Value, error) {
	if l.IsNull() || r.IsNull() {
		return value.Null, nil
	}

	if op == OpAdd {
		switch {
		case l.Kind() == value.KindList || r.Kind() == value.KindList:
			return concatLists(l, r), nil
		case l.Kind() == value.KindString || r.Kind() == value.KindString:
			return value.String(l.String() + r.String()), nil
		}
	}

	if !l.IsNumeric() || !r.IsNumeric() {
		return value.Null, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, l.Kind(), op, r.Kind())
	}

	if l.Kind() == value.KindInt && r.Kind() == value.KindInt {
		a, b := l.IntVal(), r.IntVal()
		switch op {
		case OpAdd:
			return value.Int(a + b), nil
		case OpSub:
			return value.Int(a - b), nil
		case OpMul:
			return value.Int(a * b), nil
		case OpDiv:
			if b == 0 {
				return value.Null, ErrDivisionByZero
			}
			return value.Int(a / b), nil
		case OpMod:
			if b == 0 {
				return value.Null, ErrDivisionByZero
			}
			return value.Int(a % b), nil
		}
	}

	a, b := l.Numeric(), r.Numeric()
	switch op {
	case OpAdd:
		return value.Float(a + b), nil
	case OpSub:
		return value.Float(a - b), nil
	case OpMul:
		return value.Float(a * b), nil
	case OpDiv:
		return value.Float(a / b), nil
	default:
		return value.Float(math.Mod(a, b)), nil
	}
}

func concatLists(l, r value.Value) value.Value {
	var items []value.Value
	for _, side := range []value.Value{l, r} {
		if side.Kind() != value.KindList {
			items = append(items, side.Clone())
			continue
		}
		for i := 0; i < side.Len(); i++ {
			items = append(items, side.ListAt(i).Clone())
		}
	}
	return value.NewList(items...)
}
