package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/orneryd/nornicexec/pkg/execution"
	"github.com/orneryd/nornicexec/pkg/expr"
	"github.com/orneryd/nornicexec/pkg/update"
	"github.com/orneryd/nornicexec/pkg/value"
)

// nodeAlias is the alias every CLI plan binds scanned nodes to.
const nodeAlias = "n"

// propAssign is a parsed key=value argument.
type propAssign struct {
	Key string
	Val value.Value
}

// scanOptions describes the optional operators stacked on a range scan.
type scanOptions struct {
	Range   execution.UnsignedRange
	Where   *propAssign
	OrderBy string
	Desc    bool
	Skip    uint64
	Limit   uint64
	Return  []string
}

// buildScanPlan builds
// Results <- Project <- [Limit] <- [Skip] <- [Sort] <- [Filter] <- NodeByIdSeek.
func buildScanPlan(q *execution.QueryContext, opts scanOptions) *execution.Plan {
	plan := execution.NewPlan(q)
	top := stackFilter(plan, execution.NewNodeByIDSeek(plan, nodeAlias, opts.Range), opts.Where)

	if opts.OrderBy != "" {
		top = stack(execution.NewSort(plan, execution.SortKey{Expr: nodeProperty(plan, opts.OrderBy), Descending: opts.Desc}), top)
	}
	if opts.Skip > 0 {
		top = stack(execution.NewSkip(plan, opts.Skip), top)
	}
	if opts.Limit > 0 {
		top = stack(execution.NewLimit(plan, opts.Limit), top)
	}

	columns := []string{nodeAlias}
	exprs := []expr.Aliased{{Expr: expr.NewVariable(plan.Mapping(), nodeAlias), Alias: nodeAlias}}
	if len(opts.Return) > 0 {
		columns = columns[:0]
		exprs = exprs[:0]
		for _, key := range opts.Return {
			alias := nodeAlias + "." + key
			columns = append(columns, alias)
			exprs = append(exprs, expr.Aliased{Expr: nodeProperty(plan, key), Alias: alias})
		}
	}
	top = stack(execution.NewProject(plan, exprs), top)
	plan.SetRoot(stack(execution.NewResults(plan, columns...), top))
	return plan
}

// buildSetPlan builds Results <- Project <- Update <- [Filter] <- NodeByIdSeek.
// An assignment of null removes the property.
func buildSetPlan(q *execution.QueryContext, rng execution.UnsignedRange, where *propAssign, assigns []propAssign, replace bool) *execution.Plan {
	plan := execution.NewPlan(q)
	top := stackFilter(plan, execution.NewNodeByIDSeek(plan, nodeAlias, rng), where)

	mode := update.Merge
	if replace {
		mode = update.Replace
	}
	props := make([]update.PropertySetCtx, len(assigns))
	for i, a := range assigns {
		props[i] = update.PropertySetCtx{Key: a.Key, Expr: expr.NewConstant(a.Val)}
	}
	ctx := update.NewEntityUpdateEvalCtx(plan.Mapping(), nodeAlias, mode, props...)
	top = stack(execution.NewUpdate(plan, true, ctx), top)

	proj := execution.NewProject(plan, []expr.Aliased{{Expr: expr.NewVariable(plan.Mapping(), nodeAlias), Alias: nodeAlias}})
	top = stack(proj, top)
	plan.SetRoot(stack(execution.NewResults(plan, nodeAlias), top))
	return plan
}

func stack(parent, child execution.Operator) execution.Operator {
	parent.AddChild(child)
	return parent
}

func stackFilter(plan *execution.Plan, top execution.Operator, where *propAssign) execution.Operator {
	if where == nil {
		return top
	}
	pred := expr.NewBinary(expr.OpEq, nodeProperty(plan, where.Key), expr.NewConstant(where.Val))
	return stack(execution.NewFilter(plan, pred), top)
}

func nodeProperty(plan *execution.Plan, key string) expr.Expression {
	return expr.NewProperty(expr.NewVariable(plan.Mapping(), nodeAlias), key)
}

// parseAssignment splits "key=value" and parses the value as a literal.
func parseAssignment(s string) (propAssign, error) {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return propAssign{}, fmt.Errorf("invalid assignment %q: expected key=value", s)
	}
	return propAssign{Key: key, Val: parseLiteral(raw)}, nil
}

// parseLiteral reads an empty string or "null" as null, then tries
// integer, float and boolean before falling back to a string. Quoted
// values are always strings.
func parseLiteral(raw string) value.Value {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "null") {
		return value.Null
	}
	if len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\'') && raw[len(raw)-1] == raw[0] {
		return value.String(raw[1 : len(raw)-1])
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return value.Int(i)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return value.Float(f)
	}
	switch strings.ToLower(raw) {
	case "true":
		return value.Bool(true)
	case "false":
		return value.Bool(false)
	}
	return value.String(raw)
}
