// Package update stages attribute changes computed while scanning and
// commits them against storage in one pass.
//
// Deciding what to change (EvalEntityUpdates) is kept apart from applying it
// (CommitUpdates), so every value in a batch is computed from the same view
// of the graph.
package update

import (
	"errors"
	"fmt"

	"github.com/orneryd/nornicexec/pkg/expr"
	"github.com/orneryd/nornicexec/pkg/record"
	"github.com/orneryd/nornicexec/pkg/storage"
	"github.com/orneryd/nornicexec/pkg/value"
)

// Errors returned while staging updates.
var (
	ErrNullProperty        = errors.New("cannot set a property to null in this context")
	ErrInvalidPropertyType = errors.New("invalid property type")
	ErrNotAnEntity         = errors.New("update target is not a node or relationship")
)

// Mode selects how assigned attributes combine with the existing ones.
type Mode int

const (
	// Merge sets the assigned attributes and keeps the rest (SET n.k = v,
	// SET n += {...}).
	Merge Mode = iota
	// Replace drops every attribute that is not assigned (SET n = {...}).
	Replace
)

func (m Mode) String() string {
	if m == Replace {
		return "="
	}
	return "+="
}

// EntityKind separates node and edge updates, which commit differently.
type EntityKind int

const (
	KindNode EntityKind = iota
	KindEdge
)

func (k EntityKind) String() string {
	if k == KindEdge {
		return "relationship"
	}
	return "node"
}

// PropertySetCtx assigns Expr to Key. An empty Key requires Expr to yield a
// map whose entries are all assigned.
type PropertySetCtx struct {
	Key  string
	Expr expr.Expression
}

// EntityUpdateEvalCtx describes every assignment one clause makes to the
// entity bound to Alias.
type EntityUpdateEvalCtx struct {
	Alias      string
	RecordIdx  int
	Mode       Mode
	Properties []PropertySetCtx
}

// NewEntityUpdateEvalCtx resolves alias against the plan mapping.
func NewEntityUpdateEvalCtx(m *record.Mapping, alias string, mode Mode, props ...PropertySetCtx) EntityUpdateEvalCtx {
	return EntityUpdateEvalCtx{
		Alias:      alias,
		RecordIdx:  m.Register(alias),
		Mode:       mode,
		Properties: props,
	}
}

// Clone deep-copies the assignment expressions.
func (c EntityUpdateEvalCtx) Clone() EntityUpdateEvalCtx {
	props := make([]PropertySetCtx, len(c.Properties))
	for i, p := range c.Properties {
		props[i] = PropertySetCtx{Key: p.Key, Expr: p.Expr.Clone()}
	}
	c.Properties = props
	return c
}

// Free releases the assignment expressions.
func (c EntityUpdateEvalCtx) Free() {
	for _, p := range c.Properties {
		p.Expr.Free()
	}
}

// EvalEntityUpdates evaluates ctx against r and stages the result in buf.
//
// Null values remove the attribute when allowNull is set and fail with
// ErrNullProperty otherwise. On error nothing from ctx is staged. A null
// entity slot is skipped.
func EvalEntityUpdates(buf *Buffer, r *record.Record, ctx EntityUpdateEvalCtx, allowNull bool) error {
	var (
		kind  EntityKind
		node  *storage.Node
		edge  *storage.Edge
		props map[string]any
	)
	switch r.Type(ctx.RecordIdx) {
	case record.EntryNode:
		kind, node = KindNode, r.GetNode(ctx.RecordIdx)
		props = node.Properties
	case record.EntryEdge:
		kind, edge = KindEdge, r.GetEdge(ctx.RecordIdx)
		props = edge.Properties
	default:
		if r.Get(ctx.RecordIdx).IsNull() {
			return nil
		}
		return fmt.Errorf("%w: %s is %s", ErrNotAnEntity, ctx.Alias, r.Get(ctx.RecordIdx).Kind())
	}

	changes := newChangeSet()
	for _, p := range ctx.Properties {
		v, err := p.Expr.Evaluate(r)
		if err != nil {
			return fmt.Errorf("failed to evaluate %s.%s: %w", ctx.Alias, p.Key, err)
		}
		err = changes.assign(ctx.Alias, p.Key, v, allowNull)
		v.Free()
		if err != nil {
			return err
		}
	}

	if ctx.Mode == Replace {
		for key := range props {
			if _, assigned := changes.set[key]; !assigned {
				changes.remove(key)
			}
		}
	}

	switch kind {
	case KindNode:
		buf.stageNode(node, changes, ctx.Mode == Replace)
	case KindEdge:
		buf.stageEdge(edge, changes, ctx.Mode == Replace)
	}
	return nil
}

// changeSet is the ordered set/remove batch for one entity.
type changeSet struct {
	set     map[string]any
	removed map[string]struct{}
	order   []string
}

func newChangeSet() *changeSet {
	return &changeSet{set: make(map[string]any), removed: make(map[string]struct{})}
}

func (c *changeSet) touch(key string) {
	if _, ok := c.set[key]; ok {
		return
	}
	if _, ok := c.removed[key]; ok {
		return
	}
	c.order = append(c.order, key)
}

func (c *changeSet) put(key string, v any) {
	c.touch(key)
	delete(c.removed, key)
	c.set[key] = v
}

func (c *changeSet) remove(key string) {
	c.touch(key)
	delete(c.set, key)
	c.removed[key] = struct{}{}
}

// assign converts one evaluated value into set/remove entries.
func (c *changeSet) assign(alias, key string, v value.Value, allowNull bool) error {
	if key == "" {
		if v.Kind() != value.KindMap {
			return fmt.Errorf("%w: %s must be assigned a map, got %s", ErrInvalidPropertyType, alias, v.Kind())
		}
		for i := 0; i < v.Len(); i++ {
			k, entry := v.MapAt(i)
			if err := c.assign(alias, k, entry, allowNull); err != nil {
				return err
			}
		}
		return nil
	}

	if v.IsNull() {
		if !allowNull {
			return fmt.Errorf("%w: %s.%s", ErrNullProperty, alias, key)
		}
		c.remove(key)
		return nil
	}

	converted, ok := v.ToAny()
	if !ok {
		return fmt.Errorf("%w: %s.%s cannot hold %s", ErrInvalidPropertyType, alias, key, v.Kind())
	}
	c.put(key, converted)
	return nil
}

// merge folds later into c; later assignments win.
func (c *changeSet) merge(later *changeSet) {
	for _, key := range later.order {
		if v, ok := later.set[key]; ok {
			c.put(key, v)
		} else {
			c.remove(key)
		}
	}
}

func (c *changeSet) toStorage() storage.PropertyChanges {
	changes := storage.PropertyChanges{Set: make(map[string]any, len(c.set))}
	for _, key := range c.order {
		if v, ok := c.set[key]; ok {
			changes.Set[key] = v
		} else {
			changes.Remove = append(changes.Remove, key)
		}
	}
	return changes
}
