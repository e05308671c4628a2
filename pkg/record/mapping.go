// Package record provides the slot-indexed row passed between operators.
//
// Every record of a query shares one Mapping that assigns each alias a slot
// offset at plan construction time. Once the plan is initialized the mapping
// is frozen and may be read concurrently by every cloned plan.
package record

import "fmt"

// Mapping assigns stable slot offsets to names.
//
// Register is not safe for concurrent use; all registration happens while a
// plan is being built, before Freeze.
type Mapping struct {
	offsets map[string]int
	names   []string
	frozen  bool
}

// NewMapping creates an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{offsets: make(map[string]int)}
}

// Register returns the offset of name, assigning the next free offset on
// first use. Registering a new name on a frozen mapping panics.
func (m *Mapping) Register(name string) int {
	if idx, ok := m.offsets[name]; ok {
		return idx
	}
	if m.frozen {
		panic(fmt.Sprintf("record: register %q on frozen mapping", name))
	}
	idx := len(m.names)
	m.offsets[name] = idx
	m.names = append(m.names, name)
	return idx
}

// Lookup returns the offset of name.
func (m *Mapping) Lookup(name string) (int, bool) {
	idx, ok := m.offsets[name]
	return idx, ok
}

// Len is the number of slots a record built from this mapping has.
func (m *Mapping) Len() int { return len(m.names) }

// Names returns the registered names in offset order.
func (m *Mapping) Names() []string {
	return append([]string(nil), m.names...)
}

// Freeze makes the mapping read-only. Freezing a frozen mapping only reads
// the flag, so plans may be cloned from several goroutines at once.
func (m *Mapping) Freeze() {
	if m.frozen {
		return
	}
	m.frozen = true
}

// Frozen reports whether Freeze has been called.
func (m *Mapping) Frozen() bool { return m.frozen }
