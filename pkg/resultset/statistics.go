// Package resultset collects query output rows and statistics and renders
// them as text or as compact msgpack.
package resultset

import (
	"fmt"
	"strings"
	"time"
)

// Statistics counts the side effects of a query.
type Statistics struct {
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	NodesUpdated         int
	RelationshipsUpdated int
	PropertiesSet        int
	PropertiesRemoved    int

	ExecutionTime time.Duration
}

// Add accumulates other into s.
func (s *Statistics) Add(other Statistics) {
	s.NodesCreated += other.NodesCreated
	s.NodesDeleted += other.NodesDeleted
	s.RelationshipsCreated += other.RelationshipsCreated
	s.RelationshipsDeleted += other.RelationshipsDeleted
	s.NodesUpdated += other.NodesUpdated
	s.RelationshipsUpdated += other.RelationshipsUpdated
	s.PropertiesSet += other.PropertiesSet
	s.PropertiesRemoved += other.PropertiesRemoved
	s.ExecutionTime += other.ExecutionTime
}

// Lines renders every non zero counter followed by the execution time.
func (s *Statistics) Lines() []string {
	counters := []struct {
		label string
		n     int
	}{
		{"Nodes created", s.NodesCreated},
		{"Nodes deleted", s.NodesDeleted},
		{"Relationships created", s.RelationshipsCreated},
		{"Relationships deleted", s.RelationshipsDeleted},
		{"Nodes updated", s.NodesUpdated},
		{"Relationships updated", s.RelationshipsUpdated},
		{"Properties set", s.PropertiesSet},
		{"Properties removed", s.PropertiesRemoved},
	}

	var lines []string
	for _, c := range counters {
		if c.n > 0 {
			lines = append(lines, fmt.Sprintf("%s: %d", c.label, c.n))
		}
	}
	ms := float64(s.ExecutionTime) / float64(time.Millisecond)
	lines = append(lines, fmt.Sprintf("Query internal execution time: %f milliseconds", ms))
	return lines
}

// String joins Lines with newlines.
func (s *Statistics) String() string {
	return strings.Join(s.Lines(), "\n")
}
