package resultset

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinylib/msgp/msgp"

	"github.com/orneryd/nornicexec/pkg/record"
	"github.com/orneryd/nornicexec/pkg/storage"
	"github.com/orneryd/nornicexec/pkg/value"
)

func buildResultSet(t *testing.T, limit int) (*ResultSet, *record.Mapping) {
	t.Helper()
	m := record.NewMapping()
	n := m.Register("n")
	name := m.Register("name")
	m.Register("scratch")
	rs := New([]string{"n", "name"}, []int{n, name}, limit, &Statistics{})
	return rs, m
}

func TestResultSet_AddOwnsValues(t *testing.T) {
	rs, m := buildResultSet(t, 0)
	node := &storage.Node{ID: 3, Labels: []string{"Person"}, Properties: map[string]any{"age": int64(40)}}

	r := record.New(m)
	r.AddNode(0, node)
	r.AddScalar(1, value.NewList(value.String("a")))
	r.AddScalar(2, value.Int(99))
	require.NoError(t, rs.Add(r))
	r.Free()

	require.Equal(t, 1, rs.Len())
	row := rs.Row(0)
	assert.Same(t, node, row[0].Node())
	assert.Equal(t, `["a"]`, row[1].String(), "row survives the record being freed")
	assert.Equal(t, []string{"n", "name"}, rs.Columns())
	rs.Free()
	assert.Zero(t, rs.Len())
}

func TestResultSet_Limit(t *testing.T) {
	rs, m := buildResultSet(t, 1)
	r := record.New(m)
	require.NoError(t, rs.Add(r))
	err := rs.Add(r)
	assert.ErrorIs(t, err, ErrRowLimit)
	assert.Equal(t, 1, rs.Len())
}

func TestStatistics(t *testing.T) {
	s := Statistics{PropertiesSet: 2, NodesUpdated: 1}
	s.Add(Statistics{PropertiesSet: 1, PropertiesRemoved: 1, ExecutionTime: 2 * time.Millisecond})

	lines := s.Lines()
	assert.Equal(t, []string{
		"Nodes updated: 1",
		"Properties set: 3",
		"Properties removed: 1",
		"Query internal execution time: 2.000000 milliseconds",
	}, lines)
	assert.Contains(t, s.String(), "Properties set: 3\n")
}

func TestTextFormatter(t *testing.T) {
	rs, m := buildResultSet(t, 0)
	for i := 0; i < 2; i++ {
		r := record.New(m)
		r.AddNode(0, &storage.Node{ID: storage.NodeID(i)})
		r.AddScalar(1, value.String("row"))
		require.NoError(t, rs.Add(r))
		r.Free()
	}
	rs.Stats.PropertiesSet = 1

	var buf bytes.Buffer
	require.NoError(t, rs.Write(&buf, TextFormatter{}))
	assert.Equal(t,
		"n,name\n(0),row\n(1),row\nProperties set: 1\nQuery internal execution time: 0.000000 milliseconds\n",
		buf.String())

	buf.Reset()
	require.NoError(t, rs.Write(&buf, TextFormatter{OmitStats: true}))
	assert.Equal(t, "n,name\n(0),row\n(1),row\n", buf.String())
}

func TestCompactFormatter(t *testing.T) {
	rs, m := buildResultSet(t, 0)
	node := &storage.Node{ID: 7, Labels: []string{"City"}, Properties: map[string]any{"name": "Oslo", "pop": int64(700)}}
	r := record.New(m)
	r.AddNode(0, node)
	r.AddScalar(1, value.Float(1.25))
	require.NoError(t, rs.Add(r))
	r.Free()

	var buf bytes.Buffer
	require.NoError(t, rs.Write(&buf, CompactFormatter{}))

	rd := msgp.NewReader(&buf)
	top, err := rd.ReadArrayHeader()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), top)

	// header
	cols, err := rd.ReadArrayHeader()
	require.NoError(t, err)
	require.Equal(t, uint32(2), cols)
	for _, want := range []string{"n", "name"} {
		sz, err := rd.ReadArrayHeader()
		require.NoError(t, err)
		require.Equal(t, uint32(2), sz)
		typ, err := rd.ReadInt64()
		require.NoError(t, err)
		assert.Equal(t, int64(ColumnScalar), typ)
		name, err := rd.ReadString()
		require.NoError(t, err)
		assert.Equal(t, want, name)
	}

	// rows
	rows, err := rd.ReadArrayHeader()
	require.NoError(t, err)
	require.Equal(t, uint32(1), rows)
	width, err := rd.ReadArrayHeader()
	require.NoError(t, err)
	require.Equal(t, uint32(2), width)

	// node cell: [ValueNode, [id, [labels], [[k, t, v]...]]]
	_, err = rd.ReadArrayHeader()
	require.NoError(t, err)
	typ, err := rd.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(ValueNode), typ)
	_, err = rd.ReadArrayHeader()
	require.NoError(t, err)
	id, err := rd.ReadUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
	labels, err := rd.ReadArrayHeader()
	require.NoError(t, err)
	require.Equal(t, uint32(1), labels)
	label, err := rd.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "City", label)
	props, err := rd.ReadArrayHeader()
	require.NoError(t, err)
	require.Equal(t, uint32(2), props)
	_, err = rd.ReadArrayHeader()
	require.NoError(t, err)
	key, err := rd.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "name", key)
	ptype, err := rd.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(ValueString), ptype)
	pval, err := rd.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "Oslo", pval)
	_, err = rd.ReadArrayHeader()
	require.NoError(t, err)
	key, err = rd.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "pop", key)
	ptype, err = rd.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(ValueInteger), ptype)
	pop, err := rd.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(700), pop)

	// float cell
	_, err = rd.ReadArrayHeader()
	require.NoError(t, err)
	typ, err = rd.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(ValueDouble), typ)
	f, err := rd.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, 1.25, f)

	// stats
	lines, err := rd.ReadArrayHeader()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), lines)
}
