package table_test

import (
	"testing"

	"github.com/leapstack-labs/leapopt/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tbl, err := table.New("custos", []string{"Products", "Cost"}, [][]any{
		{"A", 10.0},
		{"B", 12.5},
	})
	require.NoError(t, err)

	assert.Equal(t, "custos", tbl.Name())
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"Products", "Cost"}, tbl.Columns())

	cost, err := tbl.Column("Cost")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(10), 12.5}, cost, "integral floats normalize to int64")

	assert.Equal(t, map[string]any{"Products": "B", "Cost": 12.5}, tbl.Row(1))
	assert.Nil(t, tbl.Row(2))
	assert.Equal(t, "custos(2 rows: Products, Cost)", tbl.String())
}

func TestNew_Errors(t *testing.T) {
	_, err := table.New("t", nil, nil)
	assert.ErrorContains(t, err, "no columns")

	_, err = table.New("t", []string{"a", "a"}, nil)
	assert.ErrorContains(t, err, "duplicate column a")

	_, err = table.New("t", []string{"a", "b"}, [][]any{{1}})
	assert.ErrorContains(t, err, "row 0 has 1 values, expected 2")
}

func TestFromColumns(t *testing.T) {
	tbl, err := table.FromColumns("d", []string{"k", "v"}, map[string][]any{
		"k": {1, 2, 3},
		"v": {"x", "y", "z"},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1), "x"}, {int64(2), "y"}, {int64(3), "z"}}, tbl.Rows())

	_, err = table.FromColumns("d", []string{"k", "v"}, map[string][]any{"k": {1}, "v": {}})
	assert.ErrorContains(t, err, "column v has 0 values, expected 1")

	_, err = table.FromColumns("d", []string{"k"}, map[string][]any{})
	assert.ErrorIs(t, err, table.ErrColumnNotFound)
}

func TestFromRecords(t *testing.T) {
	tbl, err := table.FromRecords("r", []map[string]any{
		{"b": 1, "a": "x"},
		{"a": "y", "c": true},
	}, []string{"a"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, tbl.Columns())
	assert.Equal(t, [][]any{{"x", int64(1), nil}, {"y", nil, true}}, tbl.Rows())
}

func TestTable_Immutable(t *testing.T) {
	rows := [][]any{{"A", 1}}
	tbl, err := table.New("t", []string{"k", "v"}, rows)
	require.NoError(t, err)

	rows[0][0] = "changed"
	col, err := tbl.Column("k")
	require.NoError(t, err)
	col[0] = "mutated"

	again, err := tbl.Column("k")
	require.NoError(t, err)
	assert.Equal(t, []any{"A"}, again)

	cols := tbl.Columns()
	cols[0] = "zzz"
	assert.Equal(t, []string{"k", "v"}, tbl.Columns())
}

func TestTable_IndexAndLookup(t *testing.T) {
	tbl, err := table.New("t", []string{"Produto", "valor"}, [][]any{{"A", 1}})
	require.NoError(t, err)

	indexed, err := tbl.WithIndex("Produto")
	require.NoError(t, err)
	assert.Equal(t, []string{"Produto"}, indexed.Index())
	assert.Empty(t, tbl.Index(), "WithIndex returns a copy")

	_, err = tbl.WithIndex("missing")
	assert.ErrorIs(t, err, table.ErrColumnNotFound)

	name, ok := tbl.Lookup("produto")
	assert.True(t, ok)
	assert.Equal(t, "Produto", name)
	_, ok = tbl.Lookup("preco")
	assert.False(t, ok)

	assert.Equal(t, "other", tbl.WithName("other").Name())
	assert.Equal(t, "t", tbl.Name())
}

func TestTable_Unique(t *testing.T) {
	tbl, err := table.New("t", []string{"p"}, [][]any{{"B"}, {"A"}, {"B"}, {nil}, {"C"}})
	require.NoError(t, err)

	u, err := tbl.Unique("p")
	require.NoError(t, err)
	assert.Equal(t, []any{"B", "A", "C"}, u)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{in: 3, want: int64(3)},
		{in: int32(-4), want: int64(-4)},
		{in: uint8(7), want: int64(7)},
		{in: 2.0, want: int64(2)},
		{in: float32(1.5), want: 1.5},
		{in: 2.25, want: 2.25},
		{in: []byte("ab"), want: "ab"},
		{in: "x", want: "x"},
		{in: true, want: true},
		{in: nil, want: nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, table.Normalize(tt.in), "%v", tt.in)
	}
}

func TestToFloat(t *testing.T) {
	f, ok := table.ToFloat(" 12.5 ")
	assert.True(t, ok)
	assert.InDelta(t, 12.5, f, 1e-12)

	f, ok = table.ToFloat(int16(3))
	assert.True(t, ok)
	assert.InDelta(t, 3.0, f, 1e-12)

	_, ok = table.ToFloat("abc")
	assert.False(t, ok)
	_, ok = table.ToFloat(nil)
	assert.False(t, ok)

	assert.True(t, table.IsNumeric(4.5))
	assert.False(t, table.IsNumeric("4.5"))
}
