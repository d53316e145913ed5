package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapopt/internal/state"
	"github.com/leapstack-labs/leapopt/internal/testutil"
	"github.com/leapstack-labs/leapopt/pkg/compiler"
	"github.com/leapstack-labs/leapopt/pkg/parser"
	"github.com/leapstack-labs/leapopt/pkg/solver"
)

const (
	goodModel = "var x >= 0\nvar y >= 0\nmaximize: 3*x + 2*y\nsubject to:\n  c1: x + y <= 4\n"
	mipModel  = "var n: int >= 0\nminimize: n\nsubject to:\n  n >= 2.5\n"
	badModel  = "maximize: (\n"
)

func newEngine(t *testing.T, store state.Store) *Engine {
	t.Helper()
	return New(Config{
		Store:   store,
		Workers: 2,
		Logger:  testutil.NewTestLogger(t),
	})
}

func TestSplitModels(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "single", text: "a\nb\n", want: []string{"a\nb\n"}},
		{name: "two", text: "a\n---\nb\n", want: []string{"a\n", "b\n"}},
		{name: "blank parts dropped", text: "---\na\n  ---  \n\n---\n", want: []string{"a\n"}},
		{name: "dashes inside a line", text: "a --- b\n", want: []string{"a --- b\n"}},
		{name: "empty", text: "", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitModels(tt.text))
		})
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "b.oml", goodModel)
	testutil.WriteFile(t, dir, "a.los", goodModel)
	testutil.WriteFile(t, dir, "notes.txt", "ignored")
	testutil.WriteFile(t, filepath.Join(dir, "sub"), "c.mod", goodModel)
	testutil.WriteFile(t, filepath.Join(dir, ".hidden"), "d.oml", goodModel)

	paths, err := Discover(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.los"),
		filepath.Join(dir, "b.oml"),
		filepath.Join(dir, "sub", "c.mod"),
	}, paths)

	paths, err = Discover(dir, "*.oml")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.oml")}, paths)

	_, err = Discover(dir, "[")
	assert.ErrorContains(t, err, "invalid pattern")

	_, err = Discover(filepath.Join(dir, "missing"), "")
	assert.Error(t, err)
}

func TestProcessDir(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "good.oml", goodModel)
	testutil.WriteFile(t, dir, "mip.oml", mipModel)
	testutil.WriteFile(t, dir, "bad.oml", badModel)

	store, err := state.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	eng := newEngine(t, store)
	batch, err := eng.ProcessDir(context.Background(), dir, Options{Solve: true})
	require.NoError(t, err)

	require.Len(t, batch.Files, 3)
	assert.NotEmpty(t, batch.ID)
	assert.Equal(t, 2, batch.Succeeded())
	assert.Equal(t, 1, batch.Failed())
	require.Len(t, batch.Errors, 1)
	assert.Contains(t, batch.Summary(), "3 total (2 ok, 1 failed)")

	var fe *FileError
	require.True(t, errors.As(batch.Errors[0], &fe))
	assert.Equal(t, filepath.Join(dir, "bad.oml"), fe.Path)
	var syntaxErr parser.ErrorList
	assert.True(t, errors.As(batch.Err(), &syntaxErr))

	// files are sorted: bad, good, mip
	good := batch.Files[1]
	require.NotNil(t, good.Result)
	assert.Equal(t, solver.StatusOptimal, good.Result.Status)
	assert.InDelta(t, 12.0, *good.Result.Objective, 1e-6)

	mip := batch.Files[2]
	require.NotNil(t, mip.Result)
	assert.InDelta(t, 3.0, *mip.Result.Objective, 1e-6)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	for _, f := range batch.Files {
		assert.NotEmpty(t, f.RecordID)
	}
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "fabrica.oml", goodModel)
	eng := newEngine(t, nil)

	res := eng.ProcessFile(context.Background(), path, false)
	require.NoError(t, res.Err)
	assert.True(t, res.OK())
	assert.Nil(t, res.Result)
	assert.Contains(t, res.Model.Program(), "fabrica")
	assert.Empty(t, res.RecordID)

	res = eng.ProcessFile(context.Background(), filepath.Join(dir, "missing.oml"), false)
	assert.ErrorContains(t, res.Err, "failed to read model")
	assert.False(t, res.OK())
}

func TestProcessText(t *testing.T) {
	eng := newEngine(t, nil)
	text := goodModel + "---\n" + badModel + "---\n" + "var z >= 0\nminimize: z\nsubject to:\n  z >= 1 / 0\n"

	batch, err := eng.ProcessText(context.Background(), text, true)
	require.NoError(t, err)
	require.Len(t, batch.Files, 3)
	assert.Equal(t, "#1", batch.Files[0].Path)
	assert.True(t, batch.Files[0].OK())
	assert.Error(t, batch.Files[1].Err)

	exec := batch.Files[2]
	require.NoError(t, exec.Err)
	require.NotNil(t, exec.Result)
	assert.Equal(t, solver.StatusExecutionError, exec.Result.Status)
	assert.False(t, exec.OK())
	assert.Len(t, batch.Errors, 2)
}

func TestProcessDir_Cancelled(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "good.oml", goodModel)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEngine(t, nil).ProcessDir(ctx, dir, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessDir_CompilerOptions(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "limites.oml", "param cap\nvar x >= 0\nmaximize: x\nsubject to:\n  x <= cap\n")

	eng := New(Config{
		Compiler: compiler.Options{Tables: map[string]any{"cap": 7}},
		Logger:   testutil.NewTestLogger(t),
	})
	batch, err := eng.ProcessDir(context.Background(), dir, Options{Solve: true})
	require.NoError(t, err)
	require.Len(t, batch.Files, 1)
	require.NoError(t, batch.Files[0].Err)
	assert.InDelta(t, 7.0, *batch.Files[0].Result.Objective, 1e-6)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	eng := newEngine(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan *BatchResult, 4)
	done := make(chan error, 1)
	go func() {
		done <- eng.Watch(ctx, dir, Options{}, func(b *BatchResult) { results <- b })
	}()

	// give the watcher time to register
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "m.oml"), []byte(goodModel), 0o644))

	select {
	case b := <-results:
		require.NotEmpty(t, b.Files)
		assert.Equal(t, filepath.Join(dir, "m.oml"), b.Files[0].Path)
		assert.True(t, b.Files[0].OK())
	case <-time.After(5 * time.Second):
		t.Fatal("no batch after writing a model file")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
