package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cottand/tyinfer/frontend/infer"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureSrc = `
builtins: true
methods:
  - name: id
    typeParams: [T]
    params: [T]
    return: T
calls:
  - name: identity
    method: id
    args: [{typed: String}]
    expect: {T: String}
  - name: wrong
    method: id
    args: [{typed: Integer}]
    expect: {T: String}
`

func writeFixture(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calls.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestSolveFile(t *testing.T) {
	path := writeFixture(t, fixtureSrc)
	out := &bytes.Buffer{}

	failures, err := solveFile(context.Background(), out, path, infer.DefaultSettings(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, failures)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, path, lines[0])
	assert.Equal(t, "ok identity: T = String (resolved)", lines[1])
	assert.Equal(t, "FAIL wrong: T = Integer (resolved)", lines[2])
	assert.Equal(t, "    wrong: T = Integer, expected String", lines[3])
}

func TestSolveFileErrors(t *testing.T) {
	_, err := solveFile(context.Background(), &bytes.Buffer{}, filepath.Join(t.TempDir(), "missing.yaml"), infer.DefaultSettings(), false)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = solveFile(ctx, &bytes.Buffer{}, writeFixture(t, fixtureSrc), infer.DefaultSettings(), false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPaint(t *testing.T) {
	assert.Equal(t, "ok", paint("ok", green, false))
	assert.Equal(t, green+"ok"+reset, paint("ok", green, true))
}

func TestUseColor(t *testing.T) {
	mode := "never"
	o := options{color: &mode}
	enabled, err := o.useColor(os.Stdout)
	require.NoError(t, err)
	assert.False(t, enabled)

	mode = "always"
	enabled, err = o.useColor(os.Stdout)
	require.NoError(t, err)
	assert.True(t, enabled)

	mode = "sometimes"
	_, err = o.useColor(os.Stdout)
	assert.Error(t, err)
}

func TestWatchResolvesOnChange(t *testing.T) {
	path := writeFixture(t, fixtureSrc)
	settings := infer.DefaultSettings()
	events := make(chan fsnotify.Event, 2)
	errs := make(chan error)
	out := &bytes.Buffer{}

	events <- fsnotify.Event{Name: filepath.Join(filepath.Dir(path), "other.yaml"), Op: fsnotify.Write}
	events <- fsnotify.Event{Name: path, Op: fsnotify.Write}
	close(events)

	require.NoError(t, watch(context.Background(), out, path, settings, false, events, errs))
	assert.Equal(t, 2, strings.Count(out.String(), "ok identity"), "unrelated files are ignored")
	assert.EqualValues(t, 2, settings.Tracker.Generation())
	assert.Equal(t, 2, settings.Cache.(*infer.MemoryCache).Len(), "older generations are evicted")
}

func TestWatchStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := &bytes.Buffer{}
	err := watch(ctx, out, writeFixture(t, fixtureSrc), infer.DefaultSettings(), false, make(chan fsnotify.Event), make(chan error))
	assert.NoError(t, err)
	assert.Contains(t, out.String(), "inference cancelled")
}
