package proposal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"edgelattice/internal/fixedpoint"
)

func TestFileSinkPublishWritesJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proposed_state.json")
	sink := NewFileSink(path)

	s := State{Seq: 3, X: []fixedpoint.Q{fixedpoint.ToFixed(0.5), fixedpoint.ToFixed(-0.25)}}
	require.NoError(t, sink.Publish(s))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got State
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, s, got)
}

func TestFileSinkPublishOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proposed_state.json")
	sink := NewFileSink(path)

	require.NoError(t, sink.Publish(State{Seq: 1}))
	require.NoError(t, sink.Publish(State{Seq: 2}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got State
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, uint64(2), got.Seq)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no stray temp files should remain")
}
