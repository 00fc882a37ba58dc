package transport

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"edgelattice/internal/fixedpoint"
)

func TestEncodeDecodeTaskRoundTrip(t *testing.T) {
	f := TaskFrame{
		Seq: 7,
		Tid: 2,
		C:   []int64{3, 9},
		X:   []fixedpoint.Q{fixedpoint.ToFixed(0.1), fixedpoint.ToFixed(-0.2)},
		TS:  1234,
		M:   [][]fixedpoint.Q{{fixedpoint.ToFixed(0.5), fixedpoint.ToFixed(0.25)}},
	}
	data, err := EncodeTask(f)
	require.NoError(t, err)

	frame, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, TagTask, frame.Tag)
	require.NotNil(t, frame.Task)
	require.Equal(t, f, *frame.Task)
}

func TestEncodeDecodeResultRoundTrip(t *testing.T) {
	f := ResultFrame{
		Seq: 7,
		Tid: 1,
		W:   1,
		Y:   []fixedpoint.Q{fixedpoint.ToFixed(0.3)},
		C:   []int64{5, 6},
	}
	data, err := EncodeResult(f)
	require.NoError(t, err)

	frame, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, TagResult, frame.Tag)
	require.Equal(t, f, *frame.Result)
}

func TestEncodeDecodeCommitRoundTrip(t *testing.T) {
	f := CommitFrame{Seq: 42, Sig: []byte("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcd"), PK: "deadbeef"}
	data, err := EncodeCommit(f)
	require.NoError(t, err)

	frame, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, TagCommit, frame.Tag)
	require.Equal(t, f, *frame.Commit)
}

func TestDecodeUnknownTag(t *testing.T) {
	data, err := cbor.Marshal(map[string]string{"t": "NOPE"})
	require.NoError(t, err)
	_, err = Decode(data)
	require.ErrorIs(t, err, ErrUnknownTag)
}

func TestDecodeMalformedPayload(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)
}
