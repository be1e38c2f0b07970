package persistence

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hupe1980/openvdb/codec"
	"github.com/hupe1980/openvdb/internal/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() *State {
	s := NewState()
	s.Tenants["acme"] = map[string]*CollectionState{
		"docs": {
			Dimension: 2,
			Vectors: []VectorState{
				{ID: "a", Values: []float32{1, 0}, Metadata: json.RawMessage(`{"k":1}`)},
				{ID: "b", Values: []float32{0.5, -0.25}},
			},
		},
		"empty": {Dimension: 8, Vectors: []VectorState{}},
	}
	return s
}

func TestCompression(t *testing.T) {
	data := bytes.Repeat([]byte(`{"id":"abc","values":[0.1,0.2,0.3]}`), 200)

	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		t.Run(string(c), func(t *testing.T) {
			out, err := compress(data, c)
			require.NoError(t, err)
			if c != CompressionNone {
				assert.Less(t, len(out), len(data))
			}

			back, detected, err := decompress(out)
			require.NoError(t, err)
			assert.Equal(t, c, detected)
			assert.Equal(t, data, back)
		})
	}

	_, err := compress(data, "brotli")
	require.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, c)

	c, err = ParseCompression("lz4")
	require.NoError(t, err)
	assert.Equal(t, CompressionLZ4, c)
	assert.Equal(t, ".lz4", c.Extension())
	assert.Equal(t, ".zst", CompressionZstd.Extension())
	assert.Empty(t, CompressionNone.Extension())

	_, err = ParseCompression("gzip")
	require.Error(t, err)
}

func TestSnapshotEncodeDecode(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		t.Run(name, func(t *testing.T) {
			c, err := codec.Parse(name)
			require.NoError(t, err)

			in := sampleState()
			data, err := EncodeSnapshot(c, in, CompressionZstd)
			require.NoError(t, err)

			out, err := DecodeSnapshot(c, data)
			require.NoError(t, err)
			assert.Equal(t, in.Tenants, out.Tenants)
			assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
			assert.Equal(t, 2, out.Collections())
			assert.Equal(t, 2, out.Vectors())
		})
	}
}

func TestDecodeSnapshot_Invalid(t *testing.T) {
	tests := map[string]string{
		"empty":           ``,
		"not json":        `snapshot`,
		"wrong version":   `{"version":2,"tenants":{}}`,
		"missing tenants": `{"version":1}`,
		"zero dimension":  `{"version":1,"tenants":{"t":{"c":{"dimension":0,"vectors":[]}}}}`,
		"null collection": `{"version":1,"tenants":{"t":{"c":null}}}`,
		"short vector":    `{"version":1,"tenants":{"t":{"c":{"dimension":2,"vectors":[{"id":"a","values":[1]}]}}}}`,
		"duplicate id":    `{"version":1,"tenants":{"t":{"c":{"dimension":1,"vectors":[{"id":"a","values":[1]},{"id":"a","values":[2]}]}}}}`,
		"empty id":        `{"version":1,"tenants":{"t":{"c":{"dimension":1,"vectors":[{"id":"","values":[1]}]}}}}`,
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSnapshot(nil, []byte(doc))
			require.ErrorIs(t, err, ErrCorruptSnapshot)
		})
	}

	t.Run("truncated zstd", func(t *testing.T) {
		data, err := EncodeSnapshot(nil, sampleState(), CompressionZstd)
		require.NoError(t, err)
		_, err = DecodeSnapshot(nil, data[:len(data)/2])
		require.ErrorIs(t, err, ErrCorruptSnapshot)
	})
}

func TestDecodeSnapshot_Empty(t *testing.T) {
	s, err := DecodeSnapshot(nil, []byte(`{"version":1,"created_at":"2026-01-02T03:04:05Z","tenants":{}}`))
	require.NoError(t, err)
	assert.Zero(t, s.Collections())
	assert.Equal(t, 2026, s.CreatedAt.Year())
}

func TestAtomicWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	require.NoError(t, atomicWriteFile(fs.Default, dir, "f.json", []byte("one")))
	require.NoError(t, atomicWriteFile(fs.Default, dir, "f.json", []byte("two")))

	data, err := os.ReadFile(filepath.Join(dir, "f.json"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAtomicWriteFile_Faults(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "f.json")
	require.NoError(t, os.WriteFile(target, []byte("original"), 0o600))

	faulty := fs.NewFaultyFS(fs.Default)

	faulty.AddRule(tempSuffix, fs.Fault{FailAfterBytes: 3})
	err := atomicWriteFile(faulty, dir, "f.json", []byte("replacement"))
	require.ErrorIs(t, err, fs.ErrInjected)

	faulty.Reset()
	faulty.AddRule(tempSuffix, fs.Fault{FailAfterBytes: -1, FailOnSync: true})
	err = atomicWriteFile(faulty, dir, "f.json", []byte("replacement"))
	require.ErrorIs(t, err, fs.ErrInjected)
	assert.True(t, strings.Contains(err.Error(), "sync"))

	faulty.Reset()
	faulty.FailRename(tempSuffix, nil)
	err = atomicWriteFile(faulty, dir, "f.json", []byte("replacement"))
	require.ErrorIs(t, err, fs.ErrInjected)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	_, err = os.Stat(target + tempSuffix)
	assert.True(t, os.IsNotExist(err))
}
