package image

import (
	"bytes"
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/blockrep/errors"
	"github.com/wippyai/blockrep/heap"
	"github.com/wippyai/blockrep/memory"
	"github.com/wippyai/blockrep/schema"
	"github.com/wippyai/blockrep/value"
)

func testSet(version uint32) *schema.Set {
	return schema.NewSet(version).
		MustAdd("entry", schema.Product("entry",
			schema.Named("key", schema.String()),
			schema.Named("count", schema.Int()),
			schema.Named("next", schema.Option(schema.Ref("entry")))))
}

// buildHeap writes a chain of n entries with compressible keys.
func buildHeap(t *testing.T, n int) (*heap.Heap, value.Value) {
	t.Helper()
	h := heap.New(memory.NewSlice(0))
	next := value.None
	for i := 0; i < n; i++ {
		key, err := h.AllocString(bytes.Repeat([]byte("k"), 32))
		require.NoError(t, err)
		entry, err := h.AllocBlock(0, 3)
		require.NoError(t, err)
		require.NoError(t, h.SetField(entry, 0, key))
		require.NoError(t, h.SetField(entry, 1, value.Int(int64(i))))
		require.NoError(t, h.SetField(entry, 2, next))
		some, err := h.AllocBlock(0, 1)
		require.NoError(t, err)
		require.NoError(t, h.SetField(some, 0, entry))
		next = some
	}
	return h, next
}

func TestImage_RoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			set := testSet(1)
			h, root := buildHeap(t, 50)

			img, err := Capture(h, root, set, c)
			require.NoError(t, err)
			assert.Equal(t, c, img.Compression)
			assert.Equal(t, set.Fingerprint(), img.Schema)
			assert.Equal(t, h.Blocks(), img.Blocks)
			if c != CompressionNone {
				assert.Less(t, len(img.Payload), int(img.Used))
			}

			data, err := Marshal(img)
			require.NoError(t, err)
			decoded, err := Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, img, decoded)

			restored, r, err := Restore(decoded, set)
			require.NoError(t, err)
			assert.Equal(t, root, r)
			assert.Equal(t, h.Blocks(), restored.Blocks())

			want, err := h.Bytes()
			require.NoError(t, err)
			got, err := restored.Bytes()
			require.NoError(t, err)
			assert.Equal(t, want, got)

			n, err := heap.Compare(h, root, restored, r)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestImage_Deterministic(t *testing.T) {
	set := testSet(1)
	h, root := buildHeap(t, 5)

	img, err := Capture(h, root, set, CompressionZstd)
	require.NoError(t, err)
	a, err := Marshal(img)
	require.NoError(t, err)
	b, err := Marshal(img)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestImage_IncompressibleFallsBack(t *testing.T) {
	noise := make([]byte, 512)
	_, err := rand.Read(noise)
	require.NoError(t, err)

	h := heap.New(memory.NewSlice(0))
	v, err := h.AllocString(noise)
	require.NoError(t, err)

	img, err := Capture(h, v, testSet(1), CompressionLZ4)
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, img.Compression)
	assert.Len(t, img.Payload, int(img.Used))
}

func TestImage_SchemaMismatch(t *testing.T) {
	h, root := buildHeap(t, 2)
	img, err := Capture(h, root, testSet(1), CompressionNone)
	require.NoError(t, err)

	_, _, err = Restore(img, testSet(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrSchemaMismatch)

	other := schema.NewSet(1).MustAdd("entry", schema.Product("entry",
		schema.Named("key", schema.Bytes())))
	_, _, err = Restore(img, other)
	assert.ErrorIs(t, err, errors.ErrSchemaMismatch)
}

func TestImage_Corrupt(t *testing.T) {
	set := testSet(1)
	h, root := buildHeap(t, 3)

	t.Run("size", func(t *testing.T) {
		img, err := Capture(h, root, set, CompressionNone)
		require.NoError(t, err)
		img.Used += 8
		_, _, err = Restore(img, set)
		assert.Equal(t, errors.KindMalformedBlock, errors.KindOf(err))
	})

	t.Run("blocks", func(t *testing.T) {
		img, err := Capture(h, root, set, CompressionNone)
		require.NoError(t, err)
		img.Blocks++
		_, _, err = Restore(img, set)
		assert.Equal(t, errors.KindMalformedBlock, errors.KindOf(err))
	})

	t.Run("declared size", func(t *testing.T) {
		img, err := Capture(h, root, set, CompressionLZ4)
		require.NoError(t, err)
		img.Used = 1 << 30
		_, _, err = Restore(img, set)
		assert.Equal(t, errors.KindMalformedBlock, errors.KindOf(err))
		_, err = Recompress(img, CompressionZstd)
		assert.Equal(t, errors.KindMalformedBlock, errors.KindOf(err))

		img.Used = MaxImageSize + 8
		_, _, err = RestoreUnchecked(img)
		assert.Equal(t, errors.KindMalformedBlock, errors.KindOf(err))
	})

	t.Run("zstd frame size", func(t *testing.T) {
		big, bigRoot := buildHeap(t, 20)
		img, err := Capture(big, bigRoot, set, CompressionZstd)
		require.NoError(t, err)
		require.Equal(t, CompressionZstd, img.Compression)
		img.Used *= 4
		_, _, err = Restore(img, set)
		assert.Equal(t, errors.KindMalformedBlock, errors.KindOf(err))
	})

	t.Run("payload", func(t *testing.T) {
		img, err := Capture(h, root, set, CompressionZstd)
		require.NoError(t, err)
		img.Payload = []byte("not zstd")
		_, _, err = Restore(img, set)
		assert.Equal(t, errors.KindCompressionError, errors.KindOf(err))
	})

	t.Run("framing", func(t *testing.T) {
		_, err := Unmarshal([]byte{0xff, 0x00})
		assert.Equal(t, errors.KindInvalidData, errors.KindOf(err))
	})

	t.Run("format", func(t *testing.T) {
		img, err := Capture(h, root, set, CompressionNone)
		require.NoError(t, err)
		img.Format = FormatVersion + 1
		data, err := Marshal(img)
		require.NoError(t, err)
		_, err = Unmarshal(data)
		assert.Equal(t, errors.KindUnsupported, errors.KindOf(err))
	})
}

func TestImage_Capacity(t *testing.T) {
	set := testSet(1)
	h, root := buildHeap(t, 10)
	img, err := Capture(h, root, set, CompressionNone)
	require.NoError(t, err)

	_, _, err = Restore(img, set, heap.WithCapacity(64))
	assert.ErrorIs(t, err, errors.ErrArenaExhausted)

	img.Used = MaxImageSize
	_, _, err = RestoreUnchecked(img, heap.WithCapacity(1<<20))
	assert.ErrorIs(t, err, errors.ErrArenaExhausted)
}

func TestImage_File(t *testing.T) {
	set := testSet(1)
	h, root := buildHeap(t, 4)
	img, err := Capture(h, root, set, CompressionLZ4)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "heap.img")
	require.NoError(t, WriteFile(path, img))
	loaded, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, img.ID, loaded.ID)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCompression("gzip")
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))
}

func TestImage_Recompress(t *testing.T) {
	set := testSet(1)
	h, root := buildHeap(t, 20)
	img, err := Capture(h, root, set, CompressionNone)
	require.NoError(t, err)

	for _, c := range []Compression{CompressionLZ4, CompressionZstd, CompressionNone} {
		out, err := Recompress(img, c)
		require.NoError(t, err)
		assert.Equal(t, c, out.Compression)
		assert.Equal(t, img.ID, out.ID)
		assert.Equal(t, img.Schema, out.Schema)

		restored, r, err := Restore(out, set)
		require.NoError(t, err)
		n, err := heap.Compare(h, root, restored, r)
		require.NoError(t, err)
		assert.Zero(t, n)
		img = out
	}
}

func TestImage_RestoreUnchecked(t *testing.T) {
	h, root := buildHeap(t, 3)
	img, err := Capture(h, root, testSet(1), CompressionLZ4)
	require.NoError(t, err)

	restored, r, err := RestoreUnchecked(img)
	require.NoError(t, err)
	assert.Equal(t, root, r)
	assert.Equal(t, h.Blocks(), restored.Blocks())
}
