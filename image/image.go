// Package image captures a heap as a portable snapshot and restores it.
//
// An Image carries the raw heap bytes together with the fingerprint of
// the schema.Set its values were encoded against, so a receiver holding a
// different schema refuses to read it. Images are framed as deterministic
// CBOR: the same heap and schema always marshal to the same bytes, apart
// from the image ID.
package image

import (
	"io"
	"os"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/wippyai/blockrep/errors"
	"github.com/wippyai/blockrep/heap"
	"github.com/wippyai/blockrep/memory"
	"github.com/wippyai/blockrep/schema"
	"github.com/wippyai/blockrep/value"
)

// FormatVersion is the image framing version written by Marshal.
const FormatVersion = 1

// MaxImageSize bounds the heap size an image may declare. Restoring never
// allocates more than this, or more than the heap capacity when one is
// set, whatever the header claims.
const MaxImageSize = 1 << 30

// Image is a heap snapshot.
type Image struct {
	Format      uint16             `cbor:"1,keyasint"`
	ID          uuid.UUID          `cbor:"2,keyasint"`
	Schema      schema.Fingerprint `cbor:"3,keyasint"`
	Version     uint32             `cbor:"4,keyasint"`
	Root        value.Value        `cbor:"5,keyasint"`
	Used        uint32             `cbor:"6,keyasint"`
	Blocks      int                `cbor:"7,keyasint"`
	Compression Compression        `cbor:"8,keyasint"`
	Payload     []byte             `cbor:"9,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("image: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("image: CBOR decoder initialization failed: " + err.Error())
	}
}

// Capture snapshots h with root as its entry point. The image records
// the fingerprint and version of set, which must be the schema the heap
// values were encoded against.
func Capture(h *heap.Heap, root value.Value, set *schema.Set, c Compression) (*Image, error) {
	if h == nil {
		return nil, errors.NilPointer(errors.PhaseImage, nil, "*heap.Heap")
	}
	if set == nil {
		return nil, errors.NilPointer(errors.PhaseImage, nil, "*schema.Set")
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}

	raw, err := h.Bytes()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseImage, errors.KindMalformedBlock, err, "reading heap")
	}
	payload, used, err := compress(raw, c)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseImage, errors.KindInvalidData, err, "generating image id")
	}
	return &Image{
		Format:      FormatVersion,
		ID:          id,
		Schema:      set.Fingerprint(),
		Version:     set.Version,
		Root:        root,
		Used:        h.Used(),
		Blocks:      h.Blocks(),
		Compression: used,
		Payload:     payload,
	}, nil
}

// Restore loads img into a fresh heap and returns it with the image root.
// The image must have been captured against a schema with the same
// fingerprint as set.
func Restore(img *Image, set *schema.Set, opts ...heap.Option) (*heap.Heap, value.Value, error) {
	if img == nil {
		return nil, 0, errors.NilPointer(errors.PhaseImage, nil, "*image.Image")
	}
	if set == nil {
		return nil, 0, errors.NilPointer(errors.PhaseImage, nil, "*schema.Set")
	}
	if err := img.Check(set); err != nil {
		return nil, 0, err
	}
	return RestoreUnchecked(img, opts...)
}

// RestoreUnchecked is Restore without the schema check. Only the block
// structure of the result can be trusted.
func RestoreUnchecked(img *Image, opts ...heap.Option) (*heap.Heap, value.Value, error) {
	if img == nil {
		return nil, 0, errors.NilPointer(errors.PhaseImage, nil, "*image.Image")
	}
	h := heap.New(memory.NewSlice(0), opts...)
	if err := checkUsed(img.Used, h.Capacity()); err != nil {
		return nil, 0, err
	}
	raw, err := decompress(img.Payload, img.Compression, img.Used)
	if err != nil {
		return nil, 0, err
	}
	if err := h.Load(raw, img.Root); err != nil {
		return nil, 0, err
	}
	if h.Blocks() != img.Blocks {
		return nil, 0, errors.MalformedBlock(errors.PhaseImage, nil,
			"image holds %d blocks, header records %d", h.Blocks(), img.Blocks)
	}
	return h, img.Root, nil
}

// Recompress returns a copy of img with its payload compressed with c.
func Recompress(img *Image, c Compression) (*Image, error) {
	if img == nil {
		return nil, errors.NilPointer(errors.PhaseImage, nil, "*image.Image")
	}
	if err := checkUsed(img.Used, 0); err != nil {
		return nil, err
	}
	raw, err := decompress(img.Payload, img.Compression, img.Used)
	if err != nil {
		return nil, err
	}
	payload, used, err := compress(raw, c)
	if err != nil {
		return nil, err
	}
	out := *img
	out.Compression = used
	out.Payload = payload
	return &out, nil
}

// checkUsed rejects a declared heap size before anything is allocated
// for it.
func checkUsed(used, capacity uint32) error {
	if used > MaxImageSize {
		return errors.MalformedBlock(errors.PhaseImage, nil,
			"image declares %d bytes, limit is %d", used, MaxImageSize)
	}
	if capacity > 0 && used > capacity {
		return errors.ArenaExhausted(errors.PhaseImage, uint64(used), 8, 0, uint64(capacity))
	}
	return nil
}

// Check reports whether img can be read with set.
func (img *Image) Check(set *schema.Set) error {
	if img.Format != FormatVersion {
		return errors.Unsupported(errors.PhaseImage, "image format version "+strconv.Itoa(int(img.Format)))
	}
	if fp := set.Fingerprint(); fp != img.Schema {
		return errors.SchemaMismatch(errors.PhaseImage,
			"image schema %s (version %d) does not match %s (version %d)",
			img.Schema, img.Version, fp, set.Version)
	}
	return nil
}

// Marshal encodes img as deterministic CBOR.
func Marshal(img *Image) ([]byte, error) {
	if img == nil {
		return nil, errors.NilPointer(errors.PhaseImage, nil, "*image.Image")
	}
	data, err := encMode.Marshal(img)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseImage, errors.KindInvalidData, err, "encoding image")
	}
	return data, nil
}

// Unmarshal decodes an image produced by Marshal.
func Unmarshal(data []byte) (*Image, error) {
	var img Image
	if err := decMode.Unmarshal(data, &img); err != nil {
		return nil, errors.Wrap(errors.PhaseImage, errors.KindInvalidData, err, "decoding image")
	}
	if img.Format != FormatVersion {
		return nil, errors.Unsupported(errors.PhaseImage, "image format version "+strconv.Itoa(int(img.Format)))
	}
	return &img, nil
}

// Write marshals img to w.
func Write(w io.Writer, img *Image) error {
	data, err := Marshal(img)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(errors.PhaseImage, errors.KindInvalidData, err, "writing image")
	}
	return nil
}

// Read reads one image from r.
func Read(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseImage, errors.KindInvalidData, err, "reading image")
	}
	return Unmarshal(data)
}

// ReadFile reads the image stored at path.
func ReadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseImage, errors.KindNotFound, err, "opening "+path)
	}
	defer f.Close()
	return Read(f)
}

// WriteFile stores img at path.
func WriteFile(path string, img *Image) error {
	data, err := Marshal(img)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.PhaseImage, errors.KindInvalidData, err, "writing "+path)
	}
	return nil
}
