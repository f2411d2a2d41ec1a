package image

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/wippyai/blockrep/errors"
)

// Compression identifies how an image payload is compressed. The values
// are stored in marshaled images and must not change.
type Compression uint8

const (
	CompressionNone Compression = 0
	// CompressionLZ4 is LZ4 block compression.
	CompressionLZ4 Compression = 1
	// CompressionZstd is zstd at the default level.
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses the name returned by Compression.String.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unknown compression %q", name))
	}
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("image: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxImageSize))
	if err != nil {
		panic("image: zstd decoder initialization failed: " + err.Error())
	}
}

// compress returns data compressed with c. When compression does not
// shrink data the input is returned with CompressionNone.
func compress(data []byte, c Compression) ([]byte, Compression, error) {
	switch c {
	case CompressionNone:
		return data, CompressionNone, nil
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, 0, errors.Wrap(errors.PhaseImage, errors.KindCompressionError, err, "lz4 compress")
		}
		if n == 0 || n >= len(data) {
			return data, CompressionNone, nil
		}
		return dst[:n], CompressionLZ4, nil
	case CompressionZstd:
		out := zstdEncoder.EncodeAll(data, nil)
		if len(out) >= len(data) {
			return data, CompressionNone, nil
		}
		return out, CompressionZstd, nil
	default:
		return nil, 0, errors.Unsupported(errors.PhaseImage, "compression "+c.String())
	}
}

// maxLZ4Ratio is the largest expansion an LZ4 block can encode: each
// length byte adds at most 255 output bytes.
const maxLZ4Ratio = 255

// decompress reverses compress. The result must be exactly size bytes.
// Payloads that cannot expand to size are rejected before size bytes are
// allocated.
func decompress(data []byte, c Compression, size uint32) ([]byte, error) {
	switch c {
	case CompressionNone:
		if len(data) != int(size) {
			return nil, errors.MalformedBlock(errors.PhaseImage, nil,
				"payload has %d bytes, header records %d", len(data), size)
		}
		return data, nil
	case CompressionLZ4:
		if uint64(size) > uint64(len(data))*maxLZ4Ratio+64 {
			return nil, errors.MalformedBlock(errors.PhaseImage, nil,
				"lz4 payload of %d bytes cannot expand to %d", len(data), size)
		}
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(data, dst)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseImage, errors.KindCompressionError, err, "lz4 decompress")
		}
		if n != int(size) {
			return nil, errors.MalformedBlock(errors.PhaseImage, nil,
				"lz4 payload expands to %d bytes, header records %d", n, size)
		}
		return dst, nil
	case CompressionZstd:
		var hdr zstd.Header
		if err := hdr.Decode(data); err != nil {
			return nil, errors.Wrap(errors.PhaseImage, errors.KindCompressionError, err, "zstd frame header")
		}
		if hdr.HasFCS && hdr.FrameContentSize != uint64(size) {
			return nil, errors.MalformedBlock(errors.PhaseImage, nil,
				"zstd frame holds %d bytes, header records %d", hdr.FrameContentSize, size)
		}
		out, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseImage, errors.KindCompressionError, err, "zstd decompress")
		}
		if len(out) != int(size) {
			return nil, errors.MalformedBlock(errors.PhaseImage, nil,
				"zstd payload expands to %d bytes, header records %d", len(out), size)
		}
		return out, nil
	default:
		return nil, errors.Unsupported(errors.PhaseImage, "compression "+c.String())
	}
}
