package chunking

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// compressFlagRaw marks a block that was stored uncompressed because LZ4
// could not shrink it (common for high-entropy or very small payloads).
const (
	compressFlagBlock = 0
	compressFlagRaw   = 1
)

// compressBlock compresses data with LZ4's block codec and prefixes the
// result with a 4-byte little-endian uncompressed length and a 1-byte
// flag, since LZ4's raw block format needs the decompressed size known
// ahead of time. Falls back to storing the block raw (flag=1) when LZ4
// can't compress it, so a fast block codec never fails on incompressible
// input.
func compressBlock(data []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(data))
	out := make([]byte, 5+bound)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(data)))

	var ht [1 << 16]int
	n, err := lz4.CompressBlock(data, out[5:], ht[:])
	if err != nil {
		return nil, fmt.Errorf("chunking: lz4 compress: %w", err)
	}
	if n == 0 || n >= len(data) {
		out = out[:5+len(data)]
		out[4] = compressFlagRaw
		copy(out[5:], data)
		return out, nil
	}
	out[4] = compressFlagBlock
	return out[:5+n], nil
}

// CompressBlock is the exported form of compressBlock, for callers outside
// this package that need the same independent block codec. Package
// tickstore compresses each column separately rather than one
// concatenated byte stream.
func CompressBlock(data []byte) ([]byte, error) { return compressBlock(data) }

// DecompressBlock is the exported form of decompressBlock.
func DecompressBlock(block []byte) ([]byte, error) { return decompressBlock(block) }

// decompressBlock inverts compressBlock.
func decompressBlock(block []byte) ([]byte, error) {
	if len(block) < 5 {
		return nil, fmt.Errorf("chunking: segment too small to hold a block header")
	}
	uncompressedLen := int(binary.LittleEndian.Uint32(block[0:4]))
	flag := block[4]
	payload := block[5:]

	switch flag {
	case compressFlagRaw:
		if len(payload) != uncompressedLen {
			return nil, fmt.Errorf("chunking: raw block length mismatch: got %d want %d", len(payload), uncompressedLen)
		}
		out := make([]byte, uncompressedLen)
		copy(out, payload)
		return out, nil
	case compressFlagBlock:
		out := make([]byte, uncompressedLen)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("chunking: lz4 decompress: %w", err)
		}
		if n != uncompressedLen {
			return nil, fmt.Errorf("chunking: lz4 decompress length mismatch: got %d want %d", n, uncompressedLen)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("chunking: unknown block flag %d", flag)
	}
}
