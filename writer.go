package tzp

import (
	"bytes"
	"encoding/binary"
)

// stableHeaderSize and stableEntrySize are the exact on-disk widths of
// the v3.1 Stable shape (spec §6), the only revision this package
// writes; older revisions are read-only compatibility targets decoded
// by reader.go.
const (
	stableHeaderSize = 48
	stableEntrySize  = 24
)

// writeContainer serializes blocks (already run through the Block
// Pipeline, in ascending block_id order) into the v3.1 Stable byte
// layout described in spec §6, matching
// original_source/tzp_stable.py's _write_header/_write_block_table
// field order and widths exactly.
func writeContainer(blocks []*Block, uncompressedSize uint64, baseBlockSize uint32) []byte {
	offsets := payloadOffsets(blocks)

	var buf bytes.Buffer
	buf.Grow(stableHeaderSize + stableEntrySize*len(blocks) + totalCompressedSize(blocks))

	checksum := fileChecksum(Version3Stable, nil, uncompressedSize)

	var header [stableHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], Magic3Stable)
	binary.LittleEndian.PutUint16(header[4:6], uint16(Version3Stable))
	binary.LittleEndian.PutUint16(header[6:8], FlagOptimized)
	binary.LittleEndian.PutUint64(header[8:16], uncompressedSize)
	binary.LittleEndian.PutUint32(header[16:20], uint32(len(blocks)))
	binary.LittleEndian.PutUint32(header[20:24], baseBlockSize)
	copy(header[24:32], checksum[:])
	// header[32:48] stays zeroed (16 reserved bytes).
	buf.Write(header[:])

	for i, b := range blocks {
		var entry [stableEntrySize]byte
		binary.LittleEndian.PutUint64(entry[0:8], offsets[i])
		binary.LittleEndian.PutUint32(entry[8:12], uint32(len(b.CompressedBytes)))
		binary.LittleEndian.PutUint32(entry[12:16], uint32(len(b.OriginalBytes)))
		entry[16] = byte(b.AlgorithmID)
		entry[17] = byte(b.BlockFlags)
		binary.LittleEndian.PutUint32(entry[18:22], b.CRC32)
		// entry[22:24] stays zeroed (2 reserved bytes).
		buf.Write(entry[:])
	}

	for _, b := range blocks {
		buf.Write(b.CompressedBytes)
	}

	return buf.Bytes()
}

func totalCompressedSize(blocks []*Block) int {
	n := 0
	for _, b := range blocks {
		n += len(b.CompressedBytes)
	}
	return n
}
