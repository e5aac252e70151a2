package tzp

import (
	"crypto/sha256"
	"hash/crc32"
	"strconv"
)

// checksumIEEE is the CRC32 variant spec §4.H and every original_source
// revision uses (zlib.crc32 is IEEE, not Castagnoli).
func checksumIEEE(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// fileChecksum computes the 8-byte truncated SHA-256 stored in the
// container header (spec §4.H, §6). v1 and v2 hash the literal input
// bytes; v3 Ultimate and v3.1 Stable instead hash the decimal string of
// the total uncompressed size, matching
// original_source/tzp_stable.py's `_write_header`
// (`hashlib.sha256(str(total_original).encode()).digest()[:8]`).
func fileChecksum(version Version, data []byte, uncompressedSize uint64) [8]byte {
	var sum [32]byte
	switch version {
	case Version1, Version2:
		sum = sha256.Sum256(data)
	default:
		sum = sha256.Sum256([]byte(strconv.FormatUint(uncompressedSize, 10)))
	}
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}
