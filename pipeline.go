package tzp

import (
	"encoding/binary"
	"hash/crc32"
)

// revisionGateThreshold returns the not-worth-compressing gate applied
// after encoding a block: a compressed block is kept only if it is
// smaller than this fraction of the bytes handed to the codec. The
// three historical revisions disagree on the threshold; TZP only ever
// writes Version3Stable, so 0.98 is the only value a live encode uses,
// but the full table is kept since the gate is a property of the
// format revision, not just of this writer.
func revisionGateThreshold(v Version) float64 {
	switch v {
	case Version1:
		return 0.95
	case Version2:
		return 0.97
	default:
		return 0.98
	}
}

// adaptiveGateThreshold is the looser, algorithm-independent gate used
// only when resolving AlgoAdaptive, matching
// original_source/tzp_ultimate.py's UltimateCompressor.compress_adaptive.
const adaptiveGateThreshold = 0.95

// blockPipeline implements the per-block transform described in spec
// §4.C: analyze, optionally preprocess, pick and run a codec, gate the
// result, checksum. One blockPipeline is shared read-only across all
// workers in the Parallel Engine; codecAdapter is already safe for
// concurrent use.
type blockPipeline struct {
	codec   *codecAdapter
	profile string
	version Version
	framed  bool
}

func newBlockPipeline(codec *codecAdapter, profile string, version Version) *blockPipeline {
	return &blockPipeline{
		codec:   codec,
		profile: canonicalProfile(profile),
		version: version,
		framed:  version == Version3Stable,
	}
}

// process mutates b in place: OriginalBytes must already be set by the
// Partitioner. On return CompressedBytes, AlgorithmID, BlockFlags,
// CRC32, and Analysis are all populated.
func (p *blockPipeline) process(b *Block) error {
	b.Analysis = Analyze(b.OriginalBytes, "")

	switch b.Analysis.ContentType {
	case ContentAlreadyCompressed, ContentRandom, ContentMultimedia:
		b.CompressedBytes = b.OriginalBytes
		b.AlgorithmID = AlgoUncompressed
		b.BlockFlags = 0
		b.CRC32 = crc32.ChecksumIEEE(b.OriginalBytes)
		return nil
	}

	input := b.OriginalBytes
	flags := uint16(0)
	if processed, ok := deltaEncode(input); ok {
		input = processed
		flags |= FlagPreprocessed
	}

	algo := adjustForProfile(b.Analysis.RecommendedAlgorithm, p.profile)

	var compressed []byte
	var actual AlgorithmID
	var err error
	if algo == AlgoAdaptive {
		compressed, actual, err = p.resolveAdaptive(input, b.Analysis)
	} else {
		compressed, actual, err = p.codec.encode(algo, input, p.framed)
	}
	if err != nil {
		// A codec failure is recovered locally: the block is stored
		// uncompressed instead of aborting the whole encode.
		compressed, actual = input, AlgoUncompressed
	}

	if len(compressed) >= int(float64(len(input))*revisionGateThreshold(p.version)) {
		compressed = input
		actual = AlgoUncompressed
	}

	b.CompressedBytes = compressed
	b.AlgorithmID = actual
	b.BlockFlags = flags
	// CRC32 covers whatever bytes were handed to the codec, i.e. input
	// (post-preprocess). Delta-encoding never changes buffer length, so
	// runDecode can verify this CRC and entry.OriginalSize against the
	// decompressed-but-not-yet-undelta'd bytes, then undo the delta
	// transform to recover the true original before returning it.
	b.CRC32 = crc32.ChecksumIEEE(input)
	return nil
}

// resolveAdaptive implements the AlgoAdaptive runtime resolution:
// several candidate codecs are run and the smallest result is kept,
// gated by adaptiveGateThreshold, matching
// original_source/tzp_ultimate.py's compress_adaptive/_get_zstd_levels.
func (p *blockPipeline) resolveAdaptive(data []byte, analysis AnalysisRecord) ([]byte, AlgorithmID, error) {
	candidates := []AlgorithmID{AlgoLZ4Fast}
	switch {
	case analysis.CompressionPotential > 0.8:
		candidates = append(candidates, AlgoZstd1, AlgoZstd6, AlgoZstd15, AlgoZstd22)
	case analysis.CompressionPotential > 0.5:
		candidates = append(candidates, AlgoZstd1, AlgoZstd6, AlgoZstd15)
	case analysis.CompressionPotential > 0.2:
		candidates = append(candidates, AlgoZstd1, AlgoZstd6)
	default:
		candidates = append(candidates, AlgoZstd1)
	}
	if analysis.CompressionPotential > 0.6 {
		candidates = append(candidates, AlgoHybrid)
	}

	bestData := data
	bestAlgo := AlgoUncompressed
	bestSize := len(data) + 1
	for _, c := range candidates {
		out, actual, err := p.codec.encode(c, data, p.framed)
		if err != nil {
			continue
		}
		if len(out) < bestSize {
			bestData, bestAlgo, bestSize = out, actual, len(out)
		}
	}

	if bestSize >= int(float64(len(data))*adaptiveGateThreshold) {
		return data, AlgoUncompressed, nil
	}
	return bestData, bestAlgo, nil
}

// adjustForProfile implements the profile-driven override table of
// spec §4.C, matching original_source/tzp_stable.py's
// StableCompressor.compress_smart exactly (the algorithm ids share the
// same ordinal values as ALGO_* there, so the "min" comparisons carry
// over unchanged).
func adjustForProfile(recommended AlgorithmID, profile string) AlgorithmID {
	switch profile {
	case ProfileLightning:
		return AlgoLZ4Fast
	case ProfileFast:
		if recommended < AlgoLZ4HC {
			return recommended
		}
		return AlgoLZ4HC
	case ProfileHigh:
		if recommended <= AlgoZstd6 {
			return AlgoZstd15
		}
		return recommended
	case ProfileMax:
		if recommended != AlgoUncompressed {
			return AlgoZstd22
		}
		return AlgoUncompressed
	default: // balanced
		return recommended
	}
}

// isNumericSequence reports whether data looks like a sequence of
// little-endian uint32s whose successive differences are constant for
// at least 80% of the run, matching
// original_source/tzp_ultimate.py's _is_numeric_sequence.
func isNumericSequence(data []byte) bool {
	if len(data) < 16 || len(data)%4 != 0 {
		return false
	}
	n := len(data) / 4
	if n < 4 {
		return false
	}
	counts := make(map[int64]int)
	var prev uint32
	for i := 0; i < n; i++ {
		v := binary.LittleEndian.Uint32(data[i*4:])
		if i > 0 {
			diff := int64(v) - int64(prev)
			counts[diff]++
		}
		prev = v
	}
	most := 0
	for _, c := range counts {
		if c > most {
			most = c
		}
	}
	return float64(most) >= float64(n-1)*0.8
}

// deltaEncode implements original_source/tzp_ultimate.py's
// _delta_encode: the first uint32 is kept verbatim, every subsequent
// value is replaced by a signed 32-bit difference from its predecessor.
func deltaEncode(data []byte) ([]byte, bool) {
	if !isNumericSequence(data) {
		return nil, false
	}
	n := len(data) / 4
	out := make([]byte, len(data))
	var prev uint32
	for i := 0; i < n; i++ {
		v := binary.LittleEndian.Uint32(data[i*4:])
		if i == 0 {
			binary.LittleEndian.PutUint32(out[i*4:], v)
		} else {
			binary.LittleEndian.PutUint32(out[i*4:], uint32(int32(v-prev)))
		}
		prev = v
	}
	return out, true
}

// deltaDecode reverses deltaEncode: the first uint32 is kept verbatim,
// every subsequent value is recovered by accumulating the signed
// difference onto its predecessor. Called by runDecode whenever a
// block's FlagPreprocessed bit is set.
func deltaDecode(data []byte) []byte {
	n := len(data) / 4
	out := make([]byte, len(data))
	var prev uint32
	for i := 0; i < n; i++ {
		v := binary.LittleEndian.Uint32(data[i*4:])
		if i == 0 {
			prev = v
		} else {
			prev = uint32(int32(prev) + int32(v))
		}
		binary.LittleEndian.PutUint32(out[i*4:], prev)
	}
	return out
}
