package tzp

import (
	"fmt"
	"time"
)

// Options configures a single Encode call (spec §6).
type Options struct {
	// Profile selects the encode policy (spec §4.C); empty defaults to
	// "balanced". Historical aliases are resolved via canonicalProfile.
	Profile string
	// BlockSize is the nominal block size in bytes; zero uses
	// DefaultBlockSize.
	BlockSize int
	// Adaptive enables natural-boundary partitioning (spec §4.D).
	Adaptive bool
	// Threads overrides the Parallel Engine's worker count; zero uses
	// runtime.NumCPU, capped at 16.
	Threads int
}

// DefaultOptions returns the baseline encode policy: balanced profile,
// DefaultBlockSize, fixed-mode partitioning, auto-detected worker count.
func DefaultOptions() Options {
	return Options{
		Profile:   ProfileBalanced,
		BlockSize: DefaultBlockSize,
		Adaptive:  false,
	}
}

// Encode runs the full encode pipeline (spec §2's data-flow diagram:
// partition → per-block analyze/preprocess/encode → write) and returns
// the serialized v3.1 Stable container alongside its Stats.
func Encode(data []byte, opts Options) ([]byte, Stats, error) {
	start := timeNow()

	blockSize := opts.BlockSize
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	profile := canonicalProfile(opts.Profile)

	slices := partition(data, blockSize, opts.Adaptive)
	blocks := make([]*Block, len(slices))
	for i, s := range slices {
		blocks[i] = &Block{BlockID: i, OriginalBytes: s}
	}

	codec := newCodecAdapter()
	pipeline := newBlockPipeline(codec, profile, Version3Stable)
	if err := runPipeline(blocks, pipeline, opts.Threads); err != nil {
		return nil, Stats{}, err
	}

	out := writeContainer(blocks, uint64(len(data)), uint32(blockSize))

	stats := buildStats(blocks, len(data), profile, start)
	return out, stats, nil
}

// Decode runs the full decode pipeline (spec §4.G): parse, fan out,
// verify, concatenate. threads overrides the Parallel Engine's worker
// count; zero auto-detects.
func Decode(data []byte, threads int) ([]byte, Stats, error) {
	start := timeNow()
	out, header, err := decodeContainer(data, threads)
	if err != nil {
		return nil, Stats{}, err
	}
	elapsed := timeSince(start)
	stats := Stats{
		OriginalSize:    int64(header.UncompressedSize),
		CompressedSize:  int64(len(data)),
		ElapsedSeconds:  elapsed,
		ThroughputMiBps: throughput(int64(header.UncompressedSize), elapsed),
		BlockCount:      int(header.BlockCount),
	}
	return out, stats, nil
}

// Inspect parses a container's header and block table without
// decoding any block payload (spec §6's inspect operation).
func Inspect(data []byte) (Report, error) {
	pc, err := parseContainer(data)
	if err != nil {
		return Report{}, err
	}
	histogram := make(map[AlgorithmID]AlgoStat)
	var compressedTotal int64
	for _, e := range pc.entries {
		s := histogram[e.AlgorithmID]
		s.Count++
		s.BytesIn += int64(e.OriginalSize)
		s.BytesOut += int64(e.CompressedSize)
		histogram[e.AlgorithmID] = s
		compressedTotal += int64(e.CompressedSize)
	}
	return Report{
		Version:            pc.header.Version,
		UncompressedSize:   pc.header.UncompressedSize,
		CompressedSize:     compressedTotal,
		BlockCount:         int(pc.header.BlockCount),
		BaseBlockSize:      pc.header.BaseBlockSize,
		AlgorithmHistogram: histogram,
		Flags:              pc.header.Flags,
	}, nil
}

func buildStats(blocks []*Block, originalSize int, profile string, start time.Time) Stats {
	histogram := make(map[AlgorithmID]AlgoStat)
	var compressedTotal int64
	for _, b := range blocks {
		s := histogram[b.AlgorithmID]
		s.Count++
		s.BytesIn += int64(len(b.OriginalBytes))
		s.BytesOut += int64(len(b.CompressedBytes))
		histogram[b.AlgorithmID] = s
		compressedTotal += int64(len(b.CompressedBytes))
	}
	elapsed := timeSince(start)
	return Stats{
		OriginalSize:       int64(originalSize),
		CompressedSize:     compressedTotal,
		ElapsedSeconds:     elapsed,
		ThroughputMiBps:    throughput(int64(originalSize), elapsed),
		BlockCount:         len(blocks),
		Profile:            profile,
		AlgorithmHistogram: histogram,
	}
}

func throughput(size int64, elapsed float64) float64 {
	if elapsed <= 0 {
		return 0
	}
	return (float64(size) / (1024 * 1024)) / elapsed
}

// timeNow/timeSince are the only two time.Time touch points in the
// package; Stats' elapsed/throughput fields are computed from them.
func timeNow() time.Time { return time.Now() }

func timeSince(t time.Time) float64 { return time.Since(t).Seconds() }

// String renders a one-line human summary of Stats, the shape spec §7
// calls for on a successful CLI-style invocation (the CLI itself is
// out of scope; this is the formatting building block it would use).
func (s Stats) String() string {
	return fmt.Sprintf("tzp: %d -> %d bytes (%.2f%%) in %.3fs, %.1f MiB/s, %d blocks, profile=%s",
		s.OriginalSize, s.CompressedSize, ratio(s.OriginalSize, s.CompressedSize), s.ElapsedSeconds, s.ThroughputMiBps, s.BlockCount, s.Profile)
}

func ratio(original, compressed int64) float64 {
	if original == 0 {
		return 0
	}
	return float64(compressed) / float64(original) * 100
}
