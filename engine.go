package tzp

import (
	"fmt"
	"runtime"
	"sync"
)

// maxWorkers caps the size of the Parallel Engine's worker pool (spec
// §4.E) regardless of how many cores the host reports.
const maxWorkers = 16

// workerCount resolves the engine's pool size: override if positive,
// else NumCPU, capped at maxWorkers.
func workerCount(override int) int {
	n := override
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > maxWorkers {
		n = maxWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

// runPipeline fans blocks out across a bounded worker pool and runs
// each through pipeline.process (spec §4.E). Results are returned in
// block-id order regardless of completion order; a semaphore channel
// plus WaitGroup bounds concurrency, the same shape the teacher's
// worker pool used for per-item fan-out.
func runPipeline(blocks []*Block, pipeline *blockPipeline, workers int) error {
	sem := make(chan struct{}, workerCount(workers))
	var wg sync.WaitGroup
	errs := make([]error, len(blocks))

	for idx, b := range blocks {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, block *Block) {
			defer wg.Done()
			defer func() { <-sem }()
			errs[i] = pipeline.process(block)
		}(idx, b)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("tzp: block %d: %w", i, err)
		}
	}
	return nil
}

// runDecode fans the inverse operation (decode) across the same kind
// of bounded pool, writing each block's plaintext into out[i]. Size
// and CRC are checked against the codec's raw output (pre-preprocess
// reversal, since delta-encoding never changes buffer length); a
// delta-encoded block is then undone before being returned.
func runDecode(entries []BlockTableEntry, payload []byte, codec *codecAdapter, framed bool, workers int) ([][]byte, error) {
	sem := make(chan struct{}, workerCount(workers))
	var wg sync.WaitGroup
	out := make([][]byte, len(entries))
	errs := make([]error, len(entries))

	for idx, e := range entries {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, entry BlockTableEntry) {
			defer wg.Done()
			defer func() { <-sem }()

			start := entry.PayloadOffset
			end := start + uint64(entry.CompressedSize)
			if end > uint64(len(payload)) {
				errs[i] = fmt.Errorf("%w: block %d payload range out of bounds", ErrInvalidFormat, i)
				return
			}
			raw := payload[start:end]

			decoded, err := codec.decode(entry.AlgorithmID, raw, int(entry.OriginalSize), framed)
			if err != nil {
				errs[i] = fmt.Errorf("tzp: block %d decode: %w", i, err)
				return
			}
			if uint32(len(decoded)) != entry.OriginalSize {
				errs[i] = fmt.Errorf("%w: block %d decoded to %d bytes, want %d", ErrSizeMismatch, i, len(decoded), entry.OriginalSize)
				return
			}
			if checksumIEEE(decoded) != entry.CRC32 {
				errs[i] = fmt.Errorf("%w: block %d", ErrIntegrity, i)
				return
			}
			if entry.BlockFlags&byte(FlagPreprocessed) != 0 {
				decoded = deltaDecode(decoded)
			}
			out[i] = decoded
		}(idx, e)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// payloadOffsets assigns each block's position within the concatenated
// payload section, a single-threaded, post-hoc pass over already
// completed blocks (spec §4.E: offsets are never computed by the
// workers themselves).
func payloadOffsets(blocks []*Block) []uint64 {
	offsets := make([]uint64, len(blocks))
	var cursor uint64
	for i, b := range blocks {
		offsets[i] = cursor
		cursor += uint64(len(b.CompressedBytes))
	}
	return offsets
}
