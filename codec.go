package tzp

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// zstdLevelFor maps an algorithm id to the zstd level used to build
// its cached encoder (spec §4.A catalogue).
func zstdLevelFor(algo AlgorithmID) int {
	switch algo {
	case AlgoZstd1:
		return 1
	case AlgoZstd6:
		return 6
	case AlgoZstd15:
		return 15
	default:
		return 22
	}
}

// codecAdapter is the uniform wrapper over LZ4 and Zstd described in
// spec §4.A. Zstd encoders are expensive to build (especially level
// 22) so one is built per level on first use and reused; zstd
// decoders are level-agnostic and are drawn from a shared pool. Every
// codecAdapter method is safe for concurrent use by multiple workers.
type codecAdapter struct {
	mu            sync.Mutex
	zstdEncoders  map[int]*zstd.Encoder
	zstdDecPool   sync.Pool
}

func newCodecAdapter() *codecAdapter {
	c := &codecAdapter{zstdEncoders: make(map[int]*zstd.Encoder)}
	c.zstdDecPool.New = func() any {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			// zstd.NewReader(nil) with no options cannot fail.
			panic(fmt.Sprintf("tzp: failed to build zstd decoder: %v", err))
		}
		return dec
	}
	return c
}

func (c *codecAdapter) zstdEncoder(level int) (*zstd.Encoder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.zstdEncoders[level]; ok {
		return enc, nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, err
	}
	c.zstdEncoders[level] = enc
	return enc, nil
}

func (c *codecAdapter) zstdCompress(data []byte, level int) ([]byte, error) {
	enc, err := c.zstdEncoder(level)
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2+64)), nil
}

func (c *codecAdapter) zstdDecompress(data []byte) ([]byte, error) {
	dec := c.zstdDecPool.Get().(*zstd.Decoder)
	defer c.zstdDecPool.Put(dec)
	return dec.DecodeAll(data, nil)
}

// lz4FrameCompress produces the self-delimiting LZ4 frame format used
// by the Stable (v3.1) writer; hc selects level 9 for the HC variant,
// level 0 ("fast") otherwise, matching original_source/tzp_stable.py.
func lz4FrameCompress(data []byte, hc bool) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	level := lz4.Fast
	if hc {
		level = lz4.Level9
	}
	if err := w.Apply(lz4.CompressionLevelOption(level)); err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lz4FrameDecompress(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	return io.ReadAll(r)
}

// lz4BlockCompress produces the explicit-size LZ4 block format used
// by v1/v2/Ultimate writers and by the hybrid cascade's LZ4-HC stage.
func lz4BlockCompress(data []byte, hc bool) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	var n int
	var err error
	if hc {
		n, err = lz4.CompressBlockHC(data, dst, lz4.Level9, nil, nil)
	} else {
		n, err = lz4.CompressBlock(data, dst, nil)
	}
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Incompressible input: CompressBlock reports 0 bytes written.
		return nil, fmt.Errorf("tzp: lz4 block compression did not shrink input")
	}
	return dst[:n], nil
}

func lz4BlockDecompress(data []byte, originalSize int) ([]byte, error) {
	dst := make([]byte, originalSize)
	n, err := lz4.UncompressBlock(data, dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

// encode implements the Codec Adapter's encode operation (spec §4.A).
// algo must already be a concrete (non-adaptive) algorithm id. framed
// selects the LZ4 representation: true for the Stable (v3.1) frame
// format, false for the explicit-size block format used by older
// revisions and by the hybrid cascade's intermediate stage. The
// returned AlgorithmID is usually algo unchanged, except for
// AlgoHybrid, whose cascade may downgrade to AlgoLZ4HC or
// AlgoUncompressed when a stage fails to clear its gate.
func (c *codecAdapter) encode(algo AlgorithmID, data []byte, framed bool) ([]byte, AlgorithmID, error) {
	switch algo {
	case AlgoUncompressed:
		return data, AlgoUncompressed, nil
	case AlgoLZ4Fast:
		out, err := compressLZ4(data, false, framed)
		return out, AlgoLZ4Fast, err
	case AlgoLZ4HC:
		out, err := compressLZ4(data, true, framed)
		return out, AlgoLZ4HC, err
	case AlgoZstd1, AlgoZstd6, AlgoZstd15, AlgoZstd22:
		out, err := c.zstdCompress(data, zstdLevelFor(algo))
		return out, algo, err
	case AlgoHybrid:
		return c.encodeHybrid(data, framed)
	default:
		return nil, AlgoUncompressed, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, algo)
	}
}

func compressLZ4(data []byte, hc, framed bool) ([]byte, error) {
	if framed {
		return lz4FrameCompress(data, hc)
	}
	return lz4BlockCompress(data, hc)
}

// encodeHybrid implements the two-stage cascade described in spec
// §4.A: LZ4-HC, then Zstd-6 over the LZ4-HC output, kept only if both
// reduction thresholds clear. The LZ4-HC intermediate is always in
// block format, matching decodeHybrid's fixed Stable semantics
// (Zstd-decode then LZ4-block-decode); but if the cascade downgrades
// to plain LZ4-HC (the Zstd stage didn't help), the stored bytes are
// re-encoded in whatever representation framed calls for, so the
// generic AlgoLZ4HC decode path (which does honor framed) can read
// them back.
func (c *codecAdapter) encodeHybrid(data []byte, framed bool) ([]byte, AlgorithmID, error) {
	lz4hc, err := lz4BlockCompress(data, true)
	if err != nil || len(lz4hc) >= int(float64(len(data))*0.9) {
		return data, AlgoUncompressed, nil
	}
	final, err := c.zstdCompress(lz4hc, 6)
	if err == nil && len(final) < int(float64(len(lz4hc))*0.95) {
		return final, AlgoHybrid, nil
	}
	if !framed {
		return lz4hc, AlgoLZ4HC, nil
	}
	reframed, err := lz4FrameCompress(data, true)
	if err != nil {
		return lz4hc, AlgoLZ4HC, nil
	}
	return reframed, AlgoLZ4HC, nil
}

// decode implements the Codec Adapter's decode operation (spec §4.A).
// framed must match the representation the corresponding encode call
// used (Stable v3.1: framed LZ4; all older revisions: block LZ4).
func (c *codecAdapter) decode(algo AlgorithmID, data []byte, originalSize int, framed bool) ([]byte, error) {
	switch algo {
	case AlgoUncompressed:
		if len(data) != originalSize {
			return nil, fmt.Errorf("%w: uncompressed block has %d bytes, want %d", ErrSizeMismatch, len(data), originalSize)
		}
		return data, nil
	case AlgoLZ4Fast, AlgoLZ4HC:
		if framed {
			return lz4FrameDecompress(data)
		}
		return lz4BlockDecompress(data, originalSize)
	case AlgoZstd1, AlgoZstd6, AlgoZstd15, AlgoZstd22:
		return c.zstdDecompress(data)
	case AlgoHybrid:
		return c.decodeHybrid(data, originalSize)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, algo)
	}
}

// decodeHybrid implements the Stable semantics for hybrid blocks,
// used for every revision per the "Ultimate hybrid decode" open
// question in spec §9: Zstd-decode to an intermediate buffer, then
// LZ4-block-decode that to the original bytes.
func (c *codecAdapter) decodeHybrid(data []byte, originalSize int) ([]byte, error) {
	intermediate, err := c.zstdDecompress(data)
	if err != nil {
		return nil, fmt.Errorf("%w: hybrid zstd stage: %v", ErrCodec, err)
	}
	out, err := lz4BlockDecompress(intermediate, originalSize)
	if err != nil {
		return nil, fmt.Errorf("%w: hybrid lz4 stage: %v", ErrCodec, err)
	}
	return out, nil
}
