package tzp

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockPipelineUncompressibleContentStoredRaw(t *testing.T) {
	data := randomBytes(65536, 7)
	b := &Block{BlockID: 0, OriginalBytes: data}

	p := newBlockPipeline(newCodecAdapter(), ProfileBalanced, Version3Stable)
	require.NoError(t, p.process(b))

	require.Equal(t, AlgoUncompressed, b.AlgorithmID)
	require.Equal(t, data, b.CompressedBytes)
	require.Equal(t, checksumIEEE(data), b.CRC32)
}

func TestBlockPipelineRepetitiveContentCompressesWell(t *testing.T) {
	data := bytes.Repeat([]byte{0x41}, 4*1024*1024)
	b := &Block{BlockID: 0, OriginalBytes: data}

	p := newBlockPipeline(newCodecAdapter(), ProfileMax, Version3Stable)
	require.NoError(t, p.process(b))

	require.Less(t, len(b.CompressedBytes), len(data)/100)
}

func TestBlockPipelineNeverExpands(t *testing.T) {
	inputs := [][]byte{
		randomBytes(8192, 11),
		bytes.Repeat([]byte("ab"), 4096),
		[]byte("x"),
	}
	p := newBlockPipeline(newCodecAdapter(), ProfileBalanced, Version3Stable)
	for _, data := range inputs {
		b := &Block{BlockID: 0, OriginalBytes: data}
		require.NoError(t, p.process(b))
		require.LessOrEqual(t, len(b.CompressedBytes), len(data))
	}
}

func TestAdjustForProfile(t *testing.T) {
	require.Equal(t, AlgoLZ4Fast, adjustForProfile(AlgoZstd22, ProfileLightning))
	require.Equal(t, AlgoLZ4Fast, adjustForProfile(AlgoLZ4Fast, ProfileFast))
	require.Equal(t, AlgoLZ4HC, adjustForProfile(AlgoZstd22, ProfileFast))
	require.Equal(t, AlgoZstd22, adjustForProfile(AlgoZstd22, ProfileBalanced))
	require.Equal(t, AlgoZstd15, adjustForProfile(AlgoZstd6, ProfileHigh))
	require.Equal(t, AlgoZstd15, adjustForProfile(AlgoZstd15, ProfileHigh))
	require.Equal(t, AlgoZstd22, adjustForProfile(AlgoLZ4Fast, ProfileMax))
	require.Equal(t, AlgoUncompressed, adjustForProfile(AlgoUncompressed, ProfileMax))
}

func TestIsNumericSequenceAndDeltaEncode(t *testing.T) {
	buf := make([]byte, 4*8)
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(100+i*7))
	}
	require.True(t, isNumericSequence(buf))

	encoded, ok := deltaEncode(buf)
	require.True(t, ok)
	require.Equal(t, uint32(100), binary.LittleEndian.Uint32(encoded[0:4]))
	require.Equal(t, int32(7), int32(binary.LittleEndian.Uint32(encoded[4:8])))

	require.False(t, isNumericSequence([]byte("not numeric at all, just text")))
}

func TestDeltaEncodeDecodeRoundTrip(t *testing.T) {
	buf := make([]byte, 4*10)
	for i := 0; i < 10; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(1000-i*3))
	}
	encoded, ok := deltaEncode(buf)
	require.True(t, ok)
	require.Equal(t, buf, deltaDecode(encoded))
}

func TestBlockPipelineDeltaEncodedBlockRoundTripsThroughPipeline(t *testing.T) {
	data := make([]byte, 4*2048)
	for i := 0; i < 2048; i++ {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(i))
	}
	b := &Block{BlockID: 0, OriginalBytes: data}

	p := newBlockPipeline(newCodecAdapter(), ProfileBalanced, Version3Stable)
	require.NoError(t, p.process(b))
	require.NotZero(t, b.BlockFlags&FlagPreprocessed)

	decoded, err := newCodecAdapter().decode(b.AlgorithmID, b.CompressedBytes, len(data), true)
	require.NoError(t, err)
	if b.BlockFlags&FlagPreprocessed != 0 {
		decoded = deltaDecode(decoded)
	}
	require.Equal(t, data, decoded)
}

func TestGateThresholdsPerRevision(t *testing.T) {
	require.Equal(t, 0.95, revisionGateThreshold(Version1))
	require.Equal(t, 0.97, revisionGateThreshold(Version2))
	require.Equal(t, 0.98, revisionGateThreshold(Version3Stable))
	require.Equal(t, 0.98, revisionGateThreshold(Version3Ultimate))
}
