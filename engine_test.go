package tzp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkerCountCapsAtSixteen(t *testing.T) {
	require.Equal(t, 16, workerCount(1000))
	require.Equal(t, 4, workerCount(4))
	require.GreaterOrEqual(t, workerCount(0), 1)
}

func TestRunPipelinePreservesBlockOrder(t *testing.T) {
	codec := newCodecAdapter()
	pipeline := newBlockPipeline(codec, ProfileBalanced, Version3Stable)

	blocks := make([]*Block, 50)
	for i := range blocks {
		blocks[i] = &Block{BlockID: i, OriginalBytes: randomBytes(1024, int64(i))}
	}

	require.NoError(t, runPipeline(blocks, pipeline, 8))
	for i, b := range blocks {
		require.Equal(t, i, b.BlockID)
		require.NotNil(t, b.CompressedBytes)
	}
}

func TestPayloadOffsetsAccumulate(t *testing.T) {
	blocks := []*Block{
		{CompressedBytes: make([]byte, 10)},
		{CompressedBytes: make([]byte, 20)},
		{CompressedBytes: make([]byte, 5)},
	}
	offsets := payloadOffsets(blocks)
	require.Equal(t, []uint64{0, 10, 30}, offsets)
}
