package tzp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartitionSmallInputSingleBlock(t *testing.T) {
	data := []byte("hello world")
	blocks := partition(data, 1024, false)
	require.Len(t, blocks, 1)
	require.Equal(t, data, blocks[0])
}

func TestPartitionEmptyInputNoBlocks(t *testing.T) {
	require.Nil(t, partition(nil, 1024, false))
}

func TestPartitionExactBlockSizeIsOneBlock(t *testing.T) {
	data := bytes.Repeat([]byte{0x01}, 1024)
	blocks := partition(data, 1024, false)
	require.Len(t, blocks, 1)
}

func TestPartitionOneByteOverBlockSizeIsTwoBlocks(t *testing.T) {
	data := bytes.Repeat([]byte{0x01}, 1025)
	blocks := partition(data, 1024, false)
	require.Len(t, blocks, 2)

	var reassembled []byte
	for _, b := range blocks {
		reassembled = append(reassembled, b...)
	}
	require.Equal(t, data, reassembled)
}

func TestPartitionFixedModeCoversWholeInput(t *testing.T) {
	data := randomBytes(10000, 5)
	blocks := partition(data, 777, false)

	var reassembled []byte
	for _, b := range blocks {
		reassembled = append(reassembled, b...)
	}
	require.Equal(t, data, reassembled)
}

func TestPartitionAdaptiveModeSplitsOnNewline(t *testing.T) {
	line := bytes.Repeat([]byte("x"), 480)
	data := append(append(append([]byte{}, line...), '\n'), bytes.Repeat([]byte("y"), 600)...)

	blocks := partition(data, 500, true)
	require.Len(t, blocks, 2)
	require.True(t, bytes.HasSuffix(blocks[0], []byte("\n")))

	var reassembled []byte
	for _, b := range blocks {
		reassembled = append(reassembled, b...)
	}
	require.Equal(t, data, reassembled)
}

func TestFindNaturalSplitPointFallsBackToEnd(t *testing.T) {
	data := bytes.Repeat([]byte{0x7f}, 2000)
	split := findNaturalSplitPoint(data, 0, 1000)
	require.Equal(t, 1000, split)
}

func TestFindNaturalSplitPointPrefersNewlineOverZero(t *testing.T) {
	data := make([]byte, 100)
	data[40] = 0
	data[60] = '\n'
	split := findNaturalSplitPoint(data, 0, 100)
	require.Equal(t, 61, split)
}
