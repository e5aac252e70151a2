package tzp

// naturalSplitSearchWindow bounds how far back from a candidate cut
// the adaptive partitioner will look for a natural boundary (spec
// §4.D), matching original_source/tzp_ultimate.py's
// _find_natural_split_point.
const naturalSplitSearchWindow = 1024

// partition splits data into blocks of blockSize bytes (spec §4.D). A
// non-empty buffer no larger than blockSize yields exactly one block;
// an empty buffer yields none.
// Fixed mode produces plain contiguous blockSize slices, the last one
// possibly shorter — never merged into its predecessor. Adaptive mode
// additionally merges a trailing remainder smaller than 1.5×blockSize
// into the previous block, and nudges every other cut backward to the
// nearest natural boundary within naturalSplitSearchWindow bytes (a
// trailing '\n', else a zero byte, else the nominal cut is kept),
// matching original_source/tzp_ultimate.py's adaptive splitter.
func partition(data []byte, blockSize int, adaptive bool) [][]byte {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if len(data) <= blockSize {
		if len(data) == 0 {
			return nil
		}
		return [][]byte{data}
	}

	var blocks [][]byte
	i := 0
	for i < len(data) {
		size := blockSize
		remaining := len(data) - i
		switch {
		case adaptive && float64(remaining) < float64(blockSize)*1.5:
			size = remaining
		case remaining < blockSize:
			size = remaining
		case adaptive:
			end := i + size
			if split := findNaturalSplitPoint(data, i, end); split > i {
				size = split - i
			}
		}
		blocks = append(blocks, data[i:i+size])
		i += size
	}
	return blocks
}

// findNaturalSplitPoint scans backward from end for a '\n', then for a
// 0x00 byte, over the last naturalSplitSearchWindow bytes before end
// (never before start); it returns end unchanged if neither is found.
func findNaturalSplitPoint(data []byte, start, end int) int {
	searchStart := start
	if end-naturalSplitSearchWindow > searchStart {
		searchStart = end - naturalSplitSearchWindow
	}
	for i := end - 1; i >= searchStart; i-- {
		if data[i] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i >= searchStart; i-- {
		if data[i] == 0 {
			return i + 1
		}
	}
	return end
}
