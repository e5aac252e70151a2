package tzp

import (
	"math"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Sample bounds for the three analysis metrics (spec §4.B): analysis
// always runs over a bounded prefix, never the full buffer, to keep
// per-block analysis cost constant regardless of block size.
const (
	entropySampleSize          = 64 * 1024
	patternDensitySampleSize   = 16 * 1024
	repetitionFactorSampleSize = 8 * 1024
	classificationSampleSize   = 1024
)

var compressedMagics = [][]byte{
	{0x1f, 0x8b},                   // gzip
	{0x50, 0x4b, 0x03, 0x04},       // zip
	{0x50, 0x4b, 0x05, 0x06},       // zip (empty)
	{0x42, 0x5a, 0x68},             // bzip2
	{0xfd, 0x37, 0x7a, 0x58, 0x5a}, // xz
	{0x37, 0x7a, 0xbc, 0xaf, 0x27, 0x1c}, // 7z
	{0x28, 0xb5, 0x2f, 0xfd},       // zstd frame
	{0x04, 0x22, 0x4d, 0x18},       // lz4 frame
}

var multimediaMagics = [][]byte{
	{0xff, 0xd8, 0xff}, // jpeg
	{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}, // png
	{0x47, 0x49, 0x46, 0x38}, // gif
	{0x52, 0x49, 0x46, 0x46}, // riff (webp/wav/avi)
	{0x1a, 0x45, 0xdf, 0xa3}, // mkv/webm
	{0x66, 0x74, 0x79, 0x70}, // generic mp4 ftyp, checked at offset 4 below
	{0x49, 0x44, 0x33},       // mp3 id3
}

var executableMagics = [][]byte{
	{0x4d, 0x5a},                   // MZ
	{0x7f, 0x45, 0x4c, 0x46},       // ELF
	{0xfe, 0xed, 0xfa, 0xce},       // Mach-O 32
	{0xfe, 0xed, 0xfa, 0xcf},       // Mach-O 64
	{0xce, 0xfa, 0xed, 0xfe},       // Mach-O 32 reverse
	{0xcf, 0xfa, 0xed, 0xfe},       // Mach-O 64 reverse
}

var multimediaExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true,
	".tiff": true, ".tif": true, ".webp": true, ".ico": true,
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".webm": true,
	".mp3": true, ".wav": true, ".flac": true, ".ogg": true,
}

var sourceCodeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".java": true,
	".c": true, ".h": true, ".cpp": true, ".hpp": true, ".cs": true,
	".rb": true, ".rs": true, ".php": true, ".sh": true,
}

var codePatterns = []string{
	"function", "class ", "import ", "include", "def ", "#!/", "var ", "package ",
}

func hasMagicAt(data []byte, offset int, magics [][]byte) bool {
	for _, m := range magics {
		if offset+len(m) <= len(data) && bytesEqual(data[offset:offset+len(m)], m) {
			return true
		}
	}
	return false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isMultimedia(data []byte, filename string) bool {
	if filename != "" && multimediaExtensions[strings.ToLower(filepath.Ext(filename))] {
		return true
	}
	if hasMagicAt(data, 0, multimediaMagics) {
		return true
	}
	// MP4 containers carry "ftyp" at offset 4, not 0.
	return hasMagicAt(data, 4, [][]byte{{0x66, 0x74, 0x79, 0x70}})
}

// shannonEntropy returns the Shannon entropy, in bits, of the byte
// distribution of a bounded prefix sample (spec §4.B).
func shannonEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	sample := data
	if len(sample) > entropySampleSize {
		sample = sample[:entropySampleSize]
	}
	var counts [256]int
	for _, b := range sample {
		counts[b]++
	}
	n := float64(len(sample))
	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// patternDensity measures the concentration of repeated aligned
// 4-byte windows in a bounded prefix sample (spec §4.B).
func patternDensity(data []byte) float64 {
	sample := data
	if len(sample) > patternDensitySampleSize {
		sample = sample[:patternDensitySampleSize]
	}
	return windowDensity(sample, 4, 5)
}

// repetitionFactor measures the concentration of repeated aligned
// 8-byte windows in a bounded prefix sample (spec §4.B).
func repetitionFactor(data []byte) float64 {
	sample := data
	if len(sample) > repetitionFactorSampleSize {
		sample = sample[:repetitionFactorSampleSize]
	}
	return windowDensity(sample, 8, 10)
}

func windowDensity(sample []byte, windowSize int, amplify float64) float64 {
	if len(sample) < windowSize {
		return 0
	}
	counts := make(map[string]int)
	for i := 0; i+windowSize <= len(sample); i += windowSize {
		counts[string(sample[i:i+windowSize])]++
	}
	t := len(counts)
	if t <= 1 {
		return 0
	}
	m := 0
	for _, c := range counts {
		if c > m {
			m = c
		}
	}
	d := amplify * float64(m-1) / float64(t)
	if d > 1 {
		return 1
	}
	return d
}

// classifyContent applies the ordered content-type rules of spec
// §4.B. filename may be empty (per-block analysis has no filename).
func classifyContent(data []byte, filename string, entropy float64) ContentType {
	if entropy > 7.8 {
		if hasMagicAt(data, 0, compressedMagics) {
			return ContentAlreadyCompressed
		}
		return ContentRandom
	}
	if isMultimedia(data, filename) {
		return ContentMultimedia
	}
	if hasMagicAt(data, 0, executableMagics) {
		return ContentExecutable
	}
	if t, ok := classifyText(data, filename); ok {
		return t
	}
	if entropy < 3.0 {
		return ContentRepetitive
	}
	return ContentBinaryData
}

func classifyText(data []byte, filename string) (ContentType, bool) {
	sample := data
	if len(sample) > classificationSampleSize {
		sample = sample[:classificationSampleSize]
	}
	if !utf8.Valid(sample) {
		return "", false
	}
	controls, newlines, colons, commas := 0, 0, 0, 0
	for _, b := range sample {
		switch {
		case b == '\n':
			newlines++
		case b == ':':
			colons++
		case b == ',':
			commas++
		case b < 0x20 && b != '\r' && b != '\t':
			controls++
		}
	}
	if len(sample) > 0 && float64(controls)/float64(len(sample)) >= 0.05 {
		return "", false
	}
	trimmed := strings.TrimSpace(string(sample))
	switch {
	case strings.HasPrefix(trimmed, "{"), strings.HasPrefix(trimmed, "["),
		strings.HasPrefix(trimmed, "<?xml"), strings.HasPrefix(trimmed, "<"):
		return ContentTextStructured, true
	case newlines > 0 && float64(colons)/float64(newlines) > 0.2:
		return ContentTextStructured, true
	case commas > 2*newlines:
		return ContentTextStructured, true
	}
	ext := ""
	if filename != "" {
		ext = strings.ToLower(filepath.Ext(filename))
	}
	if sourceCodeExtensions[ext] || countCodePatterns(string(sample)) >= 2 {
		return ContentTextCode, true
	}
	return ContentTextPlain, true
}

func countCodePatterns(text string) int {
	n := 0
	for _, p := range codePatterns {
		if strings.Contains(text, p) {
			n++
		}
	}
	return n
}

// compressionPotential combines entropy, pattern density, and
// repetition factor into a single [0,1] scalar (spec §4.B).
func compressionPotential(entropy, density, repetition float64) float64 {
	p := 0.5*((8.0-entropy)/8.0) + 0.3*density + 0.2*repetition
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// recommendAlgorithm implements the canonical recommendation table of
// spec §4.B. Rows are evaluated in the order the table lists them,
// matching original_source/tzp_stable.py's _recommend_algorithm (the
// already-compressed/random/multimedia and small-size checks both
// precede the content-specific rules).
func recommendAlgorithm(contentType ContentType, potential float64, size int) AlgorithmID {
	switch contentType {
	case ContentAlreadyCompressed, ContentRandom, ContentMultimedia:
		return AlgoUncompressed
	}
	if size < 64*1024 {
		return AlgoLZ4Fast
	}
	if contentType == ContentRepetitive || potential > 0.8 {
		return AlgoHybrid
	}
	switch contentType {
	case ContentTextStructured:
		return AlgoZstd22
	case ContentTextCode, ContentExecutable:
		return AlgoZstd6
	case ContentTextPlain:
		return AlgoHybrid
	default:
		return AlgoAdaptive
	}
}

// recommendBlockSize implements spec §4.B's block-size heuristic.
func recommendBlockSize(size int, contentType ContentType, density float64) int {
	if size < 1024*1024 {
		if size < 256*1024 {
			return size
		}
		return 256 * 1024
	}
	if contentType == ContentRepetitive || density > 0.7 {
		return 16 * 1024 * 1024
	}
	return 4 * 1024 * 1024
}

// Analyze computes the full Analysis Record for a buffer (spec §3,
// §4.B). filename may be empty.
func Analyze(data []byte, filename string) AnalysisRecord {
	if len(data) == 0 {
		return AnalysisRecord{ContentType: ContentUnknown, RecommendedAlgorithm: AlgoUncompressed}
	}
	entropy := shannonEntropy(data)
	density := patternDensity(data)
	repetition := repetitionFactor(data)
	contentType := classifyContent(data, filename, entropy)
	potential := compressionPotential(entropy, density, repetition)
	algo := recommendAlgorithm(contentType, potential, len(data))
	blockSize := recommendBlockSize(len(data), contentType, density)
	return AnalysisRecord{
		Entropy:              entropy,
		PatternDensity:       density,
		RepetitionFactor:     repetition,
		ContentType:          contentType,
		CompressionPotential: potential,
		RecommendedAlgorithm: algo,
		RecommendedBlockSize: blockSize,
	}
}
