package tzp

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Fixed-width layout constants for every revision this reader
// understands (spec §4.G, §6). baseHeaderSize is the 32-byte prefix
// shared by all four revisions; each revision then has its own trailer
// and its own block-table entry width.
const (
	baseHeaderSize = 32

	v1HeaderSize = 52
	v1EntrySize  = 22

	v2FixedHeaderSize = 56 // 32 fixed + 4 metadata-length + 20 reserved
	v2EntrySize       = 24

	v3UltimateFixedHeaderSize = 56
	v3UltimateEntrySize       = 26

	v3StableHeaderSize = 48
	v3StableEntrySize  = 24
)

// v1 predates the canonical algorithm catalogue and used its own
// three-value scheme (spec §4.G).
const (
	v1AlgoLZ4          byte = 0x00
	v1AlgoZstd         byte = 0x01
	v1AlgoUncompressed byte = 0xFF
)

// parsedContainer is the revision-independent view reader.go builds
// before handing block spans to the Parallel Engine.
type parsedContainer struct {
	header      Header
	entries     []BlockTableEntry
	payload     []byte
	framed      bool
}

// parseContainer validates magic/version and parses the header and
// block table (spec §4.G). It never decodes block payloads itself.
func parseContainer(data []byte) (*parsedContainer, error) {
	if len(data) < baseHeaderSize {
		return nil, fmt.Errorf("%w: truncated header", ErrInvalidFormat)
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	version := Version(binary.LittleEndian.Uint16(data[4:6]))

	h := Header{
		Version:          version,
		Flags:            binary.LittleEndian.Uint16(data[6:8]),
		UncompressedSize: binary.LittleEndian.Uint64(data[8:16]),
		BlockCount:       binary.LittleEndian.Uint32(data[16:20]),
		BaseBlockSize:    binary.LittleEndian.Uint32(data[20:24]),
	}
	copy(h.FileChecksum[:], data[24:32])

	var (
		tableStart int
		entrySize  int
	)

	switch {
	case magic == Magic1 && version == Version1:
		if len(data) < v1HeaderSize {
			return nil, fmt.Errorf("%w: truncated v1 header", ErrInvalidFormat)
		}
		tableStart, entrySize = v1HeaderSize, v1EntrySize

	case magic == Magic2 && version == Version2:
		if len(data) < v2FixedHeaderSize {
			return nil, fmt.Errorf("%w: truncated v2 header", ErrInvalidFormat)
		}
		metaLen := int(binary.LittleEndian.Uint32(data[32:36]))
		if metaLen < 0 || len(data) < v2FixedHeaderSize+metaLen {
			return nil, fmt.Errorf("%w: truncated v2 metadata", ErrInvalidFormat)
		}
		h.Metadata = parseMetadata(data[v2FixedHeaderSize : v2FixedHeaderSize+metaLen])
		tableStart, entrySize = v2FixedHeaderSize+metaLen, v2EntrySize

	case magic == Magic3Ultimate && version == Version3Ultimate:
		if len(data) < v3UltimateFixedHeaderSize {
			return nil, fmt.Errorf("%w: truncated v3 ultimate header", ErrInvalidFormat)
		}
		metaLen := int(binary.LittleEndian.Uint32(data[32:36]))
		if metaLen < 0 || len(data) < v3UltimateFixedHeaderSize+metaLen {
			return nil, fmt.Errorf("%w: truncated v3 ultimate metadata", ErrInvalidFormat)
		}
		h.Metadata = parseMetadata(data[v3UltimateFixedHeaderSize : v3UltimateFixedHeaderSize+metaLen])
		tableStart, entrySize = v3UltimateFixedHeaderSize+metaLen, v3UltimateEntrySize

	case magic == Magic3Stable && version == Version3Stable:
		if len(data) < v3StableHeaderSize {
			return nil, fmt.Errorf("%w: truncated v3.1 stable header", ErrInvalidFormat)
		}
		tableStart, entrySize = v3StableHeaderSize, v3StableEntrySize

	default:
		return nil, fmt.Errorf("%w: unrecognized magic/version", ErrInvalidFormat)
	}

	tableEnd := tableStart + entrySize*int(h.BlockCount)
	if tableEnd < tableStart || len(data) < tableEnd {
		return nil, fmt.Errorf("%w: truncated block table", ErrInvalidFormat)
	}

	entries := make([]BlockTableEntry, h.BlockCount)
	for i := range entries {
		entries[i] = parseEntry(data[tableStart+i*entrySize:tableStart+(i+1)*entrySize], version)
	}

	return &parsedContainer{
		header:  h,
		entries: entries,
		payload: data[tableEnd:],
		framed:  version == Version3Stable,
	}, nil
}

func parseMetadata(raw []byte) *Metadata {
	if len(raw) == 0 {
		return nil
	}
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return &m
}

// parseEntry decodes one fixed-width block-table record according to
// its revision's layout (spec §6), normalizing the algorithm id into
// the canonical catalogue.
func parseEntry(raw []byte, version Version) BlockTableEntry {
	e := BlockTableEntry{
		PayloadOffset:  binary.LittleEndian.Uint64(raw[0:8]),
		CompressedSize: binary.LittleEndian.Uint32(raw[8:12]),
		OriginalSize:   binary.LittleEndian.Uint32(raw[12:16]),
		BlockFlags:     raw[17],
		CRC32:          binary.LittleEndian.Uint32(raw[18:22]),
	}

	switch version {
	case Version1:
		e.AlgorithmID = normalizeV1Algorithm(raw[16])
	default:
		e.AlgorithmID = AlgorithmID(raw[16])
	}

	switch version {
	case Version2:
		e.ContentType = ContentType(contentTypeName(raw[22]))
	case Version3Ultimate:
		e.ContentType = ContentType(contentTypeName(raw[22]))
		e.Potential = float64(raw[23]) / 255.0
	}

	return e
}

// normalizeV1Algorithm maps v1's three-value scheme onto the
// canonical catalogue (spec §4.G). v1 predates per-level Zstd and
// per-speed LZ4 ids, so its single LZ4/Zstd codes map to the fast/
// balanced representatives of each family.
func normalizeV1Algorithm(b byte) AlgorithmID {
	switch b {
	case v1AlgoLZ4:
		return AlgoLZ4Fast
	case v1AlgoZstd:
		return AlgoZstd6
	default:
		return AlgoUncompressed
	}
}

// contentTypeName maps the single-byte content-type codes used by
// v2/v3-Ultimate block entries onto the package's ContentType strings,
// in the same enumeration order as spec.md §3's AnalysisRecord.
func contentTypeName(b byte) string {
	names := [...]string{
		string(ContentUnknown), string(ContentTextPlain), string(ContentTextStructured),
		string(ContentTextCode), string(ContentExecutable), string(ContentBinaryData),
		string(ContentAlreadyCompressed), string(ContentMultimedia), string(ContentRepetitive),
		string(ContentRandom),
	}
	if int(b) < len(names) {
		return names[b]
	}
	return string(ContentUnknown)
}

// decodeContainer performs the full Container Reader decode loop
// (spec §4.G): parse, fan block spans out to the Parallel Engine,
// verify CRC32 and size per block, concatenate in block_id order.
func decodeContainer(data []byte, workers int) ([]byte, Header, error) {
	pc, err := parseContainer(data)
	if err != nil {
		return nil, Header{}, err
	}
	if pc.header.BlockCount == 0 {
		return []byte{}, pc.header, nil
	}

	codec := newCodecAdapter()
	decoded, err := runDecode(pc.entries, pc.payload, codec, pc.framed, workers)
	if err != nil {
		return nil, Header{}, err
	}

	total := 0
	for _, d := range decoded {
		total += len(d)
	}
	out := make([]byte, 0, total)
	for _, d := range decoded {
		out = append(out, d...)
	}
	if uint64(len(out)) != pc.header.UncompressedSize {
		return nil, Header{}, fmt.Errorf("%w: total decoded size %d, header says %d", ErrSizeMismatch, len(out), pc.header.UncompressedSize)
	}
	return out, pc.header, nil
}
