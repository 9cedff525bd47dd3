package pof

import (
	"fmt"
	"os"

	"github.com/Faultbox/pofconv/pkg/chunk"
)

// ChunkInfo locates one top-level chunk without decoding it.
type ChunkInfo struct {
	Tag    chunk.Tag
	Offset int // of the chunk header
	Size   int // payload bytes
}

// Scan walks the chunk framing of a POF file. It validates the file header
// the same way Parse does but never looks inside a payload.
func Scan(data []byte) (Version, []ChunkInfo, error) {
	r := chunk.NewReader(data)
	version, err := readFileHeader(r)
	if err != nil {
		return 0, nil, err
	}

	var chunks []ChunkInfo
	for r.Remaining() > 0 {
		start := r.Pos()
		h, err := r.ReadHeader()
		if err != nil {
			return version, chunks, fmt.Errorf("chunk header at offset %d: %w", start, err)
		}
		if err := r.SkipChunk(h.Size); err != nil {
			return version, chunks, fmt.Errorf("chunk %s at offset %d: %w", h.Tag, start, err)
		}
		chunks = append(chunks, ChunkInfo{Tag: h.Tag, Offset: start, Size: int(h.Size)})
	}
	return version, chunks, nil
}

// ScanFile reads path and scans it.
func ScanFile(path string) (Version, []ChunkInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, fmt.Errorf("reading POF file: %w", err)
	}
	return Scan(data)
}
