package chunker

import (
	"strings"

	"pdfchat/internal/models"
)

// Splitter cuts section text into overlapping windows. Cut points prefer a
// paragraph break, then a sentence end, then a word break, scanning backward
// from the max-length cutoff; only if none exists does it cut mid-word.
// Output is fully determined by the input text and the two sizes.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) Splitter {
	if chunkSize <= 0 {
		chunkSize = models.DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 2
	}
	return Splitter{ChunkSize: chunkSize, Overlap: overlap}
}

// Split chunks every section, preserving section order. Chunk ids are a
// running 1-based sequence per source file, so an id is stable for a given
// upload set and usable as part of an index entry id.
func (s Splitter) Split(sections []models.Section) []models.Chunk {
	var chunks []models.Chunk
	seq := make(map[string]int)
	for _, section := range sections {
		for _, window := range s.windows(section.Content) {
			seq[section.SourceFilename]++
			chunks = append(chunks, models.Chunk{
				Content:        window,
				SourceFilename: section.SourceFilename,
				PageNumber:     section.PageNumber,
				ChunkID:        seq[section.SourceFilename],
			})
		}
	}
	return chunks
}

func (s Splitter) windows(content string) []string {
	if content == "" {
		return nil
	}
	if len(content) <= s.ChunkSize {
		return []string{content}
	}

	var windows []string
	start := 0
	for start < len(content) {
		end := start + s.ChunkSize
		if end >= len(content) {
			windows = append(windows, content[start:])
			break
		}
		end = s.cutPoint(content, start, end)
		windows = append(windows, content[start:end])

		next := end - s.Overlap
		if next <= start {
			// window too small to overlap, advance without it
			next = end
		}
		start = next
	}
	return windows
}

// cutPoint returns the window end in (start, max]. Within a boundary type the
// last occurrence before max wins.
func (s Splitter) cutPoint(content string, start, max int) int {
	window := content[start:max]

	if i := strings.LastIndex(window, "\n\n"); i > 0 {
		return start + i + 2
	}

	for i := max - 1; i > start; i-- {
		c := content[i-1]
		if (c == '.' || c == '!' || c == '?') && (content[i] == ' ' || content[i] == '\n') {
			return i + 1
		}
	}

	if i := strings.LastIndexAny(window, " \n\t"); i > 0 {
		return start + i + 1
	}

	return max
}
