package extractor

import (
	"strings"
	"unicode"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	MinChunkSize        = 200
)

// SplitIntoChunks splits text into overlapping rune windows. Window ends are
// pulled back to the last whitespace in their second half and window starts
// pushed forward to a word boundary, so words are not cut.
func SplitIntoChunks(text string, chunkSize int, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	r := []rune(text)

	if chunkSize < MinChunkSize {
		chunkSize = MinChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 5
	}

	out := make([]string, 0, len(r)/(chunkSize-overlap)+1)
	for start := 0; start < len(r); {
		end := start + chunkSize
		if end >= len(r) {
			end = len(r)
		} else if cut := lastSpace(r[start+chunkSize/2 : end]); cut >= 0 {
			end = start + chunkSize/2 + cut
		}

		if p := strings.TrimSpace(string(r[start:end])); p != "" {
			out = append(out, p)
		}
		if end == len(r) {
			break
		}

		// Start the next window on a word boundary inside the overlap.
		next := end - overlap
		for next > start && next < end && !unicode.IsSpace(r[next-1]) {
			next++
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func lastSpace(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if unicode.IsSpace(r[i]) {
			return i
		}
	}
	return -1
}
