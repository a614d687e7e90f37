package extractor

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitIntoChunksEmpty(t *testing.T) {
	assert.Nil(t, SplitIntoChunks("   \n\t", 1000, 200))
}

func TestSplitIntoChunksShortTextIsOneChunk(t *testing.T) {
	got := SplitIntoChunks("  Breakfast is served from 7am to 10am.  ", 1000, 200)
	require.Len(t, got, 1)
	assert.Equal(t, "Breakfast is served from 7am to 10am.", got[0])
}

func TestSplitIntoChunksWindowsOverlap(t *testing.T) {
	words := make([]string, 0, 600)
	for i := 0; i < 600; i++ {
		words = append(words, "towel")
	}
	text := strings.Join(words, " ")

	chunks := SplitIntoChunks(text, 1000, 200)
	require.Greater(t, len(chunks), 3)
	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 1000, "chunk %d too long", i)
		assert.True(t, strings.HasPrefix(c, "towel"), "chunk %d starts mid-word: %q", i, c[:10])
		assert.True(t, strings.HasSuffix(c, "towel"), "chunk %d ends mid-word", i)
	}
	// Everything is covered: the last chunk reaches the end of the text.
	assert.True(t, strings.HasSuffix(text, chunks[len(chunks)-1]))
}

func TestSplitIntoChunksClampsSizeAndOverlap(t *testing.T) {
	text := strings.Repeat("a", 450)

	chunks := SplitIntoChunks(text, 10, -5)
	require.Len(t, chunks, 3)
	assert.Equal(t, MinChunkSize, utf8.RuneCountInString(chunks[0]))

	// An overlap as wide as the window still makes progress.
	chunks = SplitIntoChunks(text, 200, 500)
	require.NotEmpty(t, chunks)
	assert.Less(t, len(chunks), 10)
}

func TestSplitIntoChunksKeepsMultibyteRunes(t *testing.T) {
	text := strings.Repeat("朝食は七時から ", 200)
	for _, c := range SplitIntoChunks(text, 300, 50) {
		assert.True(t, utf8.ValidString(c))
	}
}
