package embedding

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estategraph/estate-engine/pkg/config"
)

func simpleChunker(size, overlap int) *Chunker {
	return NewChunker(config.ChunkingConfig{
		Enable:       true,
		Method:       "simple",
		ChunkSize:    size,
		ChunkOverlap: overlap,
	})
}

func TestChunkerDisabledPassesThrough(t *testing.T) {
	c := NewChunker(config.ChunkingConfig{Enable: false, Method: "simple", ChunkSize: 10})
	long := strings.Repeat("x", 5000)
	chunks := c.Split(long)
	require.Len(t, chunks, 1)
	assert.Equal(t, long, chunks[0])
}

func TestChunkerEmptyTextYieldsNoChunks(t *testing.T) {
	c := simpleChunker(512, 50)
	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\t  "))
}

func TestChunkerShortTextSingleChunk(t *testing.T) {
	c := simpleChunker(512, 50)
	chunks := c.Split("a short text")
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short text", chunks[0])
}

func TestChunkerSimpleWindows(t *testing.T) {
	// 1100 characters with a 512 window and 50 overlap: windows start at
	// 0, 462 and 924, so three chunks with the last one 176 long.
	text := strings.Repeat("ab", 550)
	c := simpleChunker(512, 50)

	chunks := c.Split(text)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 512)
	assert.Len(t, chunks[1], 512)
	assert.Len(t, chunks[2], 176)

	// Consecutive chunks share the 50-character overlap.
	assert.Equal(t, chunks[0][462:], chunks[1][:50])
}

func TestChunkerDropsShortTrailingFragment(t *testing.T) {
	// 950 characters: the second window covers 462..950 (488 chars), the
	// third would start at 924 and hold only 26, below the minimum.
	text := strings.Repeat("c", 950)
	chunks := simpleChunker(512, 50).Split(text)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[1], 488)
}

func TestChunkerMultibyteWindowsStayValidUTF8(t *testing.T) {
	// 950 runes of a three-byte character: same window geometry as the
	// ASCII case, and no window may land inside a rune.
	text := strings.Repeat("界", 950)
	chunks := simpleChunker(512, 50).Split(text)
	require.Len(t, chunks, 2)
	assert.Equal(t, 512, utf8.RuneCountInString(chunks[0]))
	assert.Equal(t, 488, utf8.RuneCountInString(chunks[1]))
	for i, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk), "chunk %d", i)
	}

	// Consecutive chunks share the 50-rune overlap.
	first := []rune(chunks[0])
	second := []rune(chunks[1])
	assert.Equal(t, string(first[462:]), string(second[:50]))
}

func TestChunkerSizeCountsRunesNotBytes(t *testing.T) {
	// 400 runes fit in one 512 window even though the text is 1200 bytes.
	text := strings.Repeat("世", 400)
	chunks := simpleChunker(512, 50).Split(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunkerSentencePacksWholeSentences(t *testing.T) {
	sentence := strings.Repeat("word ", 30) + "end." // ~154 chars
	text := strings.TrimSpace(strings.Repeat(sentence+" ", 6))

	c := NewChunker(config.ChunkingConfig{
		Enable:       true,
		Method:       "sentence",
		ChunkSize:    400,
		ChunkOverlap: 50,
	})
	chunks := c.Split(text)
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 400)
		assert.True(t, strings.HasSuffix(chunk, "end."), "chunks end on sentence boundaries")
	}
}

func TestChunkerSemanticAliasesSentence(t *testing.T) {
	a := NewChunker(config.ChunkingConfig{Enable: true, Method: "semantic", ChunkSize: 400, ChunkOverlap: 50})
	b := NewChunker(config.ChunkingConfig{Enable: true, Method: "sentence", ChunkSize: 400, ChunkOverlap: 50})

	text := strings.TrimSpace(strings.Repeat(strings.Repeat("word ", 40)+"stop. ", 4))
	assert.Equal(t, b.Split(text), a.Split(text))
}

func TestSplitIntoSentences(t *testing.T) {
	got := splitIntoSentences("First one. Second! Third? trailing fragment")
	assert.Equal(t, []string{"First one.", "Second!", "Third?", "trailing fragment"}, got)
}
