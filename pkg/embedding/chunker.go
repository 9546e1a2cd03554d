package embedding

import (
	"strings"
	"unicode/utf8"

	"github.com/estategraph/estate-engine/pkg/config"
)

// minChunkLength drops trailing fragments too short to embed usefully.
const minChunkLength = 100

// Chunker splits embedding text into overlapping windows before vectors are
// requested. With chunking disabled every text is a single node.
type Chunker struct {
	method  string
	size    int
	overlap int
}

// NewChunker builds a chunker from configuration. The semantic method is an
// alias of sentence; a disabled config degrades to none.
func NewChunker(cfg config.ChunkingConfig) *Chunker {
	method := cfg.Method
	if !cfg.Enable {
		method = "none"
	}
	if method == "semantic" {
		method = "sentence"
	}
	size := cfg.ChunkSize
	if size <= 0 {
		size = 512
	}
	overlap := cfg.ChunkOverlap
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Chunker{method: method, size: size, overlap: overlap}
}

// Split returns the chunks for one text. Empty or whitespace-only input
// yields no chunks, so the row produces no embedding nodes.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if c.method == "none" || utf8.RuneCountInString(text) <= c.size {
		return []string{text}
	}
	switch c.method {
	case "sentence":
		return c.splitSentences(text)
	default:
		return c.splitWindows(text)
	}
}

// splitWindows slides a fixed window of size runes with the configured
// overlap. Trailing fragments shorter than minChunkLength are dropped.
func (c *Chunker) splitWindows(text string) []string {
	runes := []rune(text)
	step := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if utf8.RuneCountInString(chunk) >= minChunkLength {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// splitSentences greedily packs whole sentences into chunks no larger than
// the window size. A single sentence longer than the window falls back to
// fixed windows over that sentence.
func (c *Chunker) splitSentences(text string) []string {
	sentences := splitIntoSentences(text)

	var chunks []string
	var current strings.Builder
	currentRunes := 0
	flush := func() {
		chunk := strings.TrimSpace(current.String())
		current.Reset()
		currentRunes = 0
		if utf8.RuneCountInString(chunk) >= minChunkLength {
			chunks = append(chunks, chunk)
		}
	}

	for _, s := range sentences {
		n := utf8.RuneCountInString(s)
		if n > c.size {
			flush()
			chunks = append(chunks, c.splitWindows(s)...)
			continue
		}
		if currentRunes > 0 && currentRunes+1+n > c.size {
			flush()
		}
		if currentRunes > 0 {
			current.WriteByte(' ')
			currentRunes++
		}
		current.WriteString(s)
		currentRunes += n
	}
	flush()
	return chunks
}

// splitIntoSentences breaks on terminal punctuation, keeping the punctuation
// with its sentence.
func splitIntoSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			s := strings.TrimSpace(text[start : i+1])
			if s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}
