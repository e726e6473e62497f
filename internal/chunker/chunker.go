// Package chunker splits extracted text into display-sized pieces along
// paragraph and sentence boundaries. Unlike retrieval-oriented chunking,
// the split is lossless and pieces never overlap: every piece is
// rendered, so duplicated or dropped text would show up on screen.
package chunker

import "strings"

// Config bounds the size of emitted pieces, in estimated tokens.
type Config struct {
	MaxTokens int
	// MinTokens keeps a trailing fragment from standing alone; it is
	// merged into the piece before it instead.
	MinTokens int
}

func DefaultConfig() Config {
	return Config{
		MaxTokens: 350,
		MinTokens: 20,
	}
}

// Split breaks text into pieces of at most roughly MaxTokens. Paragraph
// boundaries are preferred; a single oversized paragraph is split at
// sentence boundaries instead.
func Split(text string, cfg Config) []string {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	if cfg.MinTokens <= 0 {
		cfg.MinTokens = DefaultConfig().MinTokens
	}

	var pieces []string
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if currentTokens > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
			currentTokens = 0
		}
	}

	for _, para := range splitParagraphs(text) {
		paraTokens := EstimateTokens(para)

		if paraTokens > cfg.MaxTokens {
			flush()
			pieces = append(pieces, splitOversized(para, cfg.MaxTokens)...)
			continue
		}
		if currentTokens > 0 && currentTokens+paraTokens > cfg.MaxTokens {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
		currentTokens += paraTokens
	}
	flush()

	// A trailing fragment reads better attached to its predecessor than
	// alone.
	if n := len(pieces); n > 1 && EstimateTokens(pieces[n-1]) < cfg.MinTokens {
		pieces[n-2] = pieces[n-2] + "\n\n" + pieces[n-1]
		pieces = pieces[:n-1]
	}

	return pieces
}

func splitParagraphs(text string) []string {
	var result []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

// splitOversized accumulates sentences up to maxTokens per piece. A
// single sentence over the limit becomes its own piece; cutting inside
// a sentence is worse than an oversized piece.
func splitOversized(para string, maxTokens int) []string {
	var result []string
	var current strings.Builder
	currentTokens := 0

	for _, sent := range sentences(para) {
		sentTokens := EstimateTokens(sent)
		if currentTokens > 0 && currentTokens+sentTokens > maxTokens {
			result = append(result, current.String())
			current.Reset()
			currentTokens = 0
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
		currentTokens += sentTokens
	}
	if currentTokens > 0 {
		result = append(result, current.String())
	}
	return result
}

// sentences splits on terminal punctuation followed by a space.
func sentences(text string) []string {
	var result []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			result = append(result, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		result = append(result, s)
	}
	return result
}
