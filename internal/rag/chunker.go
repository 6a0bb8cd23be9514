// Package rag holds the retrieval-augmented generation pieces: chunking,
// similarity ranking and answer composition.
package rag

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type ChunkOptions struct {
	// MaxChars bounds a chunk, in runes.
	MaxChars int
	// MinChars drops shorter fragments.
	MinChars int
	// OverlapSentences repeats trailing sentences of a window at the start of the next.
	OverlapSentences int
}

func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{MaxChars: 1000, MinChars: 10, OverlapSentences: 1}
}

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)

type Chunker struct {
	opts ChunkOptions
}

func NewChunker(opts ChunkOptions) *Chunker {
	def := DefaultChunkOptions()
	if opts.MaxChars <= 0 {
		opts.MaxChars = def.MaxChars
	}
	if opts.MinChars < 0 {
		opts.MinChars = 0
	}
	if opts.OverlapSentences < 0 {
		opts.OverlapSentences = 0
	}
	return &Chunker{opts: opts}
}

// Chunk splits text into paragraphs, re-splitting long ones by sentence.
// Blank input yields nil.
func (c *Chunker) Chunk(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	var out []string
	for _, p := range paragraphBreak.Split(trimmed, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		var pieces []string
		if runeLen(p) <= c.opts.MaxChars {
			pieces = []string{p}
		} else {
			pieces = c.pack(splitSentences(p))
		}
		for _, piece := range pieces {
			if runeLen(piece) >= c.opts.MinChars {
				out = append(out, piece)
			}
		}
	}

	if len(out) == 0 {
		return []string{trimmed}
	}
	return out
}

// pack groups sentences into windows of at most MaxChars runes.
func (c *Chunker) pack(sentences []string) []string {
	var (
		out    []string
		window []string
		size   int
	)
	flush := func() {
		if len(window) > 0 {
			out = append(out, strings.Join(window, " "))
		}
	}

	for _, s := range sentences {
		n := runeLen(s)
		if n > c.opts.MaxChars {
			flush()
			window, size = nil, 0
			out = append(out, splitWords(s, c.opts.MaxChars)...)
			continue
		}

		if len(window) > 0 && size+1+n > c.opts.MaxChars {
			flush()
			keep := c.opts.OverlapSentences
			if keep > len(window) {
				keep = len(window)
			}
			window = append([]string(nil), window[len(window)-keep:]...)
			size = joinedLen(window)
			if len(window) > 0 && size+1+n > c.opts.MaxChars {
				window, size = nil, 0
			}
		}

		if len(window) > 0 {
			size++
		}
		window = append(window, s)
		size += n
	}
	flush()
	return out
}

// splitSentences cuts after runs of . ! ? (plus closing quotes) followed by whitespace.
func splitSentences(p string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(p)
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		j := i + 1
		for j < len(runes) && (isTerminator(runes[j]) || isCloser(runes[j])) {
			j++
		}
		if j < len(runes) && !unicode.IsSpace(runes[j]) {
			i = j - 1
			continue
		}
		if s := strings.TrimSpace(string(runes[start:j])); s != "" {
			out = append(out, s)
		}
		start = j
		i = j - 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// splitWords hard-wraps an overlong sentence on whitespace. A single word
// longer than max is cut by runes.
func splitWords(s string, max int) []string {
	var (
		out  []string
		cur  strings.Builder
		size int
	)
	for _, w := range strings.Fields(s) {
		for runeLen(w) > max {
			if size > 0 {
				out = append(out, cur.String())
				cur.Reset()
				size = 0
			}
			r := []rune(w)
			out = append(out, string(r[:max]))
			w = string(r[max:])
		}
		n := runeLen(w)
		if n == 0 {
			continue
		}
		if size > 0 && size+1+n > max {
			out = append(out, cur.String())
			cur.Reset()
			size = 0
		}
		if size > 0 {
			cur.WriteByte(' ')
			size++
		}
		cur.WriteString(w)
		size += n
	}
	if size > 0 {
		out = append(out, cur.String())
	}
	return out
}

func isTerminator(r rune) bool { return r == '.' || r == '!' || r == '?' || r == '؟' }

func isCloser(r rune) bool { return r == '"' || r == '\'' || r == ')' || r == ']' || r == '”' || r == '’' }

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func joinedLen(parts []string) int {
	if len(parts) == 0 {
		return 0
	}
	n := len(parts) - 1
	for _, p := range parts {
		n += runeLen(p)
	}
	return n
}
