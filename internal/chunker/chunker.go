// Package chunker parses course transcripts into typed metadata plus an
// ordered sequence of overlapping, sentence-bounded text chunks.
package chunker

import (
	"regexp"
	"strings"
)

const (
	// DefaultChunkSize is the default maximum chunk length in characters.
	DefaultChunkSize = 800
	// DefaultChunkOverlap is the default overlap carried between chunks.
	DefaultChunkOverlap = 100
)

// Processor splits lesson bodies into sentence-bounded chunks of at most
// chunkSize characters, seeding each chunk with an overlap tail of the
// previous one so context spanning a boundary is not lost.
type Processor struct {
	chunkSize int
	overlap   int
	splitter  *regexp.Regexp
}

// New creates a chunking processor. Non-positive size falls back to the
// default; overlap is clamped below the chunk size.
func New(chunkSize, overlap int) *Processor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Processor{
		chunkSize: chunkSize,
		overlap:   overlap,
		splitter:  regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?]+)`),
	}
}

// chunk folds the text's sentence sequence into chunks. A chunk is emitted
// before a sentence that would bring the joined length (one separator per
// sentence) to chunkSize or beyond; a single sentence longer than chunkSize
// stays whole.
func (p *Processor) chunk(text string) []string {
	sentences := p.sentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var cur []string
	size := 0  // sum of len(part)+1 over cur
	fresh := 0 // parts of cur that are not carried overlap

	for _, s := range sentences {
		if len(s)+1 >= p.chunkSize {
			// An oversized sentence stays whole and forms its own chunk.
			if fresh > 0 {
				chunks = append(chunks, strings.Join(cur, " "))
			}
			chunks = append(chunks, s)
			cur, size = p.overlapTail([]string{s})
			fresh = 0
			continue
		}
		if size+len(s)+1 >= p.chunkSize {
			if fresh > 0 {
				chunks = append(chunks, strings.Join(cur, " "))
				cur, size = p.overlapTail(cur)
			} else {
				// cur holds only carried overlap; keeping it would push the
				// chunk past the size bound.
				cur, size = nil, 0
			}
			fresh = 0
		}
		cur = append(cur, s)
		size += len(s) + 1
		fresh++
	}
	if fresh > 0 {
		chunks = append(chunks, strings.Join(cur, " "))
	}
	return chunks
}

// overlapTail returns the rolling window carried into the next chunk: the
// longest run of whole trailing sentences totalling at most overlap
// characters. When not even the last sentence fits, it falls back to the
// trailing overlap characters of the emitted chunk snapped forward to a word
// boundary, so the carried text still never breaks mid-word.
func (p *Processor) overlapTail(parts []string) ([]string, int) {
	if p.overlap == 0 {
		return nil, 0
	}
	total := 0
	i := len(parts)
	for i > 0 && total+len(parts[i-1]) <= p.overlap {
		total += len(parts[i-1])
		i--
	}
	if i < len(parts) {
		tail := append([]string(nil), parts[i:]...)
		size := 0
		for _, s := range tail {
			size += len(s) + 1
		}
		return tail, size
	}

	joined := strings.Join(parts, " ")
	if len(joined) <= p.overlap {
		return []string{joined}, len(joined) + 1
	}
	cut := joined[len(joined)-p.overlap:]
	idx := strings.IndexByte(cut, ' ')
	if idx < 0 {
		return nil, 0
	}
	cut = cut[idx+1:]
	if cut == "" {
		return nil, 0
	}
	return []string{cut}, len(cut) + 1
}

// sentences splits text at sentence-ending punctuation, keeping a trailing
// fragment without terminal punctuation as its own sentence.
func (p *Processor) sentences(text string) []string {
	matches := p.splitter.FindAllStringIndex(text, -1)
	var out []string
	last := 0
	for _, m := range matches {
		s := strings.TrimSpace(text[m[0]:m[1]])
		if s != "" {
			out = append(out, s)
		}
		last = m[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		out = append(out, collapseSpace(rest))
	}
	for i := range out {
		out[i] = collapseSpace(out[i])
	}
	return out
}

var spaceRe = regexp.MustCompile(`\s+`)

func collapseSpace(s string) string {
	return spaceRe.ReplaceAllString(s, " ")
}
