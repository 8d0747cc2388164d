package debat

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Discourse boundary patterns for Dutch parliamentary transcripts, in
// preference order: new speaker turn, new agenda item, presiding officer,
// generic "Firstname Lastname:" speaker line. A boundary is the start of the
// blank line preceding the marker so the marker stays with the next chunk.
var boundaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\n\n(?:De heer|Mevrouw|Minister)`),
	regexp.MustCompile(`\n\n(?:Agendapunt|AGENDAPUNT)`),
	regexp.MustCompile(`\n\nVoorzitter:`),
	regexp.MustCompile(`\n\n[A-Z][a-z]+ [A-Z][a-z]+:`),
}

const (
	// tailAbsorb is the trailing span absorbed into the last chunk so a run
	// never ends with a near-empty chunk.
	tailAbsorb = 1000

	// boundarySearchBack / boundarySearchAhead bound the window scanned for
	// a discourse boundary around the arithmetic target cut.
	boundarySearchBack  = 2000
	boundarySearchAhead = 1000

	// minChunkSpan / maxOvershoot bound accepted boundary cuts: a chunk is
	// never pathologically small and never overshoots the target far.
	minChunkSpan = 5000
	maxOvershoot = 500
)

// Segment splits text into bounded chunks at natural discourse boundaries.
// Chunks cover the text contiguously in order, are trimmed of surrounding
// whitespace, and are numbered from 1; chunks that are empty after trimming
// are dropped without consuming a sequence number. Whitespace-only input
// yields no chunks. Segment cannot fail for maxChunkSize > 0.
func Segment(text string, maxChunkSize int) []Chunk {
	if maxChunkSize <= 0 || text == "" {
		return nil
	}

	var chunks []Chunk
	pos := 0
	seq := 1
	n := len(text)

	for pos < n {
		targetEnd := pos + maxChunkSize
		if targetEnd > n {
			targetEnd = n
		}

		var end int
		if targetEnd >= n-tailAbsorb {
			end = n
		} else {
			end = alignToRuneStart(text, targetEnd)
			if end <= pos {
				end = targetEnd
			}
			if b := findBoundary(text, pos, targetEnd); b != -1 {
				end = b
			}
		}

		chunkText := strings.TrimSpace(text[pos:end])
		if chunkText != "" {
			chunks = append(chunks, Chunk{
				SequenceNumber: seq,
				StartOffset:    pos,
				EndOffset:      end,
				Text:           chunkText,
			})
			seq++
		}
		pos = end
	}

	return chunks
}

// findBoundary scans the window around targetEnd for the discourse boundary
// closest to it, accepting only cuts in [pos+minChunkSpan, targetEnd+maxOvershoot].
// Returns -1 when no acceptable boundary exists.
func findBoundary(text string, pos, targetEnd int) int {
	searchStart := targetEnd - boundarySearchBack
	if searchStart < pos {
		searchStart = pos
	}
	searchEnd := targetEnd + boundarySearchAhead
	if searchEnd > len(text) {
		searchEnd = len(text)
	}
	window := text[searchStart:searchEnd]

	best := -1
	for _, pat := range boundaryPatterns {
		for _, loc := range pat.FindAllStringIndex(window, -1) {
			abs := searchStart + loc[0]
			if abs < pos+minChunkSpan || abs > targetEnd+maxOvershoot {
				continue
			}
			if best == -1 || absDiff(abs, targetEnd) < absDiff(best, targetEnd) {
				best = abs
			}
		}
	}
	return best
}

// alignToRuneStart moves a byte offset left until it no longer lands inside
// a multi-byte UTF-8 sequence.
func alignToRuneStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
