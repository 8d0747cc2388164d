package debat

import (
	"strings"
	"testing"
)

func TestSegment_SingleChunk(t *testing.T) {
	t.Parallel()

	text := "De heer Jansen (VVD): wij steunen dit voorstel."
	chunks := Segment(text, 30000)
	if len(chunks) != 1 {
		t.Fatalf("len(chunks)=%d, want 1", len(chunks))
	}
	c := chunks[0]
	if c.SequenceNumber != 1 {
		t.Fatalf("SequenceNumber=%d", c.SequenceNumber)
	}
	if c.StartOffset != 0 || c.EndOffset != len(text) {
		t.Fatalf("offsets=[%d,%d], want [0,%d]", c.StartOffset, c.EndOffset, len(text))
	}
	if c.Text != text {
		t.Fatalf("Text=%q", c.Text)
	}
}

func TestSegment_WhitespaceOnly(t *testing.T) {
	t.Parallel()

	if chunks := Segment("   \n\n\t  \n", 1000); len(chunks) != 0 {
		t.Fatalf("len(chunks)=%d, want 0", len(chunks))
	}
	if chunks := Segment("", 1000); chunks != nil {
		t.Fatalf("chunks=%v, want nil", chunks)
	}
	if chunks := Segment("tekst", 0); chunks != nil {
		t.Fatalf("chunks=%v, want nil for non-positive budget", chunks)
	}
}

func TestSegment_PrefersSpeakerBoundary(t *testing.T) {
	t.Parallel()

	// A speaker turn just before the arithmetic cut at 10000 should win.
	boundary := 9800
	var b strings.Builder
	b.WriteString(strings.Repeat("a", boundary))
	b.WriteString("\n\nDe heer Jansen (VVD): dank u wel, voorzitter. ")
	b.WriteString(strings.Repeat("b", 15000))
	text := b.String()

	chunks := Segment(text, 10000)
	if len(chunks) < 2 {
		t.Fatalf("len(chunks)=%d, want >= 2", len(chunks))
	}
	if chunks[0].EndOffset != boundary {
		t.Fatalf("first chunk EndOffset=%d, want %d", chunks[0].EndOffset, boundary)
	}
	if !strings.HasPrefix(chunks[1].Text, "De heer Jansen") {
		t.Fatalf("second chunk starts %q, want speaker marker", chunks[1].Text[:40])
	}
}

func TestSegment_IgnoresTooEarlyBoundary(t *testing.T) {
	t.Parallel()

	// The only boundary in the search window sits at 4000, well before the
	// minimum chunk span; segmentation falls back to the arithmetic cut.
	var b strings.Builder
	b.WriteString(strings.Repeat("a", 4000))
	b.WriteString("\n\nMevrouw De Vries (D66): ")
	b.WriteString(strings.Repeat("b", 20000))
	text := b.String()

	chunks := Segment(text, 5000)
	if len(chunks) < 2 {
		t.Fatalf("len(chunks)=%d, want >= 2", len(chunks))
	}
	if chunks[0].EndOffset != 5000 {
		t.Fatalf("first chunk EndOffset=%d, want arithmetic cut 5000", chunks[0].EndOffset)
	}
}

func TestSegment_AbsorbsShortTail(t *testing.T) {
	t.Parallel()

	// A final remainder inside the tail-absorb span is folded into the last
	// chunk instead of becoming a tiny trailing one.
	text := strings.Repeat("a", 10400)
	chunks := Segment(text, 10000)
	if len(chunks) != 1 {
		t.Fatalf("len(chunks)=%d, want 1", len(chunks))
	}
	if chunks[0].EndOffset != len(text) {
		t.Fatalf("EndOffset=%d, want %d", chunks[0].EndOffset, len(text))
	}
}

func TestSegment_ContiguousCoverage(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	names := []string{"Jansen (VVD)", "De Vries (D66)", "Bakker (CDA)", "Visser (SP)"}
	for i := 0; i < 40; i++ {
		b.WriteString("\n\nDe heer ")
		b.WriteString(names[i%len(names)])
		b.WriteString(": ")
		b.WriteString(strings.Repeat("het kabinet moet hier duidelijkheid over geven. ", 30))
	}
	text := b.String()

	chunks := Segment(text, 10000)
	if len(chunks) < 3 {
		t.Fatalf("len(chunks)=%d, want >= 3", len(chunks))
	}
	if chunks[0].StartOffset != 0 {
		t.Fatalf("first StartOffset=%d", chunks[0].StartOffset)
	}
	if last := chunks[len(chunks)-1]; last.EndOffset != len(text) {
		t.Fatalf("last EndOffset=%d, want %d", last.EndOffset, len(text))
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].StartOffset != chunks[i-1].EndOffset {
			t.Fatalf("gap between chunk %d and %d: %d != %d",
				i, i+1, chunks[i-1].EndOffset, chunks[i].StartOffset)
		}
		if chunks[i].SequenceNumber != chunks[i-1].SequenceNumber+1 {
			t.Fatalf("sequence numbers not consecutive at chunk %d", i)
		}
	}
	// The last chunk may absorb the tail span on top of the budget.
	for i := 0; i < len(chunks)-1; i++ {
		if len(chunks[i].Text) > 10000+maxOvershoot {
			t.Fatalf("chunk %d length %d exceeds budget+overshoot", i+1, len(chunks[i].Text))
		}
	}
}

func TestSegment_DoesNotSplitRunes(t *testing.T) {
	t.Parallel()

	// Multi-byte text with no discourse boundaries forces raw arithmetic
	// cuts; they must still land on rune starts.
	text := strings.Repeat("é", 9000)
	chunks := Segment(text, 7001)
	for _, c := range chunks {
		for _, r := range c.Text {
			if r == '�' {
				t.Fatalf("chunk %d contains a torn rune", c.SequenceNumber)
			}
		}
	}
}
