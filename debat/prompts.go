package debat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/parlemint/debatsum/debat/fileutil"
	"github.com/parlemint/debatsum/debat/provider"
)

// analysisInstructions frames the per-chunk task. The concrete output
// schema and the chunk context are appended by buildAnalysisPrompt.
const analysisInstructions = `You are analyzing a segment of a Dutch parliamentary debate (Tweede Kamer).
Provide a structured analysis focusing on:
1. Topics discussed in this segment
2. Party positions on those topics, with key quotes where notable
3. Decisions, motions, or votes mentioned
4. Significant debates or disagreements

Be objective and neutral. Focus on factual content, not rhetoric.
Respond with a single JSON object matching this schema, and nothing else:`

const factFlagInstructions = `Additionally, flag factual claims that appear questionable. For each flag
report the claim, who made it, what the issue is, the correct information
if known, a confidence level (LOW, MEDIUM or HIGH), a category, and a
source. Only flag claims you have a concrete reason to doubt.`

// synthesisInstructions frames the final report task over the merged
// per-chunk material.
const synthesisInstructions = `Create the final summary of a Dutch parliamentary meeting (Tweede Kamer)
by synthesizing the analysis of its segments. Be objective, factual, and
politically neutral. Keep it concise.
Respond with a single JSON object matching this schema, and nothing else:`

var (
	analysisSchemaJSON  = provider.SchemaJSON[analysisResponse]()
	synthesisSchemaJSON = provider.SchemaJSON[reportResponse]()
)

// buildAnalysisPrompt assembles the user message for one chunk. Chunk text
// is normalized to plain ASCII punctuation and truncated to the prompt
// budget, which is independent of (and at most) the chunking budget.
func buildAnalysisPrompt(chunk Chunk, speakers SpeakerMap, meeting MeetingInfo, truncLimit int, factChecking bool) string {
	var b strings.Builder
	b.WriteString(analysisInstructions)
	b.WriteString("\n\n")
	b.WriteString(analysisSchemaJSON)
	b.WriteString("\n\n")
	if factChecking {
		b.WriteString(factFlagInstructions)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Meeting: %s\nDate: %s\n", orUnknown(meeting.Title), orUnknown(meeting.Date))
	if len(speakers) > 0 {
		b.WriteString("\nKnown speakers in this segment:\n")
		b.WriteString(formatSpeakers(speakers))
	}

	text := fileutil.NormalizePromptText(chunk.Text)
	if truncLimit > 0 {
		text = fileutil.Truncate(text, truncLimit)
	}
	b.WriteString("\nSegment text to analyze:\n")
	b.WriteString(text)
	return b.String()
}

// buildSynthesisPrompt assembles the user message for the final report call
// from the deterministic merge of all chunk analyses.
func buildSynthesisPrompt(merged Merged, meeting MeetingInfo) string {
	var b strings.Builder
	b.WriteString(synthesisInstructions)
	b.WriteString("\n\n")
	b.WriteString(synthesisSchemaJSON)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Meeting: %s\nDate: %s\n\n", orUnknown(meeting.Title), orUnknown(meeting.Date))

	fmt.Fprintf(&b, "Topics found (%d):\n", len(merged.Topics))
	for _, t := range merged.Topics {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, fileutil.Truncate(t.Description, 200))
		positions := consolidatePositions(t.Positions)
		for _, party := range sortedParties(positions) {
			fmt.Fprintf(&b, "  %s: %s\n", party, fileutil.Truncate(positions[party], 200))
		}
	}

	if len(merged.Decisions) > 0 {
		fmt.Fprintf(&b, "\nDecisions mentioned (%d):\n", len(merged.Decisions))
		for _, d := range merged.Decisions {
			fmt.Fprintf(&b, "- %s\n", fileutil.Truncate(d, 200))
		}
	}
	if len(merged.Exchanges) > 0 {
		fmt.Fprintf(&b, "\nNotable exchanges (%d):\n", len(merged.Exchanges))
		for _, e := range merged.Exchanges {
			fmt.Fprintf(&b, "- %s\n", fileutil.Truncate(e, 200))
		}
	}
	return fileutil.NormalizePromptText(b.String())
}

// formatSpeakers renders a speaker map as sorted "name (party)" lines so
// the prompt is stable across runs.
func formatSpeakers(m SpeakerMap) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "- %s (%s)\n", name, m[name])
	}
	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
