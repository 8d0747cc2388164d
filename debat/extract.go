package debat

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/parlemint/debatsum/debat/fileutil"
)

// Completion text is adversarial input from a reliability standpoint:
// truncation at token limits, markdown fencing, single-quoted keys and
// trailing commas are all observed failure modes. Extraction therefore runs
// an ordered ladder of repair strategies and degrades to a sentinel record
// instead of failing, so callers always receive something mergeable.

// rawExcerptLimit bounds how much unparseable output is kept on a sentinel.
const rawExcerptLimit = 500

// repairStrategy produces one candidate JSON text from raw completion
// output, or ok=false when the strategy does not apply.
type repairStrategy struct {
	name  string
	apply func(raw string) (candidate string, ok bool)
}

var repairLadder = []repairStrategy{
	{"whole", wholeText},
	{"braces", braceSubstring},
	{"fence", fencedBlock},
	{"textual", textualRepair},
}

func wholeText(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	return s, s != ""
}

// braceSubstring cuts the substring between the first '{' and the last '}',
// dropping explanatory prose around the payload.
func braceSubstring(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

func fencedBlock(raw string) (string, bool) {
	m := fenceRe.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return m[1], true
}

var (
	trailingCommaRe  = regexp.MustCompile(`,(\s*[}\]])`)
	singleQuoteKeyRe = regexp.MustCompile(`'([^']*)'\s*:`)
)

// textualRepair applies the common mechanical fixes to the braces-delimited
// substring: trailing commas stripped, single-quoted keys requoted, and
// unmatched opening braces/brackets closed (covers token-limit truncation).
func textualRepair(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start == -1 {
		return "", false
	}
	s := raw[start:]
	if end := strings.LastIndexByte(s, '}'); end != -1 {
		s = s[:end+1]
	}
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = singleQuoteKeyRe.ReplaceAllString(s, `"$1":`)
	s = closeUnbalanced(s)
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	return s, true
}

// closeUnbalanced appends the closing characters for any braces or brackets
// left open, finishing an unterminated string first.
func closeUnbalanced(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(s)
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}

// decodeWithRepairs walks the repair ladder and unmarshals the first
// candidate that parses into v. It returns the name of the strategy that
// succeeded; valid input is decoded verbatim by the first rung, so the
// ladder never alters already well-formed JSON.
func decodeWithRepairs(raw string, v any) (string, bool) {
	for _, strat := range repairLadder {
		candidate, ok := strat.apply(raw)
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), v); err == nil {
			return strat.name, true
		}
	}
	return "", false
}

var topicsFieldRe = regexp.MustCompile(`"topics"\s*:\s*\[`)

// analysisResponse is the object shape the analysis prompt asks for. It is
// also the source of the JSON schema embedded in that prompt.
type analysisResponse struct {
	Summary   string   `json:"summary"`
	Topics    []Topic  `json:"topics"`
	Decisions []string `json:"decisions"`
	Exchanges []string `json:"exchanges"`

	FactFlags []FactFlag `json:"fact_flags,omitempty"`
}

// ExtractChunkAnalysis recovers a ChunkAnalysis from raw completion text.
// It never fails: when every repair strategy is exhausted it returns a
// sentinel analysis carrying an error note, an excerpt of the raw output,
// and empty default collections.
func ExtractChunkAnalysis(raw string) ChunkAnalysis {
	var resp analysisResponse
	if _, ok := decodeWithRepairs(raw, &resp); ok {
		a := ChunkAnalysis{
			Summary:   strings.TrimSpace(resp.Summary),
			Topics:    resp.Topics,
			Decisions: resp.Decisions,
			Exchanges: resp.Exchanges,
			FactFlags: resp.FactFlags,
		}
		a.ensureDefaults()
		return a
	}

	// The output is unparseable as a whole, but a recognizable topics array
	// means the model was on schema: keep a flagged minimal record rather
	// than a parse-failure sentinel.
	if topicsFieldRe.MatchString(raw) {
		a := ChunkAnalysis{Partial: true}
		a.ensureDefaults()
		return a
	}

	a := ChunkAnalysis{
		Error:      "could not parse completion output",
		RawExcerpt: fileutil.Truncate(raw, rawExcerptLimit),
	}
	a.ensureDefaults()
	return a
}

// reportResponse is the object shape the synthesis prompt asks for.
type reportResponse struct {
	ExecutiveSummary  string        `json:"executive_summary"`
	MainTopics        []ReportTopic `json:"main_topics"`
	KeyDecisions      []string      `json:"key_decisions"`
	PoliticalDynamics string        `json:"political_dynamics"`
}

// extractReport recovers the narrative report fields from raw completion
// text. ok is false when nothing parseable was found; the aggregator then
// falls back to its deterministic report.
func extractReport(raw string) (reportResponse, bool) {
	var resp reportResponse
	if _, ok := decodeWithRepairs(raw, &resp); ok {
		resp.ExecutiveSummary = strings.TrimSpace(resp.ExecutiveSummary)
		resp.PoliticalDynamics = strings.TrimSpace(resp.PoliticalDynamics)
		return resp, true
	}
	return reportResponse{}, false
}
