package debat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parlemint/debatsum/debat/provider"
)

// Merged is the deterministic merge of chunk analyses: everything the
// final report needs, before any further completion call.
type Merged struct {
	Topics    []Topic
	Decisions []string
	Exchanges []string
	FactFlags []FactFlag

	topicIndex map[string]int
	degraded   int
}

// Add folds one chunk analysis into the merge. Topics merge by exact name;
// the first occurrence's description is kept, later occurrences only extend
// positions and source chunks. Decisions and exchanges are flattened in
// chunk order without deduplication. Fact flags below MEDIUM confidence
// are dropped.
func (m *Merged) Add(a ChunkAnalysis) {
	if m.topicIndex == nil {
		m.topicIndex = make(map[string]int)
	}
	if a.Degraded() {
		m.degraded++
	}

	for _, t := range a.Topics {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			continue
		}
		i, seen := m.topicIndex[name]
		if !seen {
			desc := t.Description
			if desc == "" {
				desc = fmt.Sprintf("Discussion about %s", name)
			}
			m.Topics = append(m.Topics, Topic{Name: name, Description: desc})
			i = len(m.Topics) - 1
			m.topicIndex[name] = i
		}
		m.Topics[i].Positions = append(m.Topics[i].Positions, t.Positions...)
		m.Topics[i].SourceChunks = append(m.Topics[i].SourceChunks, a.ChunkNumber)
	}

	m.Decisions = append(m.Decisions, a.Decisions...)
	m.Exchanges = append(m.Exchanges, a.Exchanges...)

	for _, f := range a.FactFlags {
		switch f.Confidence {
		case ConfidenceMedium, ConfidenceHigh:
			m.FactFlags = append(m.FactFlags, f)
		}
	}
}

// MergeAnalyses runs the merge pass over analyses in slice order.
func MergeAnalyses(analyses []ChunkAnalysis) Merged {
	var m Merged
	for _, a := range analyses {
		m.Add(a)
	}
	return m
}

// Aggregator produces the final report from chunk analyses: a deterministic
// merge followed by one synthesis completion, with a deterministic fallback
// report when synthesis fails.
type Aggregator struct {
	completer   Completer
	model       string
	maxTokens   int64
	temperature float64
	log         zerolog.Logger
}

func NewAggregator(c Completer, model string, maxTokens int64, temperature float64, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		completer:   c,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		log:         log,
	}
}

// Aggregate builds the final report. processing_info is always populated,
// whether the narrative sections came from the synthesis call or from the
// fallback.
func (g *Aggregator) Aggregate(ctx context.Context, analyses []ChunkAnalysis, meeting MeetingInfo) FinalReport {
	merged := MergeAnalyses(analyses)

	report, fellBack := g.synthesize(ctx, merged, meeting)
	report.FactFlags = merged.FactFlags
	report.MeetingInfo = meeting
	report.ProcessingInfo = ProcessingInfo{
		ChunksProcessed:   len(analyses),
		DegradedChunks:    merged.degraded,
		TopicsFound:       len(merged.Topics),
		FactFlagsFound:    len(merged.FactFlags),
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		Model:             g.model,
		RunID:             uuid.NewString(),
		SynthesisFallback: fellBack,
	}
	return report
}

// synthesize attempts the narrative sections via one completion call;
// fellBack reports whether the deterministic fallback was used instead.
func (g *Aggregator) synthesize(ctx context.Context, merged Merged, meeting MeetingInfo) (report FinalReport, fellBack bool) {
	if g.completer != nil {
		req := provider.Request{
			Messages:    []provider.Message{{Role: "user", Content: buildSynthesisPrompt(merged, meeting)}},
			MaxTokens:   g.maxTokens,
			Temperature: g.temperature,
			JSONObject:  true,
		}
		raw, err := g.completer.Complete(ctx, req)
		if err == nil {
			if resp, ok := extractReport(raw); ok {
				return g.fromResponse(resp, merged), false
			}
			g.log.Warn().Msg("synthesis output unparseable, using fallback report")
		} else {
			g.log.Warn().Err(err).Msg("synthesis call failed, using fallback report")
		}
	}
	return g.fallbackReport(merged), true
}

// fromResponse adopts the model's narrative sections, back-filling any it
// left empty from the deterministic merge.
func (g *Aggregator) fromResponse(resp reportResponse, merged Merged) FinalReport {
	report := FinalReport{
		ExecutiveSummary:  resp.ExecutiveSummary,
		MainTopics:        resp.MainTopics,
		KeyDecisions:      resp.KeyDecisions,
		PoliticalDynamics: resp.PoliticalDynamics,
	}
	if report.ExecutiveSummary == "" {
		report.ExecutiveSummary = fallbackSummary(merged)
	}
	if len(report.MainTopics) == 0 {
		report.MainTopics = mainTopicsFromMerge(merged)
	}
	if len(report.KeyDecisions) == 0 {
		report.KeyDecisions = dedupeStrings(merged.Decisions)
	}
	if report.MainTopics == nil {
		report.MainTopics = []ReportTopic{}
	}
	if report.KeyDecisions == nil {
		report.KeyDecisions = []string{}
	}
	return report
}

// fallbackReport builds the whole report from the merge alone.
func (g *Aggregator) fallbackReport(merged Merged) FinalReport {
	return FinalReport{
		ExecutiveSummary:  fallbackSummary(merged),
		MainTopics:        mainTopicsFromMerge(merged),
		KeyDecisions:      dedupeStrings(merged.Decisions),
		PoliticalDynamics: "Synthesis unavailable; see per-topic positions.",
	}
}

func fallbackSummary(merged Merged) string {
	return fmt.Sprintf("Parliamentary meeting covering %d main topics with %d decisions recorded.",
		len(merged.Topics), len(merged.Decisions))
}

func mainTopicsFromMerge(merged Merged) []ReportTopic {
	out := make([]ReportTopic, 0, len(merged.Topics))
	for _, t := range merged.Topics {
		out = append(out, ReportTopic{
			Topic:          t.Name,
			Summary:        t.Description,
			PartyPositions: consolidatePositions(t.Positions),
			Outcome:        "",
		})
	}
	return out
}

// consolidatePositions flattens a position list into one entry per party,
// joining repeated positions with "; " in list order.
func consolidatePositions(positions []PartyPosition) map[string]string {
	out := make(map[string]string, len(positions))
	for _, p := range positions {
		party := p.Party
		if party == "" {
			party = "Unknown"
		}
		position := p.Position
		if position == "" {
			position = "No position stated"
		}
		if existing, ok := out[party]; ok {
			out[party] = existing + "; " + position
		} else {
			out[party] = position
		}
	}
	return out
}

// dedupeStrings removes duplicates while keeping first-occurrence order.
func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// sortedParties is a small helper for deterministic rendering of a party
// position map.
func sortedParties(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
