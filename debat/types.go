// Package debat turns long multi-speaker parliamentary debate transcripts
// into structured multi-level summaries by delegating semantic analysis to a
// chat-completion service. The package owns the text segmenter, the speaker
// attributor, the tolerant structured-output extractor, the per-chunk
// analyzer, and the cross-chunk aggregator; the completion client itself
// lives in debat/provider.
package debat

// Chunk is a bounded, contiguous slice of the source transcript processed as
// one completion request. Chunks are produced once by Segment, numbered from
// 1 in emission order, and never mutated afterwards.
type Chunk struct {
	SequenceNumber int    `json:"sequence_number"`
	StartOffset    int    `json:"start_offset"`
	EndOffset      int    `json:"end_offset"`
	Text           string `json:"text"`
}

// SpeakerMap maps a speaker display name to an affiliation label: a party
// code, "Voorzitter", or a ministerial role. It is built once per document
// before chunk analysis and read-only thereafter. It may be empty.
type SpeakerMap map[string]string

// MeetingInfo is pass-through metadata about the meeting being summarized.
type MeetingInfo struct {
	Title      string `json:"title"`
	Date       string `json:"date"`
	Identifier string `json:"id"`
	Status     string `json:"status,omitempty"`
}

// PartyPosition records one party's (or named speaker's) stance on a topic.
// Positions are append-only: repeated mentions of the same party on the same
// topic are kept in chunk order, never deduplicated.
type PartyPosition struct {
	Party    string   `json:"party_or_speaker"`
	Position string   `json:"position"`
	Quotes   []string `json:"quotes,omitempty"`
}

// Topic is a discussion subject found in one or more chunks. Name is the
// merge key: two topics with the same exact name are one topic, and the
// first-seen description wins.
type Topic struct {
	Name         string          `json:"topic"`
	Description  string          `json:"description"`
	Positions    []PartyPosition `json:"party_positions"`
	SourceChunks []int           `json:"source_chunks,omitempty"`
}

// FactFlag is an opaque fact-check record. The pipeline filters on
// Confidence (LOW is dropped) and otherwise passes the record through
// unmodified; it does not verify correctness.
type FactFlag struct {
	Claim       string `json:"claim"`
	Speaker     string `json:"speaker"`
	Issue       string `json:"issue"`
	CorrectInfo string `json:"correct_info"`
	Confidence  string `json:"confidence"`
	Category    string `json:"category,omitempty"`
	Source      string `json:"source,omitempty"`
}

// Confidence labels carried by FactFlag records.
const (
	ConfidenceLow    = "LOW"
	ConfidenceMedium = "MEDIUM"
	ConfidenceHigh   = "HIGH"
)

// ChunkAnalysis is the per-chunk analysis result. One instance exists per
// chunk and is never mutated after creation; it is the unit merged by the
// aggregator. A degraded analysis (failed request or unparseable output)
// carries a note in Error and empty collections, and is still mergeable.
type ChunkAnalysis struct {
	ChunkNumber int      `json:"chunk_number"`
	Summary     string   `json:"summary"`
	Topics      []Topic  `json:"topics"`
	Decisions   []string `json:"decisions"`
	Exchanges   []string `json:"exchanges"`

	FactFlags []FactFlag `json:"fact_flags,omitempty"`

	// Error is set when the analysis is degraded: the completion request
	// failed or its output could not be parsed at all.
	Error string `json:"error,omitempty"`

	// RawExcerpt holds the first part of an unparseable completion for
	// later inspection.
	RawExcerpt string `json:"raw_response_excerpt,omitempty"`

	// Partial marks an analysis rescued from output that was recognizably
	// shaped but not parseable as a whole.
	Partial bool `json:"extracted_from_partial,omitempty"`
}

// Degraded reports whether this analysis is a failure placeholder rather
// than a real model analysis.
func (a ChunkAnalysis) Degraded() bool {
	return a.Error != ""
}

// ensureDefaults back-fills the expected collections so downstream code
// never branches on field presence.
func (a *ChunkAnalysis) ensureDefaults() {
	if a.Topics == nil {
		a.Topics = []Topic{}
	}
	if a.Decisions == nil {
		a.Decisions = []string{}
	}
	if a.Exchanges == nil {
		a.Exchanges = []string{}
	}
}

// ReportTopic is a consolidated topic entry in the final report: the
// per-chunk position lists are flattened into one position map per party.
type ReportTopic struct {
	Topic          string            `json:"topic"`
	Summary        string            `json:"summary"`
	PartyPositions map[string]string `json:"party_positions"`
	Outcome        string            `json:"outcome,omitempty"`
}

// ProcessingInfo describes how a report was produced.
type ProcessingInfo struct {
	ChunksProcessed   int    `json:"chunks_processed"`
	DegradedChunks    int    `json:"degraded_chunks,omitempty"`
	TopicsFound       int    `json:"topics_found"`
	FactFlagsFound    int    `json:"fact_flags_found"`
	Timestamp         string `json:"timestamp"`
	Model             string `json:"model_identifier"`
	RunID             string `json:"run_id"`
	SynthesisFallback bool   `json:"synthesis_fallback,omitempty"`
}

// FinalReport is the terminal artifact of one pipeline run. It is always
// valid: when the synthesis call fails the narrative fields are built
// deterministically from the merged chunk analyses instead.
type FinalReport struct {
	ExecutiveSummary  string        `json:"executive_summary"`
	MainTopics        []ReportTopic `json:"main_topics"`
	KeyDecisions      []string      `json:"key_decisions"`
	PoliticalDynamics string        `json:"political_dynamics"`

	FactFlags []FactFlag `json:"fact_flags,omitempty"`

	MeetingInfo    MeetingInfo    `json:"meeting_info"`
	ProcessingInfo ProcessingInfo `json:"processing_info"`
}
