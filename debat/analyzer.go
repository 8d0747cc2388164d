package debat

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/parlemint/debatsum/debat/provider"
)

// Completer is the completion surface the analyzer and aggregator need.
// *provider.Client satisfies it; tests substitute a fake.
type Completer interface {
	Complete(ctx context.Context, req provider.Request) (string, error)
}

// speakerContextWindow is how much of a chunk's head is scanned for
// speaker names when selecting prompt context.
const speakerContextWindow = 500

// Analyzer turns one chunk into a ChunkAnalysis. It never returns an
// error: a chunk whose completion calls keep failing yields a degraded
// analysis so one bad chunk cannot sink a multi-hour run.
type Analyzer struct {
	completer    Completer
	truncLimit   int
	maxTokens    int64
	temperature  float64
	factChecking bool
	log          zerolog.Logger
}

// NewAnalyzer builds an Analyzer. truncLimit bounds how many characters of
// chunk text go into a prompt; zero disables truncation.
func NewAnalyzer(c Completer, truncLimit int, maxTokens int64, temperature float64, factChecking bool, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		completer:    c,
		truncLimit:   truncLimit,
		maxTokens:    maxTokens,
		temperature:  temperature,
		factChecking: factChecking,
		log:          log,
	}
}

// chunkAttempts is the number of full request+extract attempts per chunk
// before degrading.
const chunkAttempts = 2

// Analyze builds the prompt for one chunk, runs the completion, and
// extracts the structured analysis. Cancellation is the one condition that
// short-circuits; every other failure degrades.
func (a *Analyzer) Analyze(ctx context.Context, chunk Chunk, speakers SpeakerMap, meeting MeetingInfo) ChunkAnalysis {
	relevant := RelevantSpeakers(chunkHead(chunk.Text), speakers)
	prompt := buildAnalysisPrompt(chunk, relevant, meeting, a.truncLimit, a.factChecking)
	req := provider.Request{
		Messages:    []provider.Message{{Role: "user", Content: prompt}},
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
		JSONObject:  true,
	}

	var lastErr error
	for attempt := 1; attempt <= chunkAttempts; attempt++ {
		raw, err := a.completer.Complete(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return a.degraded(chunk, ctx.Err())
			}
			lastErr = err
			a.log.Warn().
				Err(err).
				Int("chunk", chunk.SequenceNumber).
				Int("attempt", attempt).
				Msg("chunk completion failed")
			continue
		}

		analysis := ExtractChunkAnalysis(raw)
		analysis.ChunkNumber = chunk.SequenceNumber
		if a.factChecking && analysis.FactFlags == nil {
			analysis.FactFlags = []FactFlag{}
		}
		if analysis.Degraded() || analysis.Partial {
			a.log.Warn().
				Int("chunk", chunk.SequenceNumber).
				Bool("partial", analysis.Partial).
				Msg("chunk analysis degraded after extraction")
		}
		return analysis
	}
	return a.degraded(chunk, lastErr)
}

func (a *Analyzer) degraded(chunk Chunk, err error) ChunkAnalysis {
	analysis := ChunkAnalysis{
		ChunkNumber: chunk.SequenceNumber,
		Summary:     "Analysis unavailable for this segment",
	}
	if err != nil {
		analysis.Error = err.Error()
	} else {
		analysis.Error = "completion attempts exhausted"
	}
	if a.factChecking {
		analysis.FactFlags = []FactFlag{}
	}
	analysis.ensureDefaults()
	return analysis
}

func chunkHead(text string) string {
	if len(text) <= speakerContextWindow {
		return text
	}
	return text[:speakerContextWindow]
}
