package debat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Options configures one pipeline. The zero value is not usable; start
// from DefaultOptions.
type Options struct {
	// MaxChunkSize is the segmentation budget in bytes of source text.
	MaxChunkSize int
	// PromptTruncationLimit bounds how much of a chunk's text is placed in
	// an analysis prompt. Must not exceed MaxChunkSize; zero means the
	// whole chunk.
	PromptTruncationLimit int
	// Concurrency is the number of chunks analyzed at once. Values below 2
	// mean sequential processing.
	Concurrency int
	// FactChecking asks the analysis prompts for fact-check flags.
	FactChecking bool
	// PartyCodes overrides the recognized party abbreviations for speaker
	// attribution; nil means DefaultPartyCodes.
	PartyCodes []string

	AnalysisMaxTokens  int64
	SynthesisMaxTokens int64
	Temperature        float64
}

// DefaultOptions mirrors the settings the summarizer runs with in
// production against the DeepSeek endpoint.
func DefaultOptions() Options {
	return Options{
		MaxChunkSize:          30000,
		PromptTruncationLimit: 10000,
		Concurrency:           1,
		AnalysisMaxTokens:     800,
		SynthesisMaxTokens:    1500,
		Temperature:           0.3,
	}
}

// Validate reports the first configuration problem.
func (o Options) Validate() error {
	if o.MaxChunkSize <= 0 {
		return errors.New("max chunk size must be positive")
	}
	if o.PromptTruncationLimit < 0 {
		return errors.New("prompt truncation limit must not be negative")
	}
	if o.PromptTruncationLimit > o.MaxChunkSize {
		return fmt.Errorf("prompt truncation limit %d exceeds max chunk size %d",
			o.PromptTruncationLimit, o.MaxChunkSize)
	}
	return nil
}

// Document is the input to one pipeline run.
type Document struct {
	Text     string
	Speakers []SpeakerRecord
	Meeting  MeetingInfo
}

// Pipeline runs attribution, segmentation, per-chunk analysis and
// aggregation over one document.
type Pipeline struct {
	opts     Options
	analyzer *Analyzer
	agg      *Aggregator
	log      zerolog.Logger
	notifyMu sync.Mutex

	// OnChunkAnalyzed, if set, receives every completed chunk analysis as
	// it finishes. With Concurrency > 1 completion order is arbitrary, but
	// calls are serialized.
	OnChunkAnalyzed func(ChunkAnalysis)
}

// NewPipeline wires a pipeline over a completion client. model is recorded
// in the report's processing metadata.
func NewPipeline(c Completer, model string, opts Options, log zerolog.Logger) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		opts:     opts,
		analyzer: NewAnalyzer(c, opts.PromptTruncationLimit, opts.AnalysisMaxTokens, opts.Temperature, opts.FactChecking, log),
		agg:      NewAggregator(c, model, opts.SynthesisMaxTokens, opts.Temperature, log),
		log:      log,
	}, nil
}

// Run processes one document. On cancellation it still aggregates the
// analyses that completed, returning the partial report together with the
// context error; the synthesis call is skipped in that case. Individual
// chunk failures never abort the run.
func (p *Pipeline) Run(ctx context.Context, doc Document) (FinalReport, error) {
	if len(doc.Text) == 0 {
		return FinalReport{}, errors.New("document text is empty")
	}

	parties := p.opts.PartyCodes
	if parties == nil {
		parties = DefaultPartyCodes()
	}
	speakers := BuildSpeakerMap(doc.Speakers, parties)

	chunks := Segment(doc.Text, p.opts.MaxChunkSize)
	if len(chunks) == 0 {
		return FinalReport{}, errors.New("document produced no chunks")
	}
	p.log.Info().
		Int("chunks", len(chunks)).
		Int("speakers", len(speakers)).
		Str("meeting", doc.Meeting.Title).
		Msg("starting debate analysis")

	var analyses []ChunkAnalysis
	if p.opts.Concurrency > 1 {
		analyses = p.analyzeParallel(ctx, chunks, speakers, doc.Meeting)
	} else {
		analyses = p.analyzeSequential(ctx, chunks, speakers, doc.Meeting)
	}

	if err := ctx.Err(); err != nil {
		// Partial report over whatever finished; no synthesis call.
		fallback := NewAggregator(nil, p.agg.model, 0, 0, p.log)
		return fallback.Aggregate(context.Background(), analyses, doc.Meeting), err
	}
	return p.agg.Aggregate(ctx, analyses, doc.Meeting), nil
}

func (p *Pipeline) analyzeSequential(ctx context.Context, chunks []Chunk, speakers SpeakerMap, meeting MeetingInfo) []ChunkAnalysis {
	analyses := make([]ChunkAnalysis, 0, len(chunks))
	for _, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}
		a := p.analyzer.Analyze(ctx, chunk, speakers, meeting)
		if ctx.Err() != nil && a.Degraded() {
			break
		}
		analyses = append(analyses, a)
		p.notify(a)
	}
	return analyses
}

// analyzeParallel fans chunks out over a bounded worker pool and collects
// results back into sequence order. Chunks that never ran because of
// cancellation are dropped rather than reported as degraded.
func (p *Pipeline) analyzeParallel(ctx context.Context, chunks []Chunk, speakers SpeakerMap, meeting MeetingInfo) []ChunkAnalysis {
	results := make([]ChunkAnalysis, len(chunks))
	done := make([]bool, len(chunks))

	sem := make(chan struct{}, p.opts.Concurrency)
	var mu sync.Mutex
	wg := sync.WaitGroup{}
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk Chunk) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			select {
			case <-ctx.Done():
				return
			default:
			}

			a := p.analyzer.Analyze(ctx, chunk, speakers, meeting)
			if ctx.Err() != nil && a.Degraded() {
				return
			}
			mu.Lock()
			results[i] = a
			done[i] = true
			mu.Unlock()
			p.notify(a)
		}(i, chunk)
	}
	wg.Wait()

	analyses := make([]ChunkAnalysis, 0, len(chunks))
	for i := range results {
		if done[i] {
			analyses = append(analyses, results[i])
		}
	}
	return analyses
}

func (p *Pipeline) notify(a ChunkAnalysis) {
	if p.OnChunkAnalyzed == nil {
		return
	}
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	p.OnChunkAnalyzed(a)
}
