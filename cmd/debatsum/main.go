// Command debatsum summarizes one parsed Tweede Kamer debate transcript
// into a structured JSON report via an OpenAI-compatible completion
// endpoint.
//
// Input is a parsed-verslag JSON file as produced by the VLOS XML
// extraction stage: readable_text plus speaker records and meeting
// metadata.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/parlemint/debatsum/debat"
	"github.com/parlemint/debatsum/debat/fileutil"
	"github.com/parlemint/debatsum/debat/provider"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("DEEPSEEK_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "missing DEEPSEEK_API_KEY or OPENAI_API_KEY (or pass -api-key)")
		os.Exit(2)
	}

	settings, err := loadSettings(cfg.SettingsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	log := newLogger(cfg.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, settings, apiKey, log); err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, settings Settings, apiKey string, log zerolog.Logger) error {
	doc, err := readVerslag(cfg.InPath)
	if err != nil {
		return err
	}

	client := provider.NewClient(provider.Config{
		BaseURL:            cfg.BaseURL,
		APIKey:             apiKey,
		Model:              cfg.Model,
		MinRequestInterval: settings.requestInterval(),
		MaxRetries:         settings.maxRetries(),
	}, log)

	pipe, err := debat.NewPipeline(client, cfg.Model, pipelineOptions(cfg, settings), log)
	if err != nil {
		return err
	}
	pipe.OnChunkAnalyzed = func(a debat.ChunkAnalysis) {
		log.Info().
			Int("chunk", a.ChunkNumber).
			Int("topics", len(a.Topics)).
			Bool("degraded", a.Degraded()).
			Msg("chunk analyzed")
	}

	report, runErr := pipe.Run(ctx, doc)
	if runErr != nil && report.ProcessingInfo.ChunksProcessed == 0 {
		return runErr
	}

	if err := writeReport(cfg.OutPath, report, cfg.Pretty); err != nil {
		return err
	}

	if runErr != nil {
		log.Warn().
			Err(runErr).
			Int("chunks", report.ProcessingInfo.ChunksProcessed).
			Msg("run interrupted, partial report written")
	}
	fmt.Printf("Report written to %s: %d chunks, %d topics, %d decisions\n",
		cfg.OutPath,
		report.ProcessingInfo.ChunksProcessed,
		report.ProcessingInfo.TopicsFound,
		len(report.KeyDecisions))
	return runErr
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.InPath, "in", cfg.InPath, "Path to a parsed-verslag JSON file")
	fs.StringVar(&cfg.OutPath, "out", cfg.OutPath, "Output path for the report JSON")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Model identifier (e.g. deepseek-chat)")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Completion endpoint base URL")
	fs.StringVar(&cfg.APIKey, "api-key", "", "API key (overrides DEEPSEEK_API_KEY / OPENAI_API_KEY env vars)")
	fs.StringVar(&cfg.SettingsPath, "settings", "", "Optional YAML settings file (party codes, pacing, limits)")
	fs.IntVar(&cfg.MaxChunkSize, "max-chunk-size", cfg.MaxChunkSize, "Segmentation budget in characters per chunk")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Chunks analyzed concurrently (1 = sequential)")
	fs.BoolVar(&cfg.FactCheck, "fact-check", false, "Request fact-check flags in chunk analysis")
	fs.BoolVar(&cfg.Pretty, "pretty", false, "Pretty-print the report JSON")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Debug-level logging")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// verslagInput is the parsed-verslag shape produced by the VLOS XML
// extraction stage. Only the fields the pipeline needs are decoded.
type verslagInput struct {
	ID            string `json:"id"`
	Titel         string `json:"vergadering_titel"`
	Datum         string `json:"vergadering_datum"`
	Status        string `json:"status"`
	ReadableText  string `json:"readable_text"`
	ParsedContent struct {
		Sprekers []debat.SpeakerRecord `json:"sprekers"`
	} `json:"parsed_content"`
}

func readVerslag(path string) (debat.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return debat.Document{}, fmt.Errorf("read input: %w", err)
	}
	var in verslagInput
	if err := json.Unmarshal(data, &in); err != nil {
		return debat.Document{}, fmt.Errorf("parse input: %w", err)
	}
	if in.ReadableText == "" {
		return debat.Document{}, fmt.Errorf("input %s has no readable_text", path)
	}
	return debat.Document{
		Text:     in.ReadableText,
		Speakers: in.ParsedContent.Sprekers,
		Meeting: debat.MeetingInfo{
			Title:      in.Titel,
			Date:       in.Datum,
			Identifier: in.ID,
			Status:     in.Status,
		},
	}, nil
}

func writeReport(path string, report debat.FinalReport, pretty bool) error {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
