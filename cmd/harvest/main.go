// Command harvest runs one batch extraction from the command line and
// prints the result as JSON. It is a thin adapter over the core: config,
// logging, wiring, one run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/use-agent/harvest/analyze"
	"github.com/use-agent/harvest/batch"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/extract"
	"github.com/use-agent/harvest/fetch"
	"github.com/use-agent/harvest/llm"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/politeness"
)

func main() {
	limit := flag.Int("limit", 0, "max records per fetched URL (default from HARVEST_ITEM_LIMIT)")
	forceRender := flag.Bool("render", false, "force the browser engine for every URL")
	analyzeOnly := flag.Bool("analyze", false, "only analyze the first URL, skip extraction")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: harvest [-limit N] [-render] [-analyze] URL [URL...]")
		os.Exit(2)
	}

	cfg := config.Load()
	initLogger(cfg.Log)

	// ── Process-wide fetch context: identity rotation, politeness cache ──
	identities := fetch.DefaultIdentities()
	if len(cfg.Fetch.UserAgents) > 0 {
		profiles := make([]fetch.Identity, 0, len(cfg.Fetch.UserAgents))
		for _, ua := range cfg.Fetch.UserAgents {
			profiles = append(profiles, fetch.Identity{UserAgent: ua})
		}
		identities = fetch.NewIdentities(profiles)
	}
	static := fetch.NewHTTPEngine(identities)
	checker := politeness.NewChecker(nil, cfg.Politeness)
	analyzer := analyze.New(static, cfg.Fetch)

	// The browser is optional: when it cannot launch, rendered URLs
	// degrade to placeholder records instead of aborting the run.
	var rendered fetch.Engine
	browser, err := fetch.NewBrowser(cfg.Browser)
	if err != nil {
		slog.Warn("browser unavailable, rendered fetches will degrade", "error", err)
	} else {
		defer browser.Close()
		rendered = fetch.NewBrowserEngine(browser, identities)
	}

	var completer llm.Completer = llm.Noop{}
	if cfg.LLM.APIKey != "" {
		completer = llm.NewClient(nil, cfg.LLM)
	}

	pipeline := extract.NewPipeline(static, rendered, extract.NewFallbackExtractor(completer), cfg.Fetch)
	orchestrator := batch.New(analyzer, checker, pipeline, static, cfg.Pipeline, cfg.Fetch)

	ctx := context.Background()

	if *analyzeOnly {
		emit(orchestrator.AnalyzeURL(ctx, flag.Arg(0)))
		return
	}

	req := &models.BatchRequest{
		URLs:        flag.Args(),
		ItemLimit:   firstPositive(*limit, cfg.Pipeline.ItemLimit),
		ForceRender: *forceRender,
	}

	result, err := orchestrator.Run(ctx, req)
	if err != nil {
		slog.Error("batch run failed", "error", err)
		os.Exit(1)
	}
	emit(result)
}

func emit(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("failed to encode result", "error", err)
		os.Exit(1)
	}
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
