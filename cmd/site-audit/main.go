package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"site-audit/pkg/config"
	"site-audit/pkg/crawler"
	"site-audit/pkg/enrich"
	"site-audit/pkg/extract"
	"site-audit/pkg/fetch"
	"site-audit/pkg/graph"
	"site-audit/pkg/models"
	"site-audit/pkg/parse"
	"site-audit/pkg/report"
	"site-audit/pkg/rules"
	"site-audit/pkg/storage"
)

var version = "0.3.0"

const usageText = `Usage: site-audit <command> [flags]

Commands:
  audit     Run a full audit and write the report
  diff      Compare two stored runs (or the latest two)
  runs      List stored runs
  validate  Check a config file without running
  init      Write a starter config file
  version   Print the version
`

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "audit":
		runAudit(os.Args[2:], log)
	case "diff":
		runDiff(os.Args[2:], log)
	case "runs":
		runList(os.Args[2:], log)
	case "validate":
		runValidate(os.Args[2:], log)
	case "init":
		runInit(os.Args[2:], log)
	case "version":
		fmt.Printf("site-audit %s\n", version)
	case "-h", "--help", "help":
		fmt.Print(usageText)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n%s", os.Args[1], usageText)
		os.Exit(2)
	}
}

// loadConfig reads, validates and logs a config file
func loadConfig(path string, log *logrus.Logger) *config.AuditConfig {
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Load config '%s' error: %v", path, err)
	}
	warnings, err := cfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		log.Fatalf("Config '%s' validation error: %v", path, err)
	}
	log.Infof("Config: StartURL:%s, Coverage:%s, MaxPages:%d, Depth:%d, Workers:%d",
		cfg.StartURL, cfg.Coverage, cfg.MaxPages, cfg.EffectiveDepth(), cfg.NumWorkers)
	return cfg
}

func applyLogLevel(levelName string, log *logrus.Logger) {
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", levelName, err)
		return
	}
	log.SetLevel(level)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, with a forced
// exit on a second signal or a stalled shutdown
func signalContext(log *logrus.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
		cancel()
		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()
	return ctx, cancel
}

func runAudit(args []string, log *logrus.Logger) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	configFlag := fs.String("config", "audit.yaml", "Path to YAML config file")
	logLevelFlag := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")
	progressFlag := fs.Bool("progress", true, "Log stage progress events")
	fs.Parse(args)

	applyLogLevel(*logLevelFlag, log)
	cfg := loadConfig(*configFlag, log)

	ctx, cancel := signalContext(log)
	defer cancel()

	var progress models.ProgressFunc
	if *progressFlag {
		progress = func(ev models.ProgressEvent) {
			log.WithFields(logrus.Fields{"stage": ev.Stage, "percent": fmt.Sprintf("%.0f", ev.Percent)}).Debug(ev.Detail)
		}
	}

	if cfg.Tokens.Enabled {
		if err := extract.InitTokenizer(cfg.Tokens.Encoding); err != nil {
			log.Warnf("Token counting disabled, tokenizer init failed: %v", err)
			cfg.Tokens.Enabled = false
		}
	}

	startedAt := time.Now().UTC()

	// --- Crawl ---
	c, err := crawler.New(cfg, progress, log)
	if err != nil {
		log.Fatalf("Failed to initialize crawler: %v", err)
	}
	crawlResult, err := c.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Audit cancelled.")
			os.Exit(0)
		}
		log.Fatalf("Crawl failed: %v", err)
	}
	log.Infof("Crawl finished: %d pages", len(crawlResult.Pages))

	// --- Link graph and plan ---
	focusURL := ""
	if cfg.Focus.URL != "" {
		focusURL, _, err = parse.NormalizeURLString(cfg.Focus.URL)
		if err != nil {
			log.Fatalf("Invalid focus URL: %v", err)
		}
	}
	builder := graph.NewBuilder(cfg.EffectiveGenericAnchors(), log.WithField("component", "graph"))
	linkGraph := builder.Build(crawlResult.Pages, focusURL)
	linkPlan := graph.BuildLinkPlan(crawlResult.Pages, focusURL, cfg.Focus.Keyword, cfg.Focus.PlanLimit)

	// --- Rules ---
	resolverClient := fetch.NewClient(cfg.HTTPClientSettings, log)
	resolver := fetch.NewStatusResolver(resolverClient, cfg.UserAgent, cfg.Timeout, log.WithField("component", "resolver"))
	redirectClient := fetch.NewNoRedirectClient(cfg.HTTPClientSettings)
	engine := rules.NewEngine(resolver, redirectClient, cfg.UserAgent, progress, log.WithField("component", "rules"))

	issues, err := engine.Evaluate(ctx, &rules.RuleContext{
		Pages:                   crawlResult.Pages,
		Graph:                   linkGraph,
		IsDisallowed:            crawlResult.IsDisallowed,
		Timeout:                 cfg.Timeout,
		FocusURL:                focusURL,
		FocusKeyword:            cfg.Focus.Keyword,
		MinFocusInlinks:         cfg.Focus.MinInlinks,
		MaxGenericAnchorPercent: cfg.Focus.MaxGenericAnchorPercent,
		SitemapURLs:             crawlResult.SitemapURLs,
		GenericAnchors:          cfg.EffectiveGenericAnchors(),
		SERPChecks:              cfg.SERPChecksEnabled(),
		ThinContentWords:        cfg.ThinContentWords,
		ServiceThinContentWords: cfg.ServiceThinContentWords,
	})
	if err != nil {
		log.Fatalf("Rule evaluation failed: %v", err)
	}

	// --- Report ---
	auditReport := report.Assemble(cfg, crawlResult.Pages, linkGraph, issues, linkPlan, startedAt, log)
	runDir, err := report.Write(auditReport, cfg.OutputDir, log)
	if err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}

	if cfg.Database.Enabled {
		persistReport(cfg, auditReport, log)
	}
	if cfg.Enrichment.Enabled {
		enrichReport(ctx, cfg, auditReport, runDir, log)
	}

	log.Infof("Audit complete. Score %d/100, %d issues. Report: %s",
		auditReport.Summary.Score, len(auditReport.Issues), runDir)
}

// persistReport saves the report to the run store; failures are logged, never fatal
func persistReport(cfg *config.AuditConfig, auditReport *models.Report, log *logrus.Logger) {
	store, err := openStore(cfg, log)
	if err != nil {
		log.Errorf("Run store unavailable, report not persisted: %v", err)
		return
	}
	defer store.Close()
	if err := store.SaveReport(auditReport); err != nil {
		log.Errorf("Failed to persist report: %v", err)
	}
}

// enrichReport asks the LLM collaborator for fix proposals and writes them
// next to the report; failures are logged, never fatal
func enrichReport(ctx context.Context, cfg *config.AuditConfig, auditReport *models.Report, runDir string, log *logrus.Logger) {
	enricher, err := enrich.New(cfg.Enrichment, log.WithField("component", "enrich"))
	if err != nil {
		log.Errorf("Enrichment unavailable: %v", err)
		return
	}
	proposals, err := enricher.Enrich(ctx, auditReport)
	if err != nil {
		log.Errorf("Enrichment failed: %v", err)
		return
	}
	data, err := json.MarshalIndent(proposals, "", "  ")
	if err != nil {
		log.Errorf("Failed to marshal proposals: %v", err)
		return
	}
	path := filepath.Join(runDir, "proposals.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Errorf("Failed to write proposals: %v", err)
		return
	}
	log.Infof("Wrote %d enrichment proposals to %s", len(proposals), path)
}

func openStore(cfg *config.AuditConfig, log *logrus.Logger) (*storage.RunStore, error) {
	parsed, err := url.Parse(cfg.StartURL)
	if err != nil {
		return nil, fmt.Errorf("parse start URL: %w", err)
	}
	return storage.NewRunStore(cfg.Database.StateDir, parsed.Hostname(), log.WithField("component", "storage"))
}

func runDiff(args []string, log *logrus.Logger) {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	configFlag := fs.String("config", "audit.yaml", "Path to YAML config file")
	baselineFlag := fs.String("baseline", "", "Baseline run ID (default: second most recent)")
	currentFlag := fs.String("current", "", "Current run ID (default: most recent)")
	fs.Parse(args)

	cfg := loadConfig(*configFlag, log)
	if !cfg.Database.Enabled {
		log.Fatal("diff requires database.enabled: true")
	}
	store, err := openStore(cfg, log)
	if err != nil {
		log.Fatalf("Failed to open run store: %v", err)
	}
	defer store.Close()

	baselineID, currentID := *baselineFlag, *currentFlag
	if baselineID == "" || currentID == "" {
		runs, err := store.ListRuns()
		if err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
		if len(runs) < 2 {
			log.Fatalf("Need at least two stored runs to diff, found %d", len(runs))
		}
		if currentID == "" {
			currentID = runs[0].RunID
		}
		if baselineID == "" {
			baselineID = runs[1].RunID
		}
	}

	baseline, err := store.GetReport(baselineID)
	if err != nil {
		log.Fatalf("Failed to load baseline run: %v", err)
	}
	current, err := store.GetReport(currentID)
	if err != nil {
		log.Fatalf("Failed to load current run: %v", err)
	}

	d := report.Diff(baseline, current)
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal diff: %v", err)
	}
	fmt.Println(string(data))
}

func runList(args []string, log *logrus.Logger) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	configFlag := fs.String("config", "audit.yaml", "Path to YAML config file")
	fs.Parse(args)

	cfg := loadConfig(*configFlag, log)
	if !cfg.Database.Enabled {
		log.Fatal("runs requires database.enabled: true")
	}
	store, err := openStore(cfg, log)
	if err != nil {
		log.Fatalf("Failed to open run store: %v", err)
	}
	defer store.Close()

	runs, err := store.ListRuns()
	if err != nil {
		log.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("No stored runs.")
		return
	}
	for _, run := range runs {
		fmt.Printf("%s  %s  score=%d  pages=%d  issues=%d  %s\n",
			run.FinishedAt.Format("2006-01-02 15:04"), run.RunID,
			run.Score, run.PagesCrawled, run.IssueCount, run.StartURL)
	}
}

func runValidate(args []string, log *logrus.Logger) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFlag := fs.String("config", "audit.yaml", "Path to YAML config file")
	fs.Parse(args)

	loadConfig(*configFlag, log)
	log.Info("Config is valid.")
}

const starterConfig = `# site-audit configuration
start_url: "https://example.com/"

# quick (seeds only), surface (depth <= 2), or full
coverage: full
max_pages: 100
depth: 5

# allowed_domains defaults to the start URL's host
# allowed_domains: ["example.com", "www.example.com"]

# include_patterns: ["/blog/*"]
# exclude_patterns: ["/admin/*", "*.pdf"]

respect_robots: true
sitemap_discovery: true
# sitemaps: ["https://example.com/sitemap.xml"]

num_workers: 4
timeout: 10s
delay_per_host: 500ms

# The page this run is specifically optimizing for
# focus:
#   url: "https://example.com/services/plumbing"
#   keyword: "emergency plumber berlin"
#   min_inlinks: 3
#   max_generic_anchor_percent: 30

# database:
#   enabled: true
#   state_dir: "./audit_state"

# enrichment:
#   enabled: true
#   model: "gpt-4o-mini"

output_dir: "./runs"
`

func runInit(args []string, log *logrus.Logger) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	pathFlag := fs.String("o", "audit.yaml", "Path for the new config file")
	fs.Parse(args)

	if _, err := os.Stat(*pathFlag); err == nil {
		log.Fatalf("Refusing to overwrite existing file: %s", *pathFlag)
	}
	if err := os.WriteFile(*pathFlag, []byte(starterConfig), 0o644); err != nil {
		log.Fatalf("Failed to write config: %v", err)
	}
	log.Infof("Wrote starter config to %s", *pathFlag)
}
