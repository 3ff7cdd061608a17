package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML run configuration")
	keywordsRaw := flag.String("keywords", "", "Comma-separated search keywords (overrides config)")
	citiesRaw := flag.String("cities", "", "Comma-separated cities to scrape (overrides config)")
	seedCSV := flag.String("input-csv", "", "Seed CSV of known center names; switches to lookup mode")
	seedCity := flag.String("city", "Mumbai", "Default city for seed rows without a locality")
	maxPages := flag.Int("max-pages", 0, "Listing pages per keyword/city (overrides config)")
	noGMB := flag.Bool("no-gmb", false, "Skip maps-profile enrichment")
	headless := flag.Bool("headless", true, "Run the browser headless")
	jsonOut := flag.Bool("json", false, "Also write a JSON array of the results")
	workers := flag.Int("workers", 0, "Concurrent keyword/city batches (overrides config)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	fl := cliFlags{
		keywords: *keywordsRaw,
		cities:   *citiesRaw,
		seedCSV:  *seedCSV,
		seedCity: *seedCity,
		maxPages: *maxPages,
		workers:  *workers,
		noGMB:    *noGMB,
		headless: *headless,
		jsonOut:  *jsonOut,
		set:      make(map[string]bool),
	}
	flag.Visit(func(f *flag.Flag) { fl.set[f.Name] = true })
	cfg = fl.apply(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("run failed: %v", err)
	}
}

// cliFlags carries the parsed command line. set records which flags were
// actually passed, so a flag's default never clobbers a file setting for
// the boolean toggles.
type cliFlags struct {
	keywords string
	cities   string
	seedCSV  string
	seedCity string
	maxPages int
	workers  int
	noGMB    bool
	headless bool
	jsonOut  bool
	set      map[string]bool
}

func (f cliFlags) apply(cfg config) config {
	if kw := parseList(f.keywords); len(kw) > 0 {
		cfg.Keywords = kw
	}
	if cities := parseList(f.cities); len(cities) > 0 {
		cfg.Cities = cities
	}
	if f.maxPages > 0 {
		cfg.MaxPages = f.maxPages
	}
	if f.workers > 0 {
		cfg.Workers = f.workers
	}
	if f.noGMB {
		cfg.UseGMB = false
	}
	if f.set["headless"] {
		cfg.Headless = f.headless
	}
	if f.set["json"] {
		cfg.JSONOut = f.jsonOut
	}
	cfg.SeedCSV = f.seedCSV
	cfg.SeedCity = f.seedCity
	return cfg
}

func run(ctx context.Context, cfg config) error {
	writer, err := newResultWriter(cfg.OutputDir, cfg.JSONOut)
	if err != nil {
		return err
	}
	defer func() {
		if err := writer.close(); err != nil {
			log.Printf("error closing outputs: %v", err)
		}
	}()

	gate := newRateGate(cfg.DelayMin, cfg.DelayMax)

	var render renderFunc
	if cfg.UseGMB {
		allocCtx, cancel := newBrowserAllocator(cfg.Headless, cfg.UserAgents[0])
		defer cancel()
		render = renderWithChrome(allocCtx, cfg.randomDelay)
	}

	p := &pipeline{
		cfg:    cfg,
		fetch:  newFetchClient(cfg, gate, render, writer),
		writer: writer,
	}

	if cfg.DBDSN != "" {
		sink, err := openSink(ctx, cfg.DBDSN)
		if err != nil {
			return err
		}
		defer sink.Close()
		p.sink = sink
	}

	if cfg.SeedCSV != "" {
		rows, err := readSeedCSV(cfg.SeedCSV)
		if err != nil {
			return err
		}
		if err := p.runSeed(ctx, rows); err != nil {
			return err
		}
	} else if err := p.run(ctx); err != nil {
		return err
	}

	log.Printf("saved %d rows to %s", writer.rowCount(), cfg.OutputDir)
	return nil
}
