// Package main provides the readaloud entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/readaloud/internal/app/filter"
	"github.com/osa030/readaloud/internal/app/reader"
	"github.com/osa030/readaloud/internal/app/speech"
	"github.com/osa030/readaloud/internal/domain/document"
	"github.com/osa030/readaloud/internal/infra/config"
	"github.com/osa030/readaloud/internal/infra/logger"
	"github.com/osa030/readaloud/internal/infra/pdf"
	"github.com/osa030/readaloud/internal/ui/console"
	"github.com/osa030/readaloud/internal/ui/tui"
)

var (
	app        = kingpin.New("readaloud", "Read PDF documents aloud")
	configPath = app.Flag("config", "Path to config file").Default("config/readaloud.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file").String()

	tuiCmd      = app.Command("tui", "Start the terminal UI (default)").Default()
	tuiFile     = tuiCmd.Arg("file", "Document to open").String()
	consoleCmd  = app.Command("console", "Start the line-oriented console")
	consoleFile = consoleCmd.Arg("file", "Document to open").String()

	extractCmd  = app.Command("extract", "Print the text of every page and exit")
	extractFile = extractCmd.Arg("file", "Document to extract").Required().ExistingFile()
	extractRaw  = extractCmd.Flag("raw", "Skip text filters").Bool()

	enginesCmd = app.Command("engines", "List configured speech engines and exit")
	filtersCmd = app.Command("filters", "List available text filters and exit")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	closer, err := logger.Init(loggerConfig(command, cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	zlog.Debug().Msgf("config loaded: path=%s backend=%s providers=%d",
		*configPath, cfg.Audio.Backend, len(cfg.Speech.Providers))

	switch command {
	case extractCmd.FullCommand():
		err = runExtract(os.Stdout, cfg, *extractFile, *extractRaw)
	case enginesCmd.FullCommand():
		runEngines(os.Stdout, cfg)
	case filtersCmd.FullCommand():
		printFilters(os.Stdout, cfg)
	case consoleCmd.FullCommand():
		err = run(cfg, *consoleFile, func(ctx context.Context, a *reader.App) error {
			return console.Run(ctx, a, console.Options{Extension: cfg.Document.Extension})
		})
	default:
		err = run(cfg, *tuiFile, func(ctx context.Context, a *reader.App) error {
			return tui.Run(ctx, a, tui.Options{
				Extension: cfg.Document.Extension,
				StartDir:  cfg.Document.StartDir,
				RateRange: cfg.RateRange(),
			})
		})
	}

	if err != nil {
		zlog.Error().Msgf("readaloud failed: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		closer.Close()
		os.Exit(1)
	}
}

// loggerConfig picks the log destination. The terminal UI owns the screen,
// so it logs to a file unless --logfile says otherwise.
func loggerConfig(command string, cfg *config.Config) logger.Config {
	lc := logger.Config{
		Output: logger.OutputStderr,
		Level:  cfg.Log.Level,
	}
	if command == tuiCmd.FullCommand() {
		lc.Output = "file"
		lc.File = cfg.Log.File
	}
	if *verbose {
		lc.Level = "debug"
	}
	if *logfile != "" {
		lc.Output = "file"
		lc.File = *logfile
	}
	return lc
}

// run builds the application, optionally opens file, and hands control to
// surface until it returns or a signal arrives. Using a separate function
// ensures deferred cleanup runs before exiting.
func run(cfg *config.Config, file string, surface func(context.Context, *reader.App) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := reader.NewFromConfig(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to create application")
	}
	defer func() {
		if err := a.Close(); err != nil {
			zlog.Warn().Msgf("shutdown: %v", err)
		}
	}()
	a.Start()

	if file != "" {
		if err := a.Select(file); err != nil {
			return errors.Wrapf(err, "failed to open %s", file)
		}
	}

	zlog.Info().Msgf("readaloud started: rate=%d backend=%s", cfg.Speech.Rate, cfg.Audio.Backend)
	return surface(ctx, a)
}

func runExtract(w io.Writer, cfg *config.Config, path string, raw bool) error {
	var source document.Source = pdf.NewSource()
	if !raw {
		var err error
		if source, err = reader.NewSourceFromConfig(cfg); err != nil {
			return err
		}
	}

	pages, err := reader.Extract(source, path)
	for _, p := range pages {
		fmt.Fprintf(w, "--- page %d/%d ---\n", p.Index+1, len(pages))
		if p.IsBlank() {
			fmt.Fprintln(w, "(no text)")
			continue
		}
		fmt.Fprintln(w, p.Text)
	}
	return err
}

func runEngines(w io.Writer, cfg *config.Config) {
	for _, s := range speech.ProbeProviders(cfg) {
		if s.Available() {
			fmt.Fprintf(w, "%d. %-12s %-8s available (%s)\n", s.Index, s.DisplayName, s.Type, s.Engine)
			continue
		}
		fmt.Fprintf(w, "%d. %-12s %-8s unavailable: %v\n", s.Index, s.DisplayName, s.Type, s.Err)
	}
	fmt.Fprintf(w, "audio backend: %s\n", cfg.Audio.Backend)
}

// printFilters prints available filters in execution order.
func printFilters(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Available Filters:")
	registry := filter.GetRegistered()
	for _, name := range filter.Names() {
		f := registry[name]()
		state := "disabled"
		if cfg.IsFilterEnabled(name) {
			state = "enabled"
		}
		fmt.Fprintf(w, "  %-20s %-8s - %s\n", f.Name(), state, f.Description())
	}
	for name := range cfg.Filters {
		if _, ok := registry[name]; !ok {
			fmt.Fprintf(w, "  %-20s %-8s - not a registered filter\n", name, "unknown")
		}
	}
}
