package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/config"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/convert"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/logging"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/mcp"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/pdftemplate"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/ui"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// Exit codes
const (
	exitOK       = 0
	exitFailures = 1
	exitError    = 2
)

// newLogger builds the process logger. Logs always go to stderr; in stdio mode stdout
// carries the MCP stream.
func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(logging.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  os.Stderr,
		Service: cfg.ServerName,
	})
}

// run executes the configured mode and returns the process exit code
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, out io.Writer) int {
	converter := convert.NewConverter(cfg.ConverterOptions(), logger)
	batch := convert.NewBatch(converter, cfg.OutputSuffix, logger)
	printer := ui.NewPrinter(out, color.NoColor)

	if cfg.CheckTemplate && !cfg.IsStdioMode() {
		checkTemplate(cfg, printer, logger)
	}

	switch {
	case cfg.IsStdioMode():
		server, err := mcp.NewServer(cfg, batch, logger)
		if err != nil {
			logger.Error().Err(err).Msg("failed to create MCP server")
			return exitError
		}
		if err := server.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("server error")
			return exitError
		}
		return exitOK

	case cfg.IsWatchMode():
		watcher := convert.NewWatcher(batch, cfg.WatchOptions(), logger)
		report, err := watcher.Run(ctx, cfg.InputDirectory, observers(cfg, logger, out))
		if err != nil {
			logger.Error().Err(err).Msg("watch failed")
			return exitError
		}
		logger.Info().Int("succeeded", report.Succeeded).Int("failed", report.Failed).Msg("watch stopped")
		return exitOK

	default:
		report, err := batch.Run(ctx, cfg.InputDirectory, observers(cfg, logger, out))
		if err != nil {
			logger.Error().Err(err).Msg("conversion failed")
			return exitError
		}
		if cfg.NoProgress {
			fmt.Fprint(out, report.Summary())
		}
		if report.Failed > 0 {
			return exitFailures
		}
		return exitOK
	}
}

// observers returns the log observer plus, unless disabled, the terminal progress view
func observers(cfg *config.Config, logger zerolog.Logger, out io.Writer) convert.Observer {
	obs := convert.Observers{convert.NewLogObserver(logger)}
	if !cfg.NoProgress {
		obs = append(obs, ui.NewProgressObserver(out, color.NoColor, cfg.IsWatchMode()))
	}
	return obs
}

// checkTemplate reports template problems; FDF output only names the template, so
// they never stop the run
func checkTemplate(cfg *config.Config, printer *ui.Printer, logger zerolog.Logger) {
	report, err := pdftemplate.NewInspector(cfg.MaxFileSize).Inspect(cfg.TemplatePath)
	if err != nil {
		logger.Warn().Err(err).Msg("template check skipped")
		return
	}
	for _, w := range report.Warnings {
		logger.Warn().Str("template", cfg.TemplatePath).Msg(w)
	}
	if !cfg.NoProgress {
		printer.Template(report)
	}
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(exitError)
	}

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	logger := newLogger(cfg)
	if cfg.IsDebug() {
		logger.Debug().Str("config", cfg.String()).Msg("starting")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cfg, logger, os.Stdout)
	stop()

	os.Exit(code)
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("xml2fdf - InfoPath XML to FDF converter\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
