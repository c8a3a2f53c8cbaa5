package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/hashicorp/go-repack"
	"github.com/pkg/errors"
)

// process exit codes
const (
	ExitOK          = 0
	ExitError       = 1
	ExitInterrupted = 130
)

// CLI are the cli parameters for go-repack binary
type CLI struct {
	Source     string           `arg:"" name:"source" optional:"" help:"Source tar.gz archive."`
	Level      int              `short:"l" default:"19" help:"zstd compression level (1-22). Out of range values fall back to 3."`
	Output     string           `short:"o" default:"output.tar.zst" help:"Output tar.zst file."`
	PrintRules bool             `optional:"" help:"Print the selected ruleset as YAML and exit."`
	Quiet      bool             `short:"q" optional:"" help:"Only log errors."`
	Rules      string           `optional:"" type:"path" help:"YAML ruleset file. Overrides --ruleset."`
	Ruleset    string           `optional:"" default:"default" enum:"${rulesets}" help:"Builtin ruleset (${rulesets})."`
	Telemetry  bool             `short:"T" optional:"" help:"Log telemetry data after the run."`
	TempDir    string           `optional:"" type:"path" help:"Directory for the transient tar container."`
	Threads    int              `optional:"" default:"0" help:"Goroutines used by the zstd encoder. (0: number of CPUs)"`
	Verbose    bool             `short:"v" optional:"" help:"Verbose logging."`
	Version    kong.VersionFlag `short:"V" optional:"" help:"Print release version information."`
}

// Run parses the command line, runs the repack and exits the process.
func Run(version, commit, date string) {
	os.Exit(RunArgs(context.Background(), os.Args[1:], os.Stdout, os.Stderr, os.Exit, version, commit, date))
}

// RunArgs runs the cli with args and returns the process exit code. exit is
// called by the argument parser for --help and --version. opts are applied
// after the options derived from args.
func RunArgs(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer, exit func(int), version, commit, date string, opts ...repack.ConfigOption) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("repack"),
		kong.Description("Repack selected members of a tar.gz archive into a tar.zst archive"),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Exit(exit),
		kong.Vars{
			"version":  fmt.Sprintf("%s (%s), commit %s, built at %s", filepath.Base(os.Args[0]), version, commit, date),
			"rulesets": strings.Join(repack.RulesetNames(), ","),
		},
	)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitError
	}
	if _, err := parser.Parse(args); err != nil {
		fmt.Fprintf(stderr, "repack: %s\n", err)
		return ExitError
	}

	// check for verbose or quiet output
	logLevel := slog.LevelInfo
	if cli.Verbose {
		logLevel = slog.LevelDebug
	} else if cli.Quiet {
		logLevel = slog.LevelError
	}

	// setup logger
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	// select ruleset
	rs, err := selectRuleset(cli)
	if err != nil {
		logger.Error("cannot load ruleset", "error", err)
		return ExitError
	}
	if cli.PrintRules {
		if err := rs.WriteYAML(stdout); err != nil {
			logger.Error("cannot print ruleset", "error", err)
			return ExitError
		}
		return ExitOK
	}
	if cli.Source == "" {
		logger.Error("missing source archive")
		return ExitError
	}

	// setup telemetry hook
	telemetryToLog := func(ctx context.Context, td *repack.TelemetryData) {
		if cli.Telemetry {
			logger.Info("repack finished", "telemetry", td)
		}
	}

	// process cli params
	cliOpts := []repack.ConfigOption{
		repack.WithCompressionLevel(cli.Level),
		repack.WithCreateDestination(true),
		repack.WithEncoderConcurrency(cli.Threads),
		repack.WithLogger(logger),
		repack.WithRuleset(rs),
		repack.WithTelemetryHook(telemetryToLog),
		repack.WithTempDir(cli.TempDir),
	}
	if f, ok := stderr.(*os.File); ok && !cli.Quiet {
		if p := newTerminalProgress(f); p != nil {
			cliOpts = append(cliOpts, repack.WithProgress(p))
		}
	}
	config := repack.NewConfig(append(cliOpts, opts...)...)

	// cancel the run on interrupt, cleanup happens inside of Repack. Once
	// canceled, a second interrupt terminates the process.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	context.AfterFunc(ctx, stop)

	err = repack.Repack(ctx, cli.Source, cli.Output, config)
	code := exitCode(err)
	switch {
	case code == ExitOK:
		logger.Info("successfully created archive", "path", cli.Output)
	case code == ExitInterrupted:
		logger.Info("interrupted by user")
	case errors.Is(err, repack.ErrCodecUnavailable):
		logger.Error("zstandard compression is not available", "error", err)
	case errors.Is(err, repack.ErrSourceNotFound):
		logger.Error("source archive does not exist", "path", cli.Source)
	default:
		logger.Error("repack failed", "error", err)
	}
	return code
}

// exitCode maps the result of a run to the process exit code
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	default:
		return ExitError
	}
}

// selectRuleset returns the ruleset file if given, the builtin ruleset otherwise
func selectRuleset(cli CLI) (repack.Ruleset, error) {
	if cli.Rules != "" {
		return repack.LoadRulesetFile(cli.Rules)
	}
	return repack.LookupRuleset(cli.Ruleset)
}
