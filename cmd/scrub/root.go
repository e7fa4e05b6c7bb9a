package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/eoln/scrub/internal/config"
	"github.com/eoln/scrub/internal/logging"
)

// commandContext carries global flags and the resolved configuration
// shared by all subcommands.
type commandContext struct {
	stdout io.Writer
	stderr io.Writer

	configFile string
	apiKey     string
	outdir     string
	logFile    string
	logLevel   string
	logFormat  string

	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error
}

func newCommandContext(stdout, stderr io.Writer) *commandContext {
	return &commandContext{stdout: stdout, stderr: stderr}
}

func newRootCommand(cc *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "scrub",
		Short:         "Bulk download time-series metrics as CSV files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cc.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cc.configFile, "config", "c", "", "Configuration file path (YAML, or TOML with a .toml extension)")
	flags.StringVarP(&cc.apiKey, "apikey", "g", "", "API key (env GLASSNODE_API_KEY)")
	flags.StringVarP(&cc.outdir, "outdir", "o", "", "Output directory or bucket URL (default ./data)")
	flags.StringVar(&cc.logFile, "log-file", "", "Append logs to this file")
	flags.StringVar(&cc.logLevel, "log-level", "", "Log level: debug, info, warn, error (default info)")
	flags.StringVar(&cc.logFormat, "log-format", "", "Log format: text or json (default text)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return withCode(ExitInvalidArgs, err)
	})

	rootCmd.AddCommand(newEndpointsCommand(cc))
	rootCmd.AddCommand(newScrapeCommand(cc))

	return rootCmd
}

// load resolves configuration from defaults, file, environment and flags,
// in increasing precedence, and builds the logger.
func (cc *commandContext) load(cmd *cobra.Command) error {
	cfg := config.Default()

	if path := strings.TrimSpace(cc.configFile); path != "" {
		fileCfg, err := config.LoadFromFile(path)
		if err != nil {
			return withCode(ExitInvalidArgs, err)
		}
		cfg = cfg.Merge(fileCfg)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return withCode(ExitInvalidArgs, err)
	}

	flags := cmd.Flags()
	if flags.Changed("apikey") {
		cfg.APIKey = cc.apiKey
	}
	if flags.Changed("outdir") {
		cfg.Output = cc.outdir
	}
	if flags.Changed("log-file") {
		cfg.LogFile = cc.logFile
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = cc.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = cc.logFormat
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
		Output: cc.stderr,
	})
	if err != nil {
		return withCode(ExitInvalidArgs, err)
	}

	cc.cfg = cfg
	cc.logger = logger
	cc.closeLog = closeLog
	return nil
}

// validate checks the resolved configuration before a command runs.
func (cc *commandContext) validate() error {
	if err := cc.cfg.Validate(); err != nil {
		return withCode(ExitInvalidArgs, err)
	}
	return nil
}

func (cc *commandContext) close() {
	if cc.closeLog != nil {
		if err := cc.closeLog(); err != nil {
			fmt.Fprintf(cc.stderr, "Error closing log file: %v\n", err)
		}
	}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
