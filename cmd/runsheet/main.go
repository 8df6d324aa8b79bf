package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nishad/runsheet/internal/config"
)

// Version info
var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

// Global flags
var (
	noColor    bool
	quiet      bool
	verbose    bool
	debug      bool
	configPath string
)

// Shared state set up before every command
var (
	cfg    *config.Config
	logger = zap.NewNop()
)

// Root command
var rootCmd = &cobra.Command{
	Use:   "runsheet",
	Short: "ISA-Tab to runsheet converter",
	Long: `runsheet turns OSDR ISA-Tab archives into runsheets: one CSV per matching
assay table, with one row per sample and the columns a processing workflow
needs.

What is extracted is driven entirely by a versioned profile. Packaged profiles
cover bulk RNA-Seq, methylation sequencing, metagenomics and amplicon
sequencing; custom profiles can be supplied as YAML files.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Example: `  # Convert a local ISA archive
  runsheet convert --accession OSD-194 --isa-archive OSD-194_metadata_OSD-194-ISA.zip --profile bulkRNASeq

  # Download the ISA archive first
  runsheet convert --accession OSD-194 --profile bulkRNASeq --output-dir runsheets

  # List remote files
  runsheet files match OSD-194 "fastq.gz$"

  # Start API server
  runsheet server --port 8080`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default: uses RUNSHEET_CONFIG)")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(accessionCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(configCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	if configPath == "" {
		configPath = config.GetConfigPath()
	}
	c, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = c

	l, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger = l
	return nil
}

// newLogger builds the CLI logger. Logs go to stderr; --verbose and --debug
// lower the configured level.
func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	zcfg.DisableStacktrace = !debug

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	switch {
	case debug:
		lvl.SetLevel(zap.DebugLevel)
	case verbose:
		lvl.SetLevel(zap.InfoLevel)
	case quiet:
		lvl.SetLevel(zap.ErrorLevel)
	case lvl.Level() < zap.WarnLevel:
		// Without -v only problems reach the terminal.
		lvl.SetLevel(zap.WarnLevel)
	}
	zcfg.Level = lvl
	return zcfg.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
