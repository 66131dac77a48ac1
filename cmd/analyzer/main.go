package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"classbench-seed-analyzer/internal/config"
	"classbench-seed-analyzer/internal/engine"
	"classbench-seed-analyzer/internal/model"
	"classbench-seed-analyzer/internal/parser"
	"classbench-seed-analyzer/pkg/wellknown"
)

var (
	configFile   string
	rulesFile    string
	ruleProvider string
	rulesDB      string
	tableName    string
	rulesetName  string
	ruleFormat   string
	formatFile   string
	outFile      string
	prefixCorr   bool
	workers      int
	logLevel     string
	logFile      string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "classbench-seed-analyzer",
		Short: "Derive ClassBench seed files from OpenFlow rule sets",
		Long: `classbench-seed-analyzer reads OpenFlow rules from a flow dump or a database,
or 5-tuple rules from a filter set file, measures their port classes, prefix lengths and address tries, and writes a
ClassBench seed that the rule generator can scale into synthetic rule sets.`,
		SilenceUsage: true,
	}

	// Source and logging flags shared by every subcommand
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "YAML configuration file")
	flags.StringVar(&ruleProvider, "provider", config.ProviderOpenFlow, "Rule provider type: 'openflow', 'mariadb', 'sqlite' or 'classbench'")
	flags.StringVar(&rulesFile, "rules", "", "OpenFlow rule dump or filter set file (for 'openflow' and 'classbench' providers, '-' for stdin)")
	flags.StringVar(&rulesDB, "db", "", "Database DSN or SQLite path (for 'mariadb' and 'sqlite' providers)")
	flags.StringVar(&tableName, "table", parser.DefaultTable, "Table holding the rule lines")
	flags.StringVar(&rulesetName, "ruleset", "", "Ruleset to filter DB queries (adds WHERE ruleset = '...')")
	flags.StringVar(&ruleFormat, "format", parser.DefaultFilterFormat, "Filter set rule format (for 'classbench' provider)")
	flags.StringVar(&formatFile, "format-file", "", "File whose first line is the filter set rule format (overrides --format)")
	flags.StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	flags.StringVar(&logFile, "log-file", "", "Log file path (default: stderr)")

	analyseCmd := &cobra.Command{
		Use:     "analyse",
		Aliases: []string{"analyze"},
		Short:   "Analyse a rule set and write its ClassBench seed",
		RunE:    runAnalyse,
	}
	analyseCmd.Flags().StringVar(&outFile, "out", "-", "Output seed file ('-' for stdout)")
	analyseCmd.Flags().BoolVar(&prefixCorr, "pcorr", false, "Compute the -pcorr section instead of emitting zero rows")
	analyseCmd.Flags().IntVarP(&workers, "workers", "w", runtime.NumCPU(), "Number of concurrent counting workers")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the parsed rules as normalised 'field=value, ...' lines",
		RunE:  runExport,
	}
	exportCmd.Flags().StringVar(&outFile, "out", "-", "Output file ('-' for stdout)")

	rootCmd.AddCommand(analyseCmd, exportCmd)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig layers explicitly set flags over the config file, or over the
// defaults when no file is given.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.LoadConfig(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("provider") || configFile == "" {
		cfg.Source.Provider = ruleProvider
	}
	if changed("rules") {
		cfg.Source.Path = rulesFile
	}
	if changed("db") {
		cfg.Source.DSN = rulesDB
	}
	if changed("table") {
		cfg.Source.Table = tableName
	}
	if changed("ruleset") {
		cfg.Source.Ruleset = rulesetName
	}
	if changed("format") {
		cfg.Source.Format = ruleFormat
	}
	if changed("format-file") {
		cfg.Source.FormatFile = formatFile
	}
	if changed("log-level") || configFile == "" {
		cfg.Logging.Level = logLevel
	}
	if changed("log-file") {
		cfg.Logging.File = logFile
	}
	if cmd.Flags().Lookup("workers") != nil && (changed("workers") || configFile == "") {
		cfg.Seed.Workers = workers
	}
	if changed("pcorr") {
		cfg.Seed.PrefixCorrelation = prefixCorr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runAnalyse(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	// --- 1. Setup Logging ---
	logger, logCloser := setupLogger(cfg.Logging.Level, cfg.Logging.File)
	defer logCloser.Close()
	slog.SetDefault(logger)

	slog.Info("Starting ClassBench seed analyzer", "version", "1.0-go")
	startTime := time.Now()

	// --- 2. Load Rules ---
	slog.Info("Loading rules...", "provider", cfg.Source.Provider)
	p, err := loadRules(cmd.Context(), cfg.Source)
	if err != nil {
		slog.Error("Failed to load rules", "error", err)
		return err
	}
	slog.Info("Successfully loaded rules", "count", len(p.Rules), "omitted", p.Omitted, "invalid", p.Invalid)

	// --- 3. Analyse ---
	analysis, err := engine.Analyse(p.Rules, p.Omitted, engine.Options{
		Workers:           cfg.Seed.Workers,
		PrefixCorrelation: cfg.Seed.PrefixCorrelation,
	})
	if err != nil {
		slog.Error("Failed to analyse rules", "error", err)
		return err
	}
	logProtocols(analysis)

	// --- 4. Write Seed ---
	if err := writeOutput(outFile, cmd.OutOrStdout(), func(w io.Writer) error {
		return engine.WriteSeed(w, analysis)
	}); err != nil {
		slog.Error("Failed to write seed", "path", outFile, "error", err)
		return err
	}

	slog.Info("Seed written", "output_file", outFile, "duration", time.Since(startTime))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger, logCloser := setupLogger(cfg.Logging.Level, cfg.Logging.File)
	defer logCloser.Close()
	slog.SetDefault(logger)

	p, err := loadRules(cmd.Context(), cfg.Source)
	if err != nil {
		slog.Error("Failed to load rules", "error", err)
		return err
	}

	if err := writeOutput(outFile, cmd.OutOrStdout(), func(w io.Writer) error {
		return exportRules(w, p.Rules)
	}); err != nil {
		slog.Error("Failed to export rules", "path", outFile, "error", err)
		return err
	}
	slog.Info("Rules exported", "count", len(p.Rules), "output_file", outFile)
	return nil
}

func exportRules(w io.Writer, rules []*model.Rule) error {
	bw := bufio.NewWriter(w)
	for _, r := range rules {
		if _, err := fmt.Fprintln(bw, r.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// writeOutput runs write against path, or against stdout when path is "-".
func writeOutput(path string, stdout io.Writer, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func logProtocols(a *engine.Analysis) {
	for _, proto := range a.Protocols() {
		name, ok := wellknown.ProtocolName(proto)
		if !ok {
			name = fmt.Sprintf("%d", proto)
		}
		n := 0
		for _, count := range a.Counters.ProtocolPortClass[proto] {
			n += count
		}
		slog.Debug("Protocol distribution", "protocol", name, "rules", n)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// setupLogger returns the process logger and the closer of its log file.
func setupLogger(level, logFilePath string) (*slog.Logger, io.Closer) {
	var logWriter io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			logWriter = f
			closer = f
		}
		// We don't log an error here because the logger isn't set up yet.
		// It will just fall back to stderr.
	}

	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "INFO":
		lvl = slog.LevelInfo
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{Level: lvl})), closer
}

func loadRules(ctx context.Context, src config.SourceConfig) (*parser.RuleSet, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	switch src.Provider {
	case config.ProviderOpenFlow, config.ProviderClassBench:
		if src.Path == "" {
			return nil, fmt.Errorf("rules file path must be provided for %s provider", src.Provider)
		}
		var format *parser.RuleFormat
		if src.Provider == config.ProviderClassBench {
			var err error
			if format, err = loadFormat(src); err != nil {
				return nil, err
			}
		}
		var in io.Reader = os.Stdin
		if src.Path != "-" {
			file, err := os.Open(src.Path)
			if err != nil {
				return nil, err
			}
			defer file.Close()
			in = file
		}
		if format != nil {
			p := parser.NewFilterSetParser(in, format)
			if err := p.Parse(); err != nil {
				return nil, err
			}
			return &p.RuleSet, nil
		}
		p := parser.NewOpenFlowParser(in)
		if err := p.Parse(); err != nil {
			return nil, err
		}
		return &p.RuleSet, nil
	case config.ProviderMariaDB, config.ProviderSQLite:
		if src.DSN == "" {
			return nil, fmt.Errorf("database connection string must be provided for %s provider", src.Provider)
		}
		driver := parser.DriverMariaDB
		if src.Provider == config.ProviderSQLite {
			driver = parser.DriverSQLite
		}
		db, err := parser.NewSQLSource(driver, src.DSN, src.Table, src.Ruleset)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		p := parser.NewOpenFlowParser(nil)
		if err := db.Load(ctx, p); err != nil {
			return nil, err
		}
		return &p.RuleSet, nil
	default:
		return nil, fmt.Errorf("unknown rule provider: %s", src.Provider)
	}
}

// loadFormat picks the filter set layout: the format file, then the format
// string, then the plain 5-tuple layout.
func loadFormat(src config.SourceConfig) (*parser.RuleFormat, error) {
	if src.FormatFile != "" {
		format, err := parser.LoadFormatFile(src.FormatFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load rule format: %w", err)
		}
		return format, nil
	}
	if src.Format == "" {
		return parser.ParseFormat(parser.DefaultFilterFormat)
	}
	return parser.ParseFormat(src.Format)
}
