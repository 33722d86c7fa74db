package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/vegasq/pxcat/config"
	"github.com/vegasq/pxcat/logging"
	"github.com/vegasq/pxcat/metrics"
	"github.com/vegasq/pxcat/output"
	"github.com/vegasq/pxcat/pxerr"
	"github.com/vegasq/pxcat/query"
	"github.com/vegasq/pxcat/reader"
	"github.com/vegasq/pxcat/value"
)

const (
	exitOK        = 0
	exitError     = 1
	exitUsage     = 2
	exitCancelled = 130
)

var errColor = color.New(color.FgRed, color.Bold)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	query      string
	format     string
	outputPath string
	limit      int64
	schema     bool
	configPath string
	charset    string
	locale     string
	logLevel   string
	stats      bool
}

func usage(fs *flag.FlagSet, w io.Writer) func() {
	return func() {
		fmt.Fprintf(w, "Usage: pxcat [options] <directory>\n\n")
		fmt.Fprintf(w, "Query Paradox tables with SQL.\n\n")
		fmt.Fprintf(w, "IMPORTANT: All flags must come BEFORE the directory argument.\n\n")
		fmt.Fprintf(w, "Options:\n")
		fs.SetOutput(w)
		fs.PrintDefaults()
		fmt.Fprintf(w, "\nExamples:\n")
		fmt.Fprintf(w, "  pxcat ./data\n")
		fmt.Fprintf(w, "  pxcat -schema ./data\n")
		fmt.Fprintf(w, "  pxcat -q \"SELECT state, COUNT(*) FROM areacodes GROUP BY state\" ./data\n")
		fmt.Fprintf(w, "  pxcat -f parquet -o areacodes.parquet -q \"SELECT * FROM areacodes\" ./data\n")
	}
}

func fail(w io.Writer, format string, args ...interface{}) {
	errColor.Fprint(w, "Error: ")
	fmt.Fprintf(w, format+"\n", args...)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pxcat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = usage(fs, stderr)

	var opts options
	fs.StringVar(&opts.query, "q", "", "SQL query (e.g., \"SELECT * FROM areacodes WHERE state = 'NJ'\")")
	fs.StringVar(&opts.format, "f", "", "Output format: "+strings.Join(output.Formats, ", ")+" (default jsonl)")
	fs.StringVar(&opts.outputPath, "o", "", "Write output to this file instead of stdout")
	fs.Int64Var(&opts.limit, "limit", 0, "Limit number of rows (0 = unlimited)")
	fs.BoolVar(&opts.schema, "schema", false, "List the columns and indexes of every table")
	fs.StringVar(&opts.configPath, "config", "", "Configuration file (.toml, .yaml)")
	fs.StringVar(&opts.charset, "charset", "", "Override the code page of every table (e.g., cp1252)")
	fs.StringVar(&opts.locale, "locale", "", "Locale for UPPER and LOWER (e.g., tr)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.BoolVar(&opts.stats, "stats", false, "Print query statistics to stderr")

	// the flag set prints the usage itself on -h and on parse errors
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		fail(stderr, "%v", err)
		return exitUsage
	}

	// Validate flag values
	if opts.limit < 0 {
		fail(stderr, "-limit must be non-negative, got %d", opts.limit)
		return exitUsage
	}
	if opts.schema && opts.query != "" {
		fail(stderr, "-schema and -q cannot be used together")
		return exitUsage
	}
	if fs.NArg() != 1 {
		fail(stderr, "expected exactly one directory argument")
		fs.Usage()
		return exitUsage
	}
	dir := fs.Arg(0)

	cfg, err := loadConfig(&opts)
	if err != nil {
		fail(stderr, "%v", err)
		return exitUsage
	}
	if cfg.Output.Format == "parquet" && opts.outputPath == "" {
		fail(stderr, "parquet output requires -o")
		return exitUsage
	}

	logOpts := cfg.Log
	logOpts.Output = stderr
	logger, err := logging.New(&logOpts)
	if err != nil {
		fail(stderr, "%v", err)
		return exitUsage
	}

	m := metrics.New("pxcat")
	readerOpts := cfg.ReaderOptions()
	readerOpts.Logger = logger
	readerOpts.Metrics = m

	catalog, err := reader.OpenCatalog(dir, readerOpts)
	if err != nil {
		fail(stderr, "%v", err)
		return exitError
	}

	var out io.Writer = stdout
	if opts.outputPath != "" {
		f, err := os.Create(opts.outputPath)
		if err != nil {
			fail(stderr, "%v", err)
			return exitError
		}
		defer f.Close()
		out = f
	}
	formatter, err := output.New(cfg.Output.Format, out, &output.Options{Compression: cfg.Output.Compression})
	if err != nil {
		fail(stderr, "%v", err)
		return exitUsage
	}

	var result output.Result
	switch {
	case opts.schema:
		result, err = describeColumns(catalog)
	case opts.query == "":
		result, err = describeTables(catalog)
	default:
		session := query.NewSession(catalog, &query.SessionOptions{
			Locale:  cfg.LocaleTag(),
			MaxRows: cfg.MaxRows,
			Logger:  logger,
			Metrics: m,
		})
		var rows *query.Rows
		rows, err = session.Query(ctx, opts.query)
		if err == nil {
			defer rows.Close()
			result = rows
		}
	}
	if err == nil {
		err = formatter.Format(result)
	}

	if opts.stats {
		if serr := printStats(stderr, m.Registry()); serr != nil {
			logger.Warn("failed to gather statistics", "error", serr)
		}
	}

	if err != nil {
		fail(stderr, "%v", err)
		if pxerr.CodeOf(err) == pxerr.CodeCancelled {
			return exitCancelled
		}
		return exitError
	}
	return exitOK
}

// loadConfig reads the configuration file, if any, and applies the flags over it
func loadConfig(opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return nil, err
		}
	}
	if opts.format != "" {
		cfg.Output.Format = opts.format
	}
	if opts.limit > 0 {
		cfg.MaxRows = opts.limit
	}
	if opts.charset != "" {
		cfg.Charset = opts.charset
	}
	if opts.locale != "" {
		cfg.Locale = opts.locale
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func describeTables(c *reader.Catalog) (output.Result, error) {
	infos, err := reader.DescribeCatalog(c)
	if err != nil {
		return nil, err
	}
	cols := []query.Column{
		{Name: "schema", Type: value.TypeString},
		{Name: "table", Type: value.TypeString},
		{Name: "rows", Type: value.TypeLong},
		{Name: "columns", Type: value.TypeLong},
		{Name: "indexes", Type: value.TypeLong},
		{Name: "version", Type: value.TypeLong},
		{Name: "charset", Type: value.TypeString},
		{Name: "write_protected", Type: value.TypeBoolean},
	}
	rows := make([][]value.Value, 0, len(infos))
	for _, t := range infos {
		rows = append(rows, []value.Value{
			value.String(t.Schema),
			value.String(t.Name),
			value.Long(int64(t.Rows)),
			value.Long(int64(len(t.Columns))),
			value.Long(int64(len(t.Indexes))),
			value.Long(int64(t.Version)),
			value.String(t.Charset),
			value.Bool(t.Protected),
		})
	}
	return output.NewStatic(cols, rows), nil
}

func describeColumns(c *reader.Catalog) (output.Result, error) {
	infos, err := reader.DescribeCatalog(c)
	if err != nil {
		return nil, err
	}
	cols := []query.Column{
		{Name: "schema", Type: value.TypeString},
		{Name: "table", Type: value.TypeString},
		{Name: "name", Type: value.TypeString},
		{Name: "ordinal", Type: value.TypeLong},
		{Name: "type", Type: value.TypeString},
		{Name: "field_type", Type: value.TypeString},
		{Name: "size", Type: value.TypeLong},
		{Name: "key", Type: value.TypeBoolean},
		{Name: "indexes", Type: value.TypeString},
	}
	var rows [][]value.Value
	for _, t := range infos {
		indexed := make(map[string][]string)
		for _, idx := range t.Indexes {
			for _, f := range idx.Fields {
				indexed[strings.ToLower(f)] = append(indexed[strings.ToLower(f)], idx.Name)
			}
		}
		for _, col := range t.Columns {
			rows = append(rows, []value.Value{
				value.String(col.Schema),
				value.String(col.Table),
				value.String(col.Name),
				value.Long(int64(col.Ordinal)),
				value.String(col.Type),
				value.String(col.FieldType),
				value.Long(int64(col.Size)),
				value.Bool(col.Key),
				value.String(strings.Join(indexed[strings.ToLower(col.Name)], ",")),
			})
		}
	}
	return output.NewStatic(cols, rows), nil
}

// printStats writes every gathered counter and histogram as name{labels} value
func printStats(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := formatLabels(m.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				fmt.Fprintf(w, "%s%s %g\n", mf.GetName(), labels, m.GetCounter().GetValue())
			case dto.MetricType_GAUGE:
				fmt.Fprintf(w, "%s%s %g\n", mf.GetName(), labels, m.GetGauge().GetValue())
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				fmt.Fprintf(w, "%s_count%s %d\n", mf.GetName(), labels, h.GetSampleCount())
				fmt.Fprintf(w, "%s_sum%s %g\n", mf.GetName(), labels, h.GetSampleSum())
			}
		}
	}
	return nil
}

func formatLabels(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, fmt.Sprintf("%s=%q", p.GetName(), p.GetValue()))
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ",") + "}"
}
