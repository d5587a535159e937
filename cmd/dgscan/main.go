// dgscan is the batch scanner: point it at a file, a directory or a literal
// value and it prints a risk report without needing the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/dataguardian/dataguardian/internal/detect"
	"github.com/dataguardian/dataguardian/internal/ingest"
	"github.com/dataguardian/dataguardian/internal/logger"
	"github.com/dataguardian/dataguardian/internal/patterns"
	"github.com/dataguardian/dataguardian/internal/report"
	"github.com/dataguardian/dataguardian/internal/risk"
	"github.com/dataguardian/dataguardian/internal/scan"
	"github.com/dataguardian/dataguardian/internal/seal"
)

var version = "0.1.0"

func main() {
	var (
		pathFlag     = flag.String("path", "", "File or directory to scan")
		textFlag     = flag.String("text", "", "Literal text to scan")
		patternsFile = flag.String("patterns", "", "JSON file with custom detection patterns")
		format       = flag.String("format", "json", "Output format: json or html")
		out          = flag.String("out", "", "Write the report to a file instead of stdout")
		failOn       = flag.String("fail-on", "", "Exit non-zero when risk reaches this level (MEDIUM, HIGH, CRITICAL)")
		sealColumn   = flag.String("seal-column", "", "Encrypt this column of the scanned file and write the result next to the report")
		sealOut      = flag.String("seal-out", "", "Destination CSV for the sealed copy")
		genKey       = flag.Bool("gen-key", false, "Generate a new encryption key and exit")
		verbose      = flag.Bool("verbose", false, "Enable debug logging")
		showVersion  = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("dgscan %s\n", version)
		return
	}
	if *genKey {
		key, err := seal.GenerateKey()
		if err != nil {
			fatal("Failed to generate key: %v", err)
		}
		fmt.Println(key)
		return
	}
	if *pathFlag == "" && *textFlag == "" {
		fatal("either -path or -text is required")
	}
	if *format != "json" && *format != "html" {
		fatal("unknown format %q", *format)
	}

	level := "error"
	if *verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Format: "console"})
	if err != nil {
		fatal("Failed to initialize logger: %v", err)
	}
	defer log.Sync()

	pats := patterns.Resolve(context.Background(), patterns.Config{File: *patternsFile}, log.Logger)
	scanner := scan.New([]detect.Detector{
		detect.NewRegexDetector(pats, log.Logger),
	}, scan.DefaultLimits(), log.Logger)

	var rep *report.Report
	switch {
	case *textFlag != "":
		rep = scanner.Text(*textFlag, "inline")
	default:
		rep, err = scanner.Path(*pathFlag)
		if err != nil {
			fatal("Scan failed: %v", err)
		}
	}

	if *sealColumn != "" {
		if err := sealTarget(*pathFlag, *sealColumn, *sealOut, log.Logger); err != nil {
			fatal("Seal failed: %v", err)
		}
	}

	if err := emit(rep, *format, *out); err != nil {
		fatal("Failed to write report: %v", err)
	}

	if *failOn != "" && rep.Summary.Level.Rank() >= risk.ParseLevel(*failOn).Rank() {
		os.Exit(2)
	}
}

func emit(rep *report.Report, format, out string) error {
	var payload []byte
	switch format {
	case "html":
		html, err := rep.HTML()
		if err != nil {
			return err
		}
		payload = []byte(html)
	default:
		data, err := rep.JSON()
		if err != nil {
			return err
		}
		payload = data
	}

	if out == "" {
		fmt.Println(strings.TrimRight(string(payload), "\n"))
		return nil
	}
	return os.WriteFile(out, payload, 0o644)
}

func sealTarget(path, column, out string, log *zap.Logger) error {
	if path == "" {
		return fmt.Errorf("-seal-column needs -path")
	}
	sealer, err := seal.NewFromEnv()
	if err != nil {
		return err
	}

	table, err := ingest.NewReader(log).ReadFile(path)
	if err != nil {
		return err
	}
	sealed, err := sealer.EncryptColumn(&table, column)
	if err != nil {
		return err
	}
	if out == "" {
		out = path + ".sealed.csv"
	}
	if err := ingest.WriteCSV(table, out); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "sealed %d values of column %s into %s\n", sealed, column, out)
	return nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
