// Command audit runs one audit over local files and prints the JSON report.
//
//	audit [-bank extrato.csv]... [-tables tables.toml] files...
//
// Progress and logs go to stderr so stdout can be piped.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/nexusaudit/internal/application"
	"github.com/JonMunkholm/nexusaudit/internal/config"
	"github.com/JonMunkholm/nexusaudit/internal/core"
	"github.com/JonMunkholm/nexusaudit/internal/core/tables"
	"github.com/JonMunkholm/nexusaudit/internal/importer"
	"github.com/JonMunkholm/nexusaudit/internal/logging"
)

type pathList []string

func (p *pathList) String() string { return strings.Join(*p, ",") }

func (p *pathList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "audit:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var bank pathList
	fs.Var(&bank, "bank", "bank statement file (repeatable)")
	tablesFile := fs.String("tables", "", "lookup table override file (toml, yaml or json)")
	indent := fs.Bool("indent", true, "indent the JSON report")
	quiet := fs.Bool("quiet", false, "do not print progress")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("no input files")
	}

	_ = godotenv.Overload()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.SetupWriter(stderr, cfg.Logging.Level, cfg.Logging.Format)
	if *tablesFile == "" {
		*tablesFile = cfg.Tables.File
	}

	t, err := tables.Load(*tablesFile)
	if err != nil {
		return err
	}

	in := importer.Input{}
	if in.Files, err = readFiles(fs.Args()); err != nil {
		return err
	}
	if in.Bank, err = readFiles(bank); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress core.ProgressFunc
	if !*quiet {
		progress = func(completed, total int) {
			fmt.Fprintf(stderr, "\r%d/%d files", completed, total)
			if completed == total {
				fmt.Fprintln(stderr)
			}
		}
	}

	report := application.Build(cfg, t, slog.Default()).Run(ctx, in, progress)

	enc := json.NewEncoder(stdout)
	if *indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(report)
}

func readFiles(paths []string) ([]core.RawFile, error) {
	files := make([]core.RawFile, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, core.NewRawFile(filepath.Base(p), data))
	}
	return files, nil
}
