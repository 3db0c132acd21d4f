// Command runexp runs one cross-validated HAR classification experiment.
//
//	runexp -e cnn/cnn1_exp -d hapt -f 5 -s
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	harness "github.com/seancxwu/dl-for-har-comparison"
)

func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run holds the real program logic so tests can drive it with their own
// writer and argument list.
func run(outW io.Writer, args []string) error {
	fs := flag.NewFlagSet("runexp", flag.ContinueOnError)
	fs.SetOutput(outW)

	var cfg harness.Config
	fs.StringVar(&cfg.Experiment, "experiment", "cnn/cnn1_exp", "experiment definition (json file)")
	fs.StringVar(&cfg.Experiment, "e", "cnn/cnn1_exp", "shorthand for -experiment")
	fs.StringVar(&cfg.Dataset, "dataset", "hapt", "from ['hapt', 'activemiles', 'hhar', 'fusion']")
	fs.StringVar(&cfg.Dataset, "d", "hapt", "shorthand for -dataset")
	fs.IntVar(&cfg.NFolds, "nfolds", 5, "number of folds")
	fs.IntVar(&cfg.NFolds, "f", 5, "shorthand for -nfolds")
	fs.BoolVar(&cfg.Save, "save", false, "write the metric log artifact")
	fs.BoolVar(&cfg.Save, "s", false, "shorthand for -save")
	fs.StringVar(&cfg.ExpDir, "exp-dir", "exp", "directory of experiment definitions")
	fs.StringVar(&cfg.LogDir, "log-dir", "log", "directory for metric logs")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "text", "log format: text or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	log := newLogger(*logLevel, *logFormat, os.Stderr)
	exp, err := harness.New(cfg, log)
	if err != nil {
		return err
	}
	return exp.Run()
}

// newLogger builds the run's slog logger without touching the global
// default.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if formatStr == "json" {
		handler = slog.NewJSONHandler(outW, opts)
	} else {
		handler = slog.NewTextHandler(outW, opts)
	}
	return slog.New(handler)
}
