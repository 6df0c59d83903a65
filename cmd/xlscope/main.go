// Command xlscope fills, describes and validates spreadsheet templates.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/UNO-SOFT/zlog/v2"
	"github.com/peterbourgon/ff/v3/ffcli"
	"gopkg.in/yaml.v3"

	"github.com/javajack/xlscope"
)

var verbose zlog.VerboseVar
var logger = zlog.NewLogger(zlog.MaybeConsoleHandler(&verbose, os.Stderr)).SLog()

func main() {
	if err := Main(); err != nil {
		logger.Error("MAIN", "error", err)
		os.Exit(1)
	}
}

func Main() error {
	var (
		password  string
		maxDepth  int
		locale    string
		noHeights bool
		dataPath  string
		outPath   string
	)

	commonFlags := func(fs *flag.FlagSet) {
		fs.Var(&verbose, "v", "logging verbosity")
		fs.StringVar(&password, "password", "", "template password")
	}

	fillFS := flag.NewFlagSet("fill", flag.ContinueOnError)
	commonFlags(fillFS)
	fillFS.StringVar(&dataPath, "data", "-", "JSON or YAML data file (- for stdin)")
	fillFS.StringVar(&outPath, "o", "", "output file name (default: template name + .out.xlsx, - for stdout)")
	fillFS.StringVar(&locale, "locale", "en", "locale for formatDate day and month names")
	fillFS.IntVar(&maxDepth, "max-depth", xlscope.DefaultMaxDepth, "maximum scope nesting")
	fillFS.BoolVar(&noHeights, "keep-row-heights", false, "do not recompute row heights from fonts")

	fillCmd := &ffcli.Command{Name: "fill", FlagSet: fillFS,
		ShortUsage: "xlscope fill [flags] <template.xlsx>",
		ShortHelp:  "interpolate data into a template",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return flag.ErrHelp
			}
			data, err := readData(dataPath)
			if err != nil {
				return err
			}
			wb, err := xlscope.Open(args[0],
				xlscope.WithPassword(password),
				xlscope.WithLogger(logger),
				xlscope.WithDateLocale(locale),
				xlscope.WithMaxDepth(maxDepth),
				xlscope.WithAutoRowHeight(!noHeights),
			)
			if err != nil {
				return err
			}
			defer wb.Close()

			if err := wb.Evaluate(data); err != nil {
				return err
			}
			out := outPath
			if out == "" {
				out = args[0] + ".out.xlsx"
			}
			if out == "-" {
				return wb.Write(os.Stdout)
			}
			logger.Info("write", "file", out)
			return wb.WriteFile(out)
		},
	}

	describeFS := flag.NewFlagSet("describe", flag.ContinueOnError)
	commonFlags(describeFS)
	describeCmd := &ffcli.Command{Name: "describe", FlagSet: describeFS,
		ShortUsage: "xlscope describe [flags] <template.xlsx>",
		ShortHelp:  "print the scope tree of a template",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return flag.ErrHelp
			}
			s, err := xlscope.Describe(args[0], xlscope.WithPassword(password), xlscope.WithLogger(logger))
			if err != nil {
				return err
			}
			_, err = io.WriteString(os.Stdout, s)
			return err
		},
	}

	validateFS := flag.NewFlagSet("validate", flag.ContinueOnError)
	commonFlags(validateFS)
	validateCmd := &ffcli.Command{Name: "validate", FlagSet: validateFS,
		ShortUsage: "xlscope validate [flags] <template.xlsx>",
		ShortHelp:  "check a template for malformed markers and expressions",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return flag.ErrHelp
			}
			issues, err := xlscope.Validate(args[0], xlscope.WithPassword(password), xlscope.WithLogger(logger))
			if err != nil {
				return err
			}
			var failed bool
			for _, issue := range issues {
				fmt.Println(issue)
				failed = failed || issue.Severity == xlscope.SeverityError
			}
			if failed {
				return errors.New("template has errors")
			}
			return nil
		},
	}

	rootFS := flag.NewFlagSet("xlscope", flag.ContinueOnError)
	rootFS.Var(&verbose, "v", "logging verbosity")
	app := ffcli.Command{Name: "xlscope", FlagSet: rootFS,
		ShortUsage:  "xlscope <subcommand> [flags] <template.xlsx>",
		Subcommands: []*ffcli.Command{fillCmd, describeCmd, validateCmd},
		Exec: func(ctx context.Context, args []string) error {
			return flag.ErrHelp
		},
	}

	if err := app.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := app.Run(ctx); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, ffcli.DefaultUsageFunc(&app))
			return nil
		}
		return err
	}
	return nil
}

// readData decodes a JSON or YAML document; JSON is valid YAML.
func readData(path string) (any, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		fh, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer fh.Close()
		r = fh
	}
	var data any
	if err := yaml.NewDecoder(r).Decode(&data); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode data %q: %w", path, err)
	}
	return data, nil
}
