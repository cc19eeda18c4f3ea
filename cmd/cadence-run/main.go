// Command cadence-run executes a single workflow definition locally and
// prints its result as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tidwall/gjson"

	app "github.com/kode4food/cadence"
	"github.com/kode4food/cadence/internal/archive"
	"github.com/kode4food/cadence/internal/capability"
	"github.com/kode4food/cadence/internal/client"
	"github.com/kode4food/cadence/internal/config"
	"github.com/kode4food/cadence/internal/engine"
	"github.com/kode4food/cadence/pkg/api"
	"github.com/kode4food/cadence/pkg/log"
)

type options struct {
	definition   string
	inputs       string
	capabilities string
	archiveURL   string
	selectPath   string
	autoApprove  bool
}

const (
	exitOK = iota
	exitRunFailed
	exitUsage
)

var (
	ErrDefinitionRequired = errors.New("definition file is required")
	ErrInvalidInputs      = errors.New("inputs must be a JSON object")
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		return exitUsage
	}

	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return exitUsage
	}
	level, _ := log.ParseLevel(cfg.LogLevel)
	slog.SetDefault(
		log.NewWithWriter(stderr, app.Name, os.Getenv("ENV"),
			app.Version, level,
		),
	)

	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	res, err := execute(ctx, cfg, opts)
	if err != nil {
		slog.Error("Run not started", log.Error(err))
		return exitUsage
	}

	if err := writeResult(stdout, res, opts.selectPath); err != nil {
		slog.Error("Failed to write result", log.Error(err))
		return exitUsage
	}
	if !res.Success {
		return exitRunFailed
	}
	return exitOK
}

func parseOptions(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("cadence-run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.inputs, "inputs", "{}",
		"workflow inputs as a JSON object")
	fs.StringVar(&opts.capabilities, "capabilities", "",
		"capability spec file (JSON or YAML)")
	fs.StringVar(&opts.archiveURL, "archive", "",
		"bucket URL that receives the exported result")
	fs.StringVar(&opts.selectPath, "select", "",
		"JSON path selecting part of the result to print")
	fs.BoolVar(&opts.autoApprove, "auto-approve", false,
		"approve every gate without prompting")
	fs.Usage = func() {
		_, _ = fmt.Fprintln(stderr,
			"usage: cadence-run [flags] <definition.json|yaml>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, ErrDefinitionRequired
	}
	opts.definition = fs.Arg(0)
	return opts, nil
}

func execute(
	ctx context.Context, cfg *config.Config, opts *options,
) (*api.WorkflowResult, error) {
	def, err := loadDefinition(opts.definition)
	if err != nil {
		return nil, err
	}
	inputs, err := parseInputs(opts.inputs)
	if err != nil {
		return nil, err
	}

	reg := capability.NewRegistry()
	capability.RegisterBuiltins(reg)
	if path := firstOf(opts.capabilities, cfg.CapabilityFile); path != "" {
		specs, err := capability.LoadSpecs(path)
		if err != nil {
			return nil, err
		}
		cl := client.NewHTTPClient(cfg.CapabilityTimeout)
		err = capability.NewFactory(cl).RegisterSpecs(reg, specs)
		if err != nil {
			return nil, err
		}
	}

	deps := engine.Dependencies{Registry: reg}
	if opts.autoApprove {
		deps.Approvals = engine.AutoApproveHandler
	}
	eng, err := engine.New(cfg, deps)
	if err != nil {
		return nil, err
	}

	res, err := eng.Execute(ctx, def, inputs)
	if err != nil {
		return nil, err
	}

	if url := firstOf(opts.archiveURL, cfg.Archive.URL); url != "" {
		if err := archiveResult(ctx, url, cfg.Archive.Prefix, res); err != nil {
			slog.Error("Failed to archive result", log.Error(err))
		}
	}
	return res, nil
}

func loadDefinition(path string) (*api.WorkflowDefinition, error) {
	format, err := api.FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return api.ParseDefinition(data, format)
}

func parseInputs(raw string) (api.Args, error) {
	if !gjson.Valid(raw) {
		return nil, ErrInvalidInputs
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		return nil, ErrInvalidInputs
	}
	m, _ := parsed.Value().(map[string]any)
	return api.ArgsFromMap(m), nil
}

func archiveResult(
	ctx context.Context, url, prefix string, res *api.WorkflowResult,
) error {
	a, err := archive.Open(ctx, url, prefix)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return a.Put(ctx, res)
}

func writeResult(w io.Writer, res *api.WorkflowResult, path string) error {
	data, err := json.MarshalIndent(res.Export(), "", "  ")
	if err != nil {
		return err
	}
	if path != "" {
		data = []byte(gjson.GetBytes(data, path).Raw)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
