package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"masterdata/internal/app"
	"masterdata/internal/workflow"
)

func usage() {
	fmt.Fprintf(os.Stderr, `masterdata — self-hosted master-data platform

Usage:
  masterdata [flags] <command> [args]

Commands:
  serve                     run as an MCP server on stdin/stdout
  run <workflow-id>         execute a stored workflow once
  validate <file.json>      validate a workflow definition file
  preview <type> <config>   preview records from a source (config is JSON)
  list                      list stored workflows

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	log.SetFlags(log.LstdFlags)
	os.Exit(run())
}

func run() int {
	var dataDir string
	defaultDir := ""
	if home, err := os.UserHomeDir(); err == nil {
		defaultDir = filepath.Join(home, ".local", "share", "masterdata")
	}
	flag.StringVar(&dataDir, "data-dir", defaultDir, "directory for the database, secrets, and file outputs")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// validate needs no database
	if args[0] == "validate" {
		return cmdValidate(args[1:])
	}

	a, err := app.New(dataDir)
	if err != nil {
		log.Printf("startup: %v", err)
		return 1
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer closeCancel()
		if err := a.Close(closeCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	var code int
	switch args[0] {
	case "serve":
		if err := a.ServeMCP(ctx); err != nil {
			log.Printf("mcp server: %v", err)
			code = 1
		}
	case "run":
		code = cmdRun(ctx, a, args[1:])
	case "preview":
		code = cmdPreview(ctx, a, args[1:])
	case "list":
		code = cmdList(a)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		usage()
		code = 2
	}
	return code
}

func cmdRun(ctx context.Context, a *app.App, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: masterdata run <workflow-id>")
		return 2
	}

	report, err := a.Workflows.RunJob(ctx, args[0])
	if err != nil && report == nil {
		log.Printf("run: %v", err)
		return 1
	}

	printJSON(report)
	if err != nil {
		log.Printf("run: %v", err)
		return 1
	}
	if report.Status != workflow.StatusSuccess {
		return 1
	}
	return 0
}

func cmdValidate(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: masterdata validate <file.json>")
		return 2
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		log.Printf("validate: %v", err)
		return 1
	}

	var wf workflow.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		log.Printf("validate: parse definition: %v", err)
		return 1
	}

	errs := workflow.Validate(wf)
	warnings := workflow.Warnings(wf)
	printJSON(map[string]any{
		"valid":    len(errs) == 0,
		"errors":   errMessages(errs),
		"warnings": warnings,
	})
	if len(errs) > 0 {
		return 1
	}
	return 0
}

func cmdPreview(ctx context.Context, a *app.App, args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: masterdata preview <source-type> <config-json>")
		return 2
	}

	var cfg workflow.SourceConfig
	if err := json.Unmarshal([]byte(args[1]), &cfg); err != nil {
		log.Printf("preview: parse config: %v", err)
		return 1
	}

	preview, err := a.Workflows.PreviewSource(ctx, args[0], cfg, 10)
	if err != nil {
		log.Printf("preview: %v", err)
		return 1
	}
	printJSON(preview)
	return 0
}

func cmdList(a *app.App) int {
	jobs, err := a.Workflows.ListJobs()
	if err != nil {
		log.Printf("list: %v", err)
		return 1
	}
	printJSON(jobs)
	return 0
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("encode output: %v", err)
		return
	}
	fmt.Println(string(out))
}

func errMessages(errs []error) []string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return msgs
}
