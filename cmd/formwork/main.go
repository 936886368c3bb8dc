// Package main provides a CLI tool for the formwork runtime.
// It evaluates, verifies and lints form documents, and serves live sessions.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dlovans/formwork/internal/config"
	"github.com/dlovans/formwork/internal/server"
	"github.com/dlovans/formwork/internal/store"
	"github.com/dlovans/formwork/pkg/formwork"
	"github.com/dlovans/formwork/pkg/lint"
)

func main() {
	// Define flags
	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	runDate := runCmd.String("date", "", "Evaluation date (ISO 8601 format, defaults to now)")
	runFile := runCmd.String("file", "", "Input document (.json or .yaml, or use stdin for JSON)")

	verifyCmd := flag.NewFlagSet("verify", flag.ExitOnError)
	verifyPayload := verifyCmd.String("payload", "", "Submitted payload to verify")
	verifySchema := verifyCmd.String("schema", "", "Form schema the payload was submitted against")

	lintCmd := flag.NewFlagSet("lint", flag.ExitOnError)
	lintFile := lintCmd.String("file", "", "Form schema to lint (.json or .yaml)")

	serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
	serveConfig := serveCmd.String("config", "", "YAML config file")
	serveAddr := serveCmd.String("addr", "", "Listen address (overrides config)")
	serveForms := serveCmd.String("forms", "", "Directory of form documents (overrides config)")
	serveVerbose := serveCmd.Bool("verbose", false, "Development logging")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runCmd.Parse(os.Args[2:])
		handleRun(*runDate, *runFile)

	case "verify":
		verifyCmd.Parse(os.Args[2:])
		handleVerify(*verifyPayload, *verifySchema)

	case "lint":
		lintCmd.Parse(os.Args[2:])
		handleLint(*lintFile)

	case "serve":
		serveCmd.Parse(os.Args[2:])
		handleServe(*serveConfig, *serveAddr, *serveForms, *serveVerbose)

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("formwork - Schema-driven form runtime")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  formwork run [-date YYYY-MM-DD] [-file form.json]")
	fmt.Println("  formwork verify -payload submitted.json -schema form.json")
	fmt.Println("  formwork lint -file form.yaml")
	fmt.Println("  formwork serve [-config formwork.yaml] [-addr :8080] [-forms ./forms] [-verbose]")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  formwork run -date 2025-06-15 -file signup.json")
	fmt.Println("  cat signup.json | formwork run")
	fmt.Println("  formwork lint -file signup.yaml")
}

// readDocument loads a document as JSON text. YAML files are converted.
func readDocument(path string) (string, error) {
	if path == "" {
		input, err := io.ReadAll(os.Stdin)
		return string(input), err
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		input, err := os.ReadFile(path)
		return string(input), err
	}
	doc, err := formwork.LoadFile(path)
	if err != nil {
		return "", err
	}
	data, err := doc.MarshalIndent()
	return string(data), err
}

func handleRun(dateStr, filePath string) {
	// Parse date
	now := time.Now()
	if dateStr != "" {
		var err error
		now, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			now, err = time.Parse(time.RFC3339, dateStr)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: Invalid date format '%s'\n", dateStr)
				os.Exit(1)
			}
		}
	}

	input, err := readDocument(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}

	result, err := formwork.Run(input, now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(result)
}

func handleVerify(payloadPath, schemaPath string) {
	if payloadPath == "" || schemaPath == "" {
		fmt.Fprintln(os.Stderr, "Error: Both -payload and -schema flags are required")
		os.Exit(1)
	}

	payload, err := os.ReadFile(payloadPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading payload: %v\n", err)
		os.Exit(1)
	}

	schema, err := readDocument(schemaPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading schema: %v\n", err)
		os.Exit(1)
	}

	valid, err := formwork.Verify(string(payload), schema)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Verification failed: %v\n", err)
		os.Exit(1)
	}

	if valid {
		fmt.Println("✓ Payload verified: submission is legal")
	} else {
		fmt.Println("✗ Payload verification failed")
		os.Exit(1)
	}
}

func handleLint(filePath string) {
	input, err := readDocument(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}

	result, err := lint.Run(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lint error: %v\n", err)
		os.Exit(1)
	}

	if len(result.Issues) == 0 {
		fmt.Println("✓ No issues found")
		return
	}

	// Print issues
	for _, issue := range result.Issues {
		icon := "⚠"
		switch issue.Severity {
		case "error":
			icon = "✗"
		case "info":
			icon = "ℹ"
		}
		location := ""
		if issue.Field != "" {
			location = fmt.Sprintf(" [field: %s]", issue.Field)
		}
		if issue.Rule != "" {
			location += fmt.Sprintf(" [rule: %s]", issue.Rule)
		}
		fmt.Printf("%s %s%s: %s\n", icon, issue.Severity, location, issue.Message)
	}

	if !result.Valid {
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		z := zap.NewDevelopmentConfig()
		z.OutputPaths = []string{"stdout"}
		logger, err = z.Build()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.Sugar(), nil
}

func handleServe(configPath, addr, forms string, verbose bool) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if forms != "" {
		cfg.Schemas = forms
	}
	if verbose {
		cfg.Debug = true
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := server.NewRegistry()
	n, err := registry.LoadDir(cfg.Schemas)
	if err != nil {
		logger.Fatalw("loading forms", "dir", cfg.Schemas, "error", err)
	}
	logger.Infow("forms loaded", "dir", cfg.Schemas, "count", n)

	st, err := store.Open(ctx, cfg.DB, logger)
	if err != nil {
		logger.Fatalw("opening store", "error", err)
	}
	defer st.Close()

	if err := server.New(cfg, registry, st, logger).Run(ctx); err != nil {
		logger.Fatalw("server error", "error", err)
	}
}
