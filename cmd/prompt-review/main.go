// Command prompt-review walks an operator through the prompts the safety
// gateway logged for review and appends the approved ones to its allow-list.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/upb/prompt-review/app"
	"github.com/upb/prompt-review/config"
	"github.com/upb/prompt-review/internal/observability"
	"github.com/upb/prompt-review/services"
	"go.uber.org/zap"
)

const (
	exitOK      = 0
	exitFailure = 1
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := guard(os.Stderr, func() int {
		return run(ctx, os.Stdin, os.Stdout, os.Stderr)
	})
	stop()
	os.Exit(code)
}

// guard turns a panic into a short diagnostic and a failure exit code
func guard(stderr io.Writer, fn func() int) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stderr, "\nError: unexpected failure: %v\n", r)
			code = exitFailure
		}
	}()
	return fn()
}

func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := config.New(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", zap.Error(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer func() {
		if err := deps.Close(context.Background()); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	session := deps.NewSession(stdin, stdout)
	_, err = session.Run(ctx)
	return exitCode(err, stdout, stderr)
}

// exitCode maps a session result to the process exit code. Nothing to review
// and an operator interrupt are normal endings.
func exitCode(err error, stdout, stderr io.Writer) int {
	switch {
	case err == nil:
		return exitOK
	case services.IsNothingToReview(err):
		return exitOK
	case services.IsInterruptedError(err):
		fmt.Fprintln(stdout, "\n\nReview cancelled by user")
		return exitOK
	default:
		fmt.Fprintf(stderr, "\nError: %v\n", err)
		return exitFailure
	}
}
