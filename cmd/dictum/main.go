// Command dictum is the dictation daemon and the CLI that drives it.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbright/dictum/internal/app"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one CLI invocation. SIGHUP from a closed terminal stops a
// foreground daemon the same way SIGINT and SIGTERM do.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	runner := app.Runner{Stdin: stdin, Stdout: stdout, Stderr: stderr}
	return runner.Execute(ctx, args)
}
