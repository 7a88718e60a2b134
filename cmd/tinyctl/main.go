// Command tinyctl drives a running TinyTools process over its named pipe.
//
//	tinyctl                  interactive console
//	tinyctl brightness 60    run one command and exit with its status
//	tinyctl < script.txt     run each line of a script
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"tinytools/internal/console"
	"tinytools/internal/ipc"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, in *os.File, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("tinyctl", flag.ContinueOnError)
	fs.SetOutput(errOut)
	pipe := fs.String("pipe", ipc.DefaultPipeName(), "pipe name of the TinyTools process")
	fs.Usage = func() {
		fmt.Fprintln(errOut, "Usage: tinyctl [--pipe name] [command [args...]]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	exec := console.Remote(*pipe)
	if fs.NArg() > 0 {
		return console.RunLine(exec, quoteArgs(fs.Args()), out, errOut)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	interactive := console.IsInteractive(in)
	opts := console.Options{In: in, Out: out, Err: errOut, Interactive: interactive}
	if interactive {
		opts.Startup = []string{"list"}
	}
	return console.Run(ctx, exec, opts)
}

// quoteArgs rebuilds a command line from already split shell arguments so
// that "Screen Dimmer" survives console.Split as one field.
func quoteArgs(args []string) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			quote := `"`
			if strings.Contains(a, `"`) {
				quote = "'"
			}
			a = quote + a + quote
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
