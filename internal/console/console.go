// Package console is the line-oriented command shell shared by tinyctl and
// the tray process's --console mode. Commands are handed to an ipc.Executor,
// which is either the in-process router or a pipe client.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"tinytools/internal/ipc"
)

// Prompt is printed before each line in interactive sessions.
const Prompt = "tiny-tools> "

// maxLineBytes bounds one input line.
const maxLineBytes = 64 * 1024

// ErrUnterminatedQuote is returned by Split for a line with an open quote.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// Options configures Run.
type Options struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
	// Interactive prints the prompt and the startup banner.
	Interactive bool
	// Startup commands run before the first prompt, e.g. "list".
	Startup []string
}

// IsInteractive reports whether f is a terminal.
func IsInteractive(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Run reads commands until "exit", "quit", end of input or ctx
// cancellation. It returns 1 when the last command failed and 0 otherwise,
// so piped scripts can check the result.
func Run(ctx context.Context, exec ipc.Executor, opts Options) int {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Err == nil {
		opts.Err = opts.Out
	}
	if opts.Interactive {
		fmt.Fprintln(opts.Out, "Type 'help' for available commands")
	}
	last := 0
	for _, line := range opts.Startup {
		last = RunLine(exec, line, opts.Out, opts.Err)
	}
	if opts.In == nil {
		return last
	}

	scanner := bufio.NewScanner(opts.In)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	for {
		if ctx.Err() != nil {
			return last
		}
		if opts.Interactive {
			fmt.Fprint(opts.Out, Prompt)
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				fmt.Fprintf(opts.Err, "read input: %v\n", err)
				return 1
			}
			return last
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if isExit(line) {
			return last
		}
		last = RunLine(exec, line, opts.Out, opts.Err)
	}
}

// RunLine splits one command line, executes it and prints the response.
// It returns the response exit code.
func RunLine(exec ipc.Executor, line string, out, errOut io.Writer) int {
	fields, err := Split(line)
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 1
	}
	if len(fields) == 0 {
		return 0
	}
	resp := exec.Execute(ipc.Request{
		Command: strings.ToLower(fields[0]),
		Args:    fields[1:],
	})
	writeText(out, resp.Stdout)
	writeText(errOut, resp.Stderr)
	return resp.ExitCode
}

func writeText(w io.Writer, text string) {
	if text == "" {
		return
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	fmt.Fprint(w, text)
}

func isExit(line string) bool {
	switch strings.ToLower(line) {
	case "exit", "quit":
		return true
	}
	return false
}

// Split breaks a command line into fields. Double or single quotes group
// words so module names with spaces can be passed as one argument.
// Backslashes are literal because device names look like \\.\DISPLAY1.
func Split(line string) ([]string, error) {
	var (
		fields  []string
		current strings.Builder
		inField bool
		quote   rune
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inField = true
		case r == ' ' || r == '\t':
			if inField {
				fields = append(fields, current.String())
				current.Reset()
				inField = false
			}
		default:
			current.WriteRune(r)
			inField = true
		}
	}
	if quote != 0 {
		return nil, ErrUnterminatedQuote
	}
	if inField {
		fields = append(fields, current.String())
	}
	return fields, nil
}
