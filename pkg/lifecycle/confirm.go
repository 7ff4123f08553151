package lifecycle

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/core-tools/hsu-webllm/pkg/process"
)

// Confirmer decides whether the matched processes may be stopped.
type Confirmer interface {
	Confirm(ctx context.Context, matches []process.Match) (bool, error)
}

// FixedConfirmer always gives the same answer.
type FixedConfirmer bool

func (f FixedConfirmer) Confirm(ctx context.Context, matches []process.Match) (bool, error) {
	return bool(f), nil
}

// ConsoleConfirmer lists the matches and reads a yes/no answer.
type ConsoleConfirmer struct {
	In  io.Reader
	Out io.Writer
	// Prompt controls whether the list and question are written to Out.
	Prompt bool
}

// NewStdConsoleConfirmer prompts on stdout only when stdin is a terminal, so
// piped answers do not produce interactive noise.
func NewStdConsoleConfirmer() *ConsoleConfirmer {
	return &ConsoleConfirmer{
		In:     os.Stdin,
		Out:    os.Stdout,
		Prompt: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// Confirm accepts "y" or "yes" in any case. End of input, and anything else,
// is a refusal.
func (c *ConsoleConfirmer) Confirm(ctx context.Context, matches []process.Match) (bool, error) {
	if c.Prompt {
		fmt.Fprintf(c.Out, "Found %d WebLLM process(es):\n", len(matches))
		for _, m := range matches {
			fmt.Fprintf(c.Out, "  %s (PID: %d, %s)\n", m.Name, m.PID, m.Selector)
			if m.WorkingDirectory != "" {
				fmt.Fprintf(c.Out, "    working directory: %s\n", m.WorkingDirectory)
			}
		}
		fmt.Fprint(c.Out, "Do you want to stop these processes? (y/n): ")
	}

	answer := make(chan string, 1)
	readErr := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(c.In).ReadString('\n')
		if err != nil && err != io.EOF {
			readErr <- err
			return
		}
		answer <- line
	}()

	select {
	case <-ctx.Done():
		return false, nil
	case err := <-readErr:
		return false, err
	case line := <-answer:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}
