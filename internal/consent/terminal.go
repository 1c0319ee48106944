package consent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// TerminalPrompter asks on a line-oriented terminal.
type TerminalPrompter struct {
	in  io.Reader
	out io.Writer
}

// NewTerminalPrompter creates a prompter reading from in and writing to out.
// Nil values use stdin and stderr.
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}
	return &TerminalPrompter{in: in, out: out}
}

// Prompt implements Prompter. Unreadable or unrecognized input is Defer.
func (p *TerminalPrompter) Prompt(ctx context.Context, req Request) (Decision, error) {
	_, _ = fmt.Fprintln(p.out, req.Headline())
	for _, line := range req.Details() {
		_, _ = fmt.Fprintln(p.out, "  "+line)
	}
	_, _ = fmt.Fprintln(p.out)
	_, _ = fmt.Fprintln(p.out, "  [1] Update Now")
	_, _ = fmt.Fprintln(p.out, "  [2] Later")
	_, _ = fmt.Fprintln(p.out, "  [3] Ignore This Version")
	_, _ = fmt.Fprint(p.out, "Choose [2]: ")

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := bufio.NewReader(p.in).ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		_, _ = fmt.Fprintln(p.out)
		return Defer, ctx.Err()
	case a := <-ch:
		if a.err != nil && a.line == "" {
			if a.err == io.EOF {
				return Defer, nil
			}
			return Defer, fmt.Errorf("read answer: %w", a.err)
		}
		return ParseAnswer(a.line), nil
	}
}

// ParseAnswer maps a typed answer to a decision.
func ParseAnswer(s string) Decision {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "u", "update", "update now", "y", "yes":
		return Approve
	case "3", "i", "ignore":
		return Ignore
	default:
		return Defer
	}
}
