// package prompt collects one-time codes and second factors from the
// operator
//
// One Prompter serves every session in the process; a mutex keeps prompts
// serialized so concurrent logins never interleave their questions.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/castlebay/halcyon/internal/shared"
)

// Options configures a Prompter. Zero fields get working defaults.
type Options struct {
	Input       io.Reader // defaults to os.Stdin
	Output      io.Writer // defaults to os.Stderr
	Interactive bool      // render a text input instead of a plain line read
}

// Prompter asks the operator for a line of text. Safe for concurrent use;
// concurrent asks queue so only one prompt is visible at a time.
type Prompter struct {
	mu          sync.Mutex
	reader      *bufio.Reader
	out         io.Writer
	interactive bool
}

// New creates a Prompter from opts.
func New(opts Options) *Prompter {
	in := opts.Input
	if in == nil {
		in = os.Stdin
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return &Prompter{
		reader:      bufio.NewReader(in),
		out:         out,
		interactive: opts.Interactive,
	}
}

// Ask displays message and blocks for one line of input. Returns the line
// with surrounding whitespace trimmed.
func (p *Prompter) Ask(ctx context.Context, message string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.interactive {
		return p.askInput(ctx, message)
	}
	return p.askLine(ctx, message)
}

// Func adapts the prompter to the callback shape the auth sources take.
func (p *Prompter) Func() func(ctx context.Context, message string) (string, error) {
	return p.Ask
}

// askLine is the plain fallback used when no terminal UI is wanted: print
// the message, read one line.
func (p *Prompter) askLine(ctx context.Context, message string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", message)

	type lineResult struct {
		line string
		err  error
	}
	ch := make(chan lineResult, 1)
	go func() {
		line, err := p.reader.ReadString('\n')
		ch <- lineResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil && res.line == "" {
			if res.err == io.EOF {
				return "", fmt.Errorf("%w: input closed", shared.ErrPromptUnavailable)
			}
			return "", fmt.Errorf("reading prompt input: %w", res.err)
		}
		return strings.TrimSpace(res.line), nil
	}
}
