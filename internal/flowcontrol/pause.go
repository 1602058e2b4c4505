package flowcontrol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// Pauser suspends execution at PauseBefore/PauseAfter.
type Pauser interface {
	Pause(ctx context.Context, message string) error
}

// NoopPauser ignores pauses. It is used for non-interactive runs.
type NoopPauser struct {
	Logger *zerolog.Logger
}

// Pause logs the request and returns immediately.
func (p NoopPauser) Pause(_ context.Context, message string) error {
	if p.Logger != nil {
		p.Logger.Debug().Str("pause", message).Msg("pause ignored in non-interactive mode")
	}
	return nil
}

// PromptPauser prints a message and waits for a line of input. It is safe
// for concurrent use: one pause is active at a time and every read goes
// through a single reader goroutine.
type PromptPauser struct {
	in  *bufio.Reader
	out io.Writer

	mu       sync.Mutex
	start    sync.Once
	requests chan struct{}
	lines    chan error
	waiting  bool
	closed   bool
	closeErr error
}

// NewPromptPauser creates a PromptPauser reading from in and writing to out.
func NewPromptPauser(in io.Reader, out io.Writer) *PromptPauser {
	return &PromptPauser{
		in:       bufio.NewReader(in),
		out:      out,
		requests: make(chan struct{}, 1),
		lines:    make(chan error, 1),
	}
}

// Pause blocks until Enter is pressed or ctx is canceled. A line requested
// by a canceled pause is handed to the next one. Once input is exhausted,
// pauses return immediately.
func (p *PromptPauser) Pause(ctx context.Context, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return p.closeErr
	}
	if _, err := fmt.Fprintf(p.out, "%s: press Enter to continue ", message); err != nil {
		return err
	}

	if !p.waiting {
		p.start.Do(func() { go p.readLines() })
		p.requests <- struct{}{}
		p.waiting = true
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-p.lines:
		p.waiting = false
		if err == nil {
			return nil
		}
		p.closed = true
		if !errors.Is(err, io.EOF) {
			p.closeErr = err
		}
		return p.closeErr
	}
}

// readLines reads one line per request until the input fails.
func (p *PromptPauser) readLines() {
	for range p.requests {
		_, err := p.in.ReadString('\n')
		p.lines <- err
		if err != nil {
			return
		}
	}
}

var (
	_ Pauser = NoopPauser{}
	_ Pauser = (*PromptPauser)(nil)
)
