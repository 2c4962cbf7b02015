package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/linesmerrill/dispatch-board/notice"
)

// console is the terminal Notifier and Confirmer. Notices go to out,
// answers are read line by line from in.
type console struct {
	mu        sync.Mutex
	in        *bufio.Reader
	out       io.Writer
	assumeYes bool
}

func newConsole(in io.Reader, out io.Writer, assumeYes bool) *console {
	return &console{in: bufio.NewReader(in), out: out, assumeYes: assumeYes}
}

// Notify implements notice.Notifier
func (c *console) Notify(level notice.Level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "[%s] %s\n", level, message)
}

// Alert implements notice.Notifier
func (c *console) Alert(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "!! %s\n", message)
}

// Confirm implements notice.Confirmer. Anything but y or yes is a no.
func (c *console) Confirm(ctx context.Context, question string) (bool, error) {
	if c.assumeYes {
		c.mu.Lock()
		fmt.Fprintf(c.out, "%s [y/N] y\n", question)
		c.mu.Unlock()
		return true, nil
	}
	answer, err := c.ask(ctx, question+" [y/N] ")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

// ask prints prompt and returns the next trimmed input line
func (c *console) ask(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	fmt.Fprint(c.out, prompt)
	c.mu.Unlock()

	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		if errors.Is(err, io.EOF) && line != "" {
			err = nil
		}
		done <- result{strings.TrimSpace(line), err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		if errors.Is(r.err, io.EOF) {
			return "", nil
		}
		return r.line, r.err
	}
}
