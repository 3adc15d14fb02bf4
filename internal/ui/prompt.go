package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrAborted is returned when input ends before a valid answer.
var ErrAborted = errors.New("prompt aborted")

// Prompter asks questions on the package output and reads answers, one
// per line, from its input.
type Prompter struct {
	in *bufio.Reader
}

// NewPrompter reads answers from in.
func NewPrompter(in io.Reader) *Prompter {
	return &Prompter{in: bufio.NewReader(in)}
}

// Select lists options and returns the index of the chosen one. It asks
// again until the answer is a listed number.
func (p *Prompter) Select(label string, options []string) (int, error) {
	fmt.Fprintf(out, "\n  %s\n", s(bold, label))
	for i, opt := range options {
		fmt.Fprintf(out, "  %s %s\n", s(cyan, fmt.Sprintf("%2d)", i+1)), opt)
	}
	for {
		answer, err := p.ask()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		Warn("Pick a number between 1 and %d", len(options))
	}
}

// Uint asks for a positive whole number, repeating invalidMsg until one
// is given.
func (p *Prompter) Uint(label, invalidMsg string) (uint64, error) {
	fmt.Fprintf(out, "\n  %s\n", s(bold, label))
	for {
		answer, err := p.ask()
		if err != nil {
			return 0, err
		}
		n, err := strconv.ParseUint(answer, 10, 64)
		if err == nil && n > 0 {
			return n, nil
		}
		Warn("%s", invalidMsg)
	}
}

func (p *Prompter) ask() (string, error) {
	fmt.Fprintf(out, "  %s ", s(cyan, "›"))
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		fmt.Fprintln(out)
		return "", ErrAborted
	}
	return strings.TrimSpace(line), nil
}
