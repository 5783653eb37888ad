package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chzyer/readline"
	"golang.org/x/term"
)

// lineReader yields one line of user input per call. io.EOF ends the session.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// newLineReader uses readline with history when in is a terminal and a plain
// scanner otherwise, so scripts and tests can pipe input.
func newLineReader(in io.Reader, out io.Writer, historyFile string) (lineReader, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		rl, err := readline.NewEx(&readline.Config{
			Prompt:            "> ",
			HistoryFile:       historyFile,
			InterruptPrompt:   "^C",
			EOFPrompt:         "exit",
			HistorySearchFold: true,
			Stdin:             f,
			Stdout:            out,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize readline: %w", err)
		}
		return &readlineReader{rl: rl}, nil
	}
	return &scannerReader{sc: bufio.NewScanner(in), out: out}, nil
}

type readlineReader struct {
	rl *readline.Instance
}

func (r *readlineReader) ReadLine(prompt string) (string, error) {
	r.rl.SetPrompt(prompt)
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", io.EOF
	}
	return line, err
}

func (r *readlineReader) Close() error { return r.rl.Close() }

type scannerReader struct {
	sc  *bufio.Scanner
	out io.Writer
}

func (s *scannerReader) ReadLine(prompt string) (string, error) {
	fmt.Fprint(s.out, prompt)
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.sc.Text(), nil
}

func (s *scannerReader) Close() error { return nil }
