// Package console implements the interactive menus over line-oriented
// input. Both consoles stop cleanly on the exit choice or end of input.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// errEOF signals end of input in the middle of a prompt sequence.
var errEOF = errors.New("end of input")

type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) prompter {
	return prompter{in: bufio.NewScanner(in), out: out}
}

func (p prompter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// ask prints label and returns the next line with surrounding space trimmed.
func (p prompter) ask(label string) (string, error) {
	p.printf("%s: ", label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", errEOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// askInt reads an integer; the second return is false (with a message
// already printed) when the line is not a number.
func (p prompter) askInt(label string) (int, bool, error) {
	s, err := p.ask(label)
	if err != nil {
		return 0, false, err
	}
	n, convErr := strconv.Atoi(s)
	if convErr != nil {
		p.printf("Invalid number %q.\n", s)
		return 0, false, nil
	}
	return n, true, nil
}

// done maps prompt errors to the loop result: end of input ends the session
// without error.
func done(err error) error {
	if errors.Is(err, errEOF) {
		return nil
	}
	return err
}
