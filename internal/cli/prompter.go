package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// StdPrompter asks yes/no questions on stdin/stdout, the console
// equivalent used whenever an apply run is marked interactive.
type StdPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewStdPrompter builds a prompter reading from in and writing to out.
func NewStdPrompter(in io.Reader, out io.Writer) *StdPrompter {
	return &StdPrompter{in: bufio.NewReader(in), out: out}
}

// Confirm asks question, appending a [Y/n] or [y/N] hint depending on
// defaultYes, and returns defaultYes on a bare Enter or unparsable input.
func (p *StdPrompter) Confirm(question string, defaultYes bool) bool {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}
	fmt.Fprintf(p.out, "%s %s ", question, hint)
	line, _ := p.in.ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	switch line {
	case "":
		return defaultYes
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return defaultYes
	}
}
