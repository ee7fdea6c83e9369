package prompter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// ErrNotInteractive is returned when stdin is not a terminal.
var ErrNotInteractive = errors.New("stdin is not a terminal")

var (
	in  io.Reader = os.Stdin
	out io.Writer = os.Stdout
	rd  *bufio.Reader
)

// SetIO redirects prompts, mainly for tests.
func SetIO(r io.Reader, w io.Writer) {
	in, out = r, w
	rd = bufio.NewReader(r)
}

func reader() *bufio.Reader {
	if rd == nil {
		rd = bufio.NewReader(in)
	}
	return rd
}

// Interactive reports whether stdin is attached to a terminal
func Interactive() bool {
	if f, ok := in.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return true
}

// PromptString prompts user for a string input
func PromptString(label string) (string, error) {
	fmt.Fprint(out, label)
	input, err := reader().ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// PromptPassword prompts user for a secret without echoing it
func PromptPassword(label string) (string, error) {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return PromptString(label)
	}

	fmt.Fprint(out, label)
	b, err := term.ReadPassword(int(f.Fd()))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(out)
	return string(b), nil
}

// PromptConfirm prompts user for yes/no confirmation
func PromptConfirm(label string) (bool, error) {
	input, err := PromptString(label + " (y/n) ")
	if err != nil {
		return false, err
	}
	response := strings.ToLower(input)
	return response == "y" || response == "yes", nil
}

// PromptSelect prompts user to select from options and returns the zero-based index
func PromptSelect(label string, options []string) (int, error) {
	fmt.Fprintln(out, label)
	for i, opt := range options {
		fmt.Fprintf(out, "%d) %s\n", i+1, opt)
	}

	input, err := PromptString("Select option: ")
	if err != nil {
		return -1, err
	}
	return parseSelection(input, len(options))
}

func parseSelection(input string, n int) (int, error) {
	selection, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return -1, fmt.Errorf("invalid selection %q", input)
	}
	if selection < 1 || selection > n {
		return -1, fmt.Errorf("invalid selection")
	}
	return selection - 1, nil
}
