package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"golang.org/x/term"

	"github.com/jos-todo/todosync/internal/model"
)

// interactive reports whether stdin and stdout are both terminals.
func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// choose asks the user to pick one of options (value, label pairs).
func choose(title string, options ...[2]string) (string, error) {
	opts := make([]huh.Option[string], 0, len(options))
	for _, o := range options {
		opts = append(opts, huh.NewOption(o[1], o[0]))
	}
	var picked string
	err := huh.NewSelect[string]().
		Title(title).
		Options(opts...).
		Value(&picked).
		Run()
	if err != nil {
		return "", err
	}
	return picked, nil
}

// confirm asks a yes/no question. Non-interactive sessions get false.
func confirm(title string) bool {
	if !interactive() {
		return false
	}
	var ok bool
	if err := huh.NewConfirm().Title(title).Value(&ok).Run(); err != nil {
		return false
	}
	return ok
}

// readSecret reads a line from stdin without echo when it is a terminal.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		var line string
		if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
			return "", fmt.Errorf("failed to read key: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

var dueParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDue accepts ISO timestamps and dates as well as phrases such as
// "tomorrow 5pm" or "next friday".
func parseDue(text string, now time.Time) (time.Time, error) {
	if t := model.ParseInstant(text); t != nil {
		return *t, nil
	}
	r, err := dueParser.Parse(text, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse due date %q: %w", text, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("unrecognised due date %q", text)
	}
	return r.Time.UTC(), nil
}
