package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	huh "charm.land/huh/v2"
)

const (
	// maxMenuHeight caps how many menu rows a select renders before scrolling.
	maxMenuHeight = 12

	// editLines is the editor height for multi-line content.
	editLines = 16

	// editCharLimit bounds edited content. Conflicted source files are
	// occasionally large, so this is intentionally roomy.
	editCharLimit = 1 << 20
)

// Terminal implements Prompter with interactive terminal forms.
type Terminal struct {
	// Out receives non-interactive output from Show. Defaults to os.Stdout.
	Out io.Writer
}

// NewTerminal returns a Prompter bound to the controlling terminal.
func NewTerminal() *Terminal {
	return &Terminal{Out: os.Stdout}
}

func (t *Terminal) out() io.Writer {
	if t.Out != nil {
		return t.Out
	}
	return os.Stdout
}

func runField(field huh.Field) error {
	err := huh.NewForm(huh.NewGroup(field)).Run()
	if err != nil && errors.Is(err, huh.ErrUserAborted) {
		return ErrAborted
	}
	return err
}

func menuHeight(n int) int {
	if n+1 > maxMenuHeight {
		return maxMenuHeight
	}
	return n + 1
}

func (t *Terminal) Select(title string, options []Option) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("select %q: no options", title)
	}

	huhOptions := make([]huh.Option[string], len(options))
	for i, opt := range options {
		huhOptions[i] = huh.NewOption(opt.Label, opt.Value)
	}

	var value string
	field := huh.NewSelect[string]().
		Title(title).
		Options(huhOptions...).
		Height(menuHeight(len(options))).
		Value(&value)

	if err := runField(field); err != nil {
		return "", err
	}
	return value, nil
}

func (t *Terminal) Confirm(title string, def bool) (bool, error) {
	value := def
	field := huh.NewConfirm().
		Title(title).
		Value(&value)

	if err := runField(field); err != nil {
		return false, err
	}
	return value, nil
}

func (t *Terminal) Input(title, placeholder string) (string, error) {
	var value string
	field := huh.NewInput().
		Title(title).
		Placeholder(placeholder).
		Value(&value)

	if err := runField(field); err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func (t *Terminal) Edit(title, initial string) (string, error) {
	value := initial
	field := huh.NewText().
		Title(title).
		CharLimit(editCharLimit).
		Lines(editLines).
		Value(&value)

	if err := runField(field); err != nil {
		return "", err
	}
	return value, nil
}

func (t *Terminal) MultiSelect(title string, options []Option) ([]string, error) {
	if len(options) == 0 {
		return nil, fmt.Errorf("multi-select %q: no options", title)
	}

	huhOptions := make([]huh.Option[string], len(options))
	for i, opt := range options {
		huhOptions[i] = huh.NewOption(opt.Label, opt.Value)
	}

	var values []string
	field := huh.NewMultiSelect[string]().
		Title(title).
		Options(huhOptions...).
		Height(menuHeight(len(options))).
		Value(&values)

	if err := runField(field); err != nil {
		return nil, err
	}
	return values, nil
}

// Show prints a titled block of content, used for full conflict listings and
// proposed resolutions.
func (t *Terminal) Show(title, body string) {
	w := t.out()
	fmt.Fprintf(w, "\n%s\n%s\n", title, strings.Repeat("-", len(title)))
	fmt.Fprint(w, body)
	if !strings.HasSuffix(body, "\n") {
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}
