// Package prompt is the interactive surface of the engine. Everything the
// conflict loop asks an operator goes through the Prompter interface so the
// engine stays testable without a terminal.
package prompt

import "errors"

// ErrAborted reports that the operator backed out of a prompt (esc or
// ctrl-c) rather than answering it.
var ErrAborted = errors.New("prompt aborted")

// Option is one selectable entry in a menu.
type Option struct {
	// Label is shown to the operator.
	Label string

	// Value is returned when the option is chosen.
	Value string
}

// Opt builds an Option whose label and value are independent.
func Opt(label, value string) Option {
	return Option{Label: label, Value: value}
}

// Prompter asks the operator questions during conflict resolution.
type Prompter interface {
	// Select presents a menu and returns the chosen option's value.
	Select(title string, options []Option) (string, error)

	// Confirm asks a yes/no question.
	Confirm(title string, def bool) (bool, error)

	// Input asks for a single line of text.
	Input(title, placeholder string) (string, error)

	// Edit opens a multi-line editor pre-filled with initial content and
	// returns the edited text.
	Edit(title, initial string) (string, error)

	// MultiSelect presents a menu allowing several choices.
	MultiSelect(title string, options []Option) ([]string, error)

	// Show displays a block of content and returns once the operator has
	// seen it.
	Show(title, body string)
}
