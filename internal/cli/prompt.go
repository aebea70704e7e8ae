package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/julianstephens/keepup/internal/validation"
)

// ErrAborted is returned when the user cancels a prompt
var ErrAborted = errors.New("aborted")

// Prompter collects input the flags did not provide
type Prompter interface {
	Interactive() bool
	// Credentials asks for a password, and for the email when it is empty
	Credentials(title, email string) (string, string, error)
	Habit(in *validation.HabitInput) error
	Confirm(title string) (bool, error)
}

// NewPrompter uses huh forms when in is a terminal and plain lines otherwise
func NewPrompter(in *os.File, out io.Writer) Prompter {
	if isatty.IsTerminal(in.Fd()) || isatty.IsCygwinTerminal(in.Fd()) {
		return formPrompter{}
	}
	return NewLinePrompter(in, out)
}

type formPrompter struct{}

func (formPrompter) Interactive() bool { return true }

func (formPrompter) Credentials(title, email string) (string, string, error) {
	var password string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(&email).
				Validate(notBlank("email")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&password).
				Validate(notBlank("password")),
		).Title(title),
	)
	if err := runForm(form); err != nil {
		return "", "", err
	}
	return email, password, nil
}

func (formPrompter) Habit(in *validation.HabitInput) error {
	if in.Frequency == "" {
		in.Frequency = "daily"
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				CharLimit(validation.MaxTitleLength).
				Value(&in.Title).
				Validate(notBlank("title")),
			huh.NewText().
				Title("Description").
				CharLimit(validation.MaxDescriptionLength).
				Value(&in.Description).
				Validate(notBlank("description")),
			huh.NewInput().
				Title("Frequency").
				Description("daily, weekly, monthly or every N days/weeks/months").
				Value(&in.Frequency),
		).Title("New habit"),
	)
	return runForm(form)
}

func (formPrompter) Confirm(title string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	)
	if err := runForm(form); err != nil {
		return false, err
	}
	return ok, nil
}

func runForm(form *huh.Form) error {
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrAborted
		}
		return fmt.Errorf("interactive form error: %w", err)
	}
	return nil
}

func notBlank(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// LinePrompter reads answers one per line, for piped input and tests
type LinePrompter struct {
	r   *bufio.Reader
	out io.Writer
}

func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{r: bufio.NewReader(in), out: out}
}

func (p *LinePrompter) Interactive() bool { return false }

func (p *LinePrompter) line() (string, error) {
	s, err := p.r.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		if err == io.EOF {
			return "", ErrAborted
		}
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func (p *LinePrompter) Credentials(_, email string) (string, string, error) {
	if email == "" {
		var err error
		if email, err = p.line(); err != nil {
			return "", "", err
		}
	}
	password, err := p.line()
	if err != nil {
		return "", "", err
	}
	return email, password, nil
}

// Habit leaves the input untouched; missing fields surface as validation errors
func (p *LinePrompter) Habit(*validation.HabitInput) error {
	return nil
}

func (p *LinePrompter) Confirm(title string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N] ", title)
	answer, err := p.line()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
