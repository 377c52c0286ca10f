package tui

import (
	"errors"
	"strings"

	"flow-cli/internal/validate"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type formField struct {
	key   string
	label string
	input textinput.Model
}

// authForm is the login or signup form. err holds per-field and general messages from the last
// submit; editing a field clears that field's message and the general one.
type authForm struct {
	fields []formField
	focus  int
	err    *validate.FormError
	busy   bool
}

func newInput(placeholder string, password bool) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.Prompt = "> "
	in.CharLimit = 200
	in.Width = 40
	if password {
		in.EchoMode = textinput.EchoPassword
		in.EchoCharacter = '•'
	}
	return in
}

func newLoginForm() authForm {
	f := authForm{fields: []formField{
		{key: validate.FieldEmail, label: "Email", input: newInput("you@example.com", false)},
		{key: validate.FieldPassword, label: "Password", input: newInput("password", true)},
	}}
	f.setFocus(0)
	return f
}

func newSignupForm() authForm {
	f := authForm{fields: []formField{
		{key: validate.FieldName, label: "Name", input: newInput("Your name", false)},
		{key: validate.FieldEmail, label: "Email", input: newInput("you@example.com", false)},
		{key: validate.FieldPassword, label: "Password", input: newInput("at least 6 characters", true)},
	}}
	f.setFocus(0)
	return f
}

func (f *authForm) setFocus(i int) {
	n := len(f.fields)
	f.focus = ((i % n) + n) % n
	for j := range f.fields {
		if j == f.focus {
			f.fields[j].input.Focus()
		} else {
			f.fields[j].input.Blur()
		}
	}
}

func (f *authForm) onLastField() bool { return f.focus == len(f.fields)-1 }

func (f *authForm) value(key string) string {
	for _, fld := range f.fields {
		if fld.key == key {
			return fld.input.Value()
		}
	}
	return ""
}

// update feeds a key to the focused input.
func (f *authForm) update(msg tea.Msg) tea.Cmd {
	fld := &f.fields[f.focus]
	before := fld.input.Value()
	var cmd tea.Cmd
	fld.input, cmd = fld.input.Update(msg)
	if fld.input.Value() != before {
		f.err = f.err.Without(fld.key)
	}
	return cmd
}

// fail records a submit error.
func (f *authForm) fail(err error) {
	var fe *validate.FormError
	if errors.As(err, &fe) {
		f.err = fe
		return
	}
	f.err = &validate.FormError{General: err.Error()}
}

func (f *authForm) clearSecrets() {
	for i := range f.fields {
		if f.fields[i].key == validate.FieldPassword {
			f.fields[i].input.SetValue("")
		}
	}
}

func (f authForm) view(title, busyLabel, spin string) string {
	var b strings.Builder
	b.WriteString(styleTitle().Render(title))
	b.WriteString("\n\n")
	for i, fld := range f.fields {
		label := fld.label
		if i == f.focus {
			label = lipgloss.NewStyle().Bold(true).Render(label)
		}
		b.WriteString(label + "\n")
		b.WriteString(fld.input.View() + "\n")
		if msg := f.err.Field(fld.key); msg != "" {
			b.WriteString(styleError().Render(msg) + "\n")
		}
		b.WriteString("\n")
	}
	if f.err != nil && f.err.General != "" {
		b.WriteString(styleError().Render(f.err.General) + "\n")
	}
	if f.busy {
		b.WriteString(spin + " " + busyLabel + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
