package menu

import (
	"fmt"
	"strings"
)

type OptionKind string

const (
	KindMessage OptionKind = "message"
	KindButton  OptionKind = "button"
)

// Option is one entry of a menu. Message options are delivered automatically
// in order; button options are numbered and selectable by the user.
type Option struct {
	Kind   OptionKind `json:"kind"`
	Text   string     `json:"text"`
	Target string     `json:"target,omitempty"`
}

// Menu is read-only reference data. Option order is significant: it defines
// both the numbering of buttons and the order messages are sent in.
type Menu struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
}

func (m *Menu) Messages() []Option {
	var out []Option
	for _, opt := range m.Options {
		if opt.Kind == KindMessage {
			out = append(out, opt)
		}
	}
	return out
}

func (m *Menu) Buttons() []Option {
	var out []Option
	for _, opt := range m.Options {
		if opt.Kind == KindButton {
			out = append(out, opt)
		}
	}
	return out
}

// ButtonByOrdinal resolves a 1-based selection. Only button options count
// toward the numbering; message options are skipped.
func (m *Menu) ButtonByOrdinal(n int) *Option {
	idx := 1
	for i := range m.Options {
		if m.Options[i].Kind != KindButton {
			continue
		}
		if idx == n {
			return &m.Options[i]
		}
		idx++
	}
	return nil
}

// RenderPrompt composes the interactive prompt: the formatted menu prompt
// followed by each button label prefixed with its ordinal.
func (m *Menu) RenderPrompt() string {
	var b strings.Builder
	b.WriteString(FormatEmphasis(m.Prompt))
	b.WriteString("\n")
	idx := 1
	for _, opt := range m.Options {
		if opt.Kind != KindButton {
			continue
		}
		fmt.Fprintf(&b, "%d. %s\n", idx, FormatEmphasis(opt.Text))
		idx++
	}
	return strings.TrimSpace(b.String())
}
