// Package refine post-processes transcripts with a chat model.
package refine

import (
	"fmt"
	"strings"
)

// Mode selects the rewrite instruction.
type Mode string

const (
	SpellingFix    Mode = "spelling-fix"
	FormalTone     Mode = "formal-tone"
	ConciseRewrite Mode = "concise-rewrite"
	CustomPrompt   Mode = "custom-prompt"
)

// Modes lists every mode in menu order.
func Modes() []Mode {
	return []Mode{SpellingFix, FormalTone, ConciseRewrite, CustomPrompt}
}

// ParseMode accepts the canonical name or its title, case-insensitively.
func ParseMode(raw string) (Mode, error) {
	needle := strings.ToLower(strings.TrimSpace(raw))
	for _, m := range Modes() {
		if needle == string(m) || needle == strings.ToLower(m.Title()) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown refinement mode %q", raw)
}

// Title is the human label.
func (m Mode) Title() string {
	switch m {
	case SpellingFix:
		return "Spelling Fix"
	case FormalTone:
		return "Formal Tone"
	case ConciseRewrite:
		return "Concise Rewrite"
	case CustomPrompt:
		return "Custom Prompt"
	default:
		return string(m)
	}
}

// Instruction is the task sentence sent to the model.
func (m Mode) Instruction() string {
	switch m {
	case SpellingFix:
		return "Correct spelling and punctuation mistakes while preserving the original meaning and mixed Chinese/English terms."
	case FormalTone:
		return "Rewrite the text in a professional and formal tone. Keep the original meaning."
	case ConciseRewrite:
		return "Rewrite the text to be concise and clear while preserving meaning."
	default:
		return "Refine the text."
	}
}

// SystemPrompt assembles the system message. customization is honored for
// spelling fixes; for custom-prompt mode it becomes the task itself.
func SystemPrompt(mode Mode, languageHint, customization string) string {
	var b strings.Builder
	b.WriteString("You are a text post-processor for speech transcription. Preserve meaning, names, and bilingual Chinese/English terms. Output only the rewritten text.")

	if hint := strings.TrimSpace(languageHint); hint != "" {
		fmt.Fprintf(&b, " Preferred language hint: %s.", hint)
	}

	custom := strings.TrimSpace(customization)
	task := mode.Instruction()
	switch {
	case mode == SpellingFix && custom != "":
		fmt.Fprintf(&b, " User customization (must follow when applicable, especially for names/terms): %s", custom)
	case mode == CustomPrompt && custom != "":
		task = custom
	}

	fmt.Fprintf(&b, " Task: %s", task)
	return b.String()
}
