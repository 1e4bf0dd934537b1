package config

import (
	"fmt"
	"strings"
	"unicode"
)

// splitCommand breaks a delivery command line into argv using /bin/sh word
// rules: single quotes are literal, double quotes keep backslash escapes for
// " \ $ and `, and a bare backslash escapes the next rune. A line starting
// with # is a disabled command.
func splitCommand(line string) ([]string, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}

	var (
		argv    []string
		word    strings.Builder
		inWord  bool
		runes   = []rune(line)
		dquoted = false
	)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\':
			if i+1 == len(runes) {
				return nil, fmt.Errorf("unterminated escape sequence in command: %q", line)
			}
			next := runes[i+1]
			if dquoted && !strings.ContainsRune("\"\\$`", next) {
				word.WriteRune(r)
				continue
			}
			word.WriteRune(next)
			inWord = true
			i++
		case dquoted:
			if r == '"' {
				dquoted = false
				continue
			}
			word.WriteRune(r)
		case r == '"':
			dquoted, inWord = true, true
		case r == '\'':
			end := strings.IndexRune(string(runes[i+1:]), '\'')
			if end < 0 {
				return nil, fmt.Errorf("unterminated quote in command: %q", line)
			}
			literal := string(runes[i+1:])[:end]
			word.WriteString(literal)
			inWord = true
			i += len([]rune(literal)) + 1
		case unicode.IsSpace(r):
			if inWord {
				argv = append(argv, word.String())
				word.Reset()
				inWord = false
			}
		default:
			word.WriteRune(r)
			inWord = true
		}
	}
	if dquoted {
		return nil, fmt.Errorf("unterminated quote in command: %q", line)
	}
	if inWord {
		argv = append(argv, word.String())
	}
	return argv, nil
}

// ShellQuote joins argv into one /bin/sh command line. Words that need it
// are single-quoted, so the line survives compositor exec bindings intact.
func ShellQuote(argv ...string) string {
	words := make([]string, len(argv))
	for i, arg := range argv {
		words[i] = quoteWord(arg)
	}
	return strings.Join(words, " ")
}

func quoteWord(arg string) string {
	if arg == "" {
		return "''"
	}
	safe := strings.IndexFunc(arg, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("-_./:=+@%", r))
	}) < 0
	if safe {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
