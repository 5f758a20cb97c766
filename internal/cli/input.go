package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// readLine prints prompt and reads one trimmed line. A final line without a
// newline is returned as is.
func (a *App) readLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(a.out, prompt)
	}
	line, err := a.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// password prompts for a password, without echo when reading from a terminal.
func (a *App) password(prompt string) (string, error) {
	if a.readPassword == nil {
		return a.readLine(prompt)
	}
	fmt.Fprint(a.out, prompt)
	pw, err := a.readPassword()
	fmt.Fprintln(a.out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// value returns v, or prompts for it when empty.
func (a *App) value(v, prompt string) (string, error) {
	if strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), nil
	}
	return a.readLine(prompt)
}
