// Package prompt asks the operator for credentials on the terminal.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/example/vmdisk-report/internal/credstore"
)

// ErrNoTerminal is returned when a prompt is needed but stdin is not a
// terminal, e.g. when the tool runs from a scheduler with no stored
// credential.
var ErrNoTerminal = errors.New("no terminal available for interactive credential prompt")

// Prompter obtains a credential from the operator.
type Prompter interface {
	Credential(ctx context.Context, label string) (credstore.Credential, error)
}

// Terminal prompts on a terminal. The password is read with echo disabled.
type Terminal struct {
	In  *os.File
	Out io.Writer

	isTerminal   func(fd int) bool
	readPassword func(fd int) ([]byte, error)
}

// NewTerminal returns a prompter bound to stdin and stderr.
func NewTerminal() *Terminal {
	return &Terminal{
		In:           os.Stdin,
		Out:          os.Stderr,
		isTerminal:   term.IsTerminal,
		readPassword: term.ReadPassword,
	}
}

func (t *Terminal) Credential(ctx context.Context, label string) (credstore.Credential, error) {
	fd := int(t.In.Fd())
	if !t.isTerminal(fd) {
		return credstore.Credential{}, ErrNoTerminal
	}
	if err := ctx.Err(); err != nil {
		return credstore.Credential{}, err
	}

	fmt.Fprintf(t.Out, "Credentials for %s\n", label)
	fmt.Fprint(t.Out, "Username: ")
	username, err := readLine(t.In)
	if err != nil {
		return credstore.Credential{}, fmt.Errorf("reading username: %w", err)
	}
	if username == "" {
		return credstore.Credential{}, fmt.Errorf("username cannot be empty")
	}

	fmt.Fprint(t.Out, "Password: ")
	password, err := t.readPassword(fd)
	fmt.Fprintln(t.Out)
	if err != nil {
		return credstore.Credential{}, fmt.Errorf("reading password: %w", err)
	}

	return credstore.Credential{Username: username, Password: string(password)}, nil
}

// readLine reads up to the next newline without buffering past it, so the
// password read that follows still sees its input.
func readLine(r io.Reader) (string, error) {
	var b strings.Builder
	one := make([]byte, 1)
	for {
		n, err := r.Read(one)
		if n == 1 {
			if one[0] == '\n' {
				break
			}
			b.WriteByte(one[0])
		}
		if err == io.EOF {
			if b.Len() == 0 {
				return "", io.ErrUnexpectedEOF
			}
			break
		}
		if err != nil {
			return "", err
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// Static returns fixed credentials; used for non-interactive runs and tests.
type Static map[string]credstore.Credential

func (s Static) Credential(_ context.Context, label string) (credstore.Credential, error) {
	cred, ok := s[label]
	if !ok {
		return credstore.Credential{}, ErrNoTerminal
	}
	return cred, nil
}
