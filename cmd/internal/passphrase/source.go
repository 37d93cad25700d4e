package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// EnvKeystorePass is the variable consulted before prompting.
const EnvKeystorePass = "RATEMINT_KEYSTORE_PASS"

// Source resolves a keystore passphrase from an environment variable or by
// prompting on the terminal. The first successful result is cached.
type Source struct {
	envVar string
	prompt string
	out    io.Writer

	lookupEnv  func(string) (string, bool)
	isTerminal func() bool
	readSecret func() ([]byte, error)

	once  sync.Once
	value string
	err   error
}

// NewSource constructs a source that checks envVar before prompting with
// prompt on stderr.
func NewSource(envVar, prompt string) *Source {
	if strings.TrimSpace(prompt) == "" {
		prompt = "Enter keystore passphrase: "
	}
	fd := int(os.Stdin.Fd())
	return &Source{
		envVar:     strings.TrimSpace(envVar),
		prompt:     prompt,
		out:        os.Stderr,
		lookupEnv:  os.LookupEnv,
		isTerminal: func() bool { return term.IsTerminal(fd) },
		readSecret: func() ([]byte, error) { return term.ReadPassword(fd) },
	}
}

// Get returns the cached passphrase or resolves it on first use. An env value
// is used verbatim; whitespace-only passphrases are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := s.lookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}

		if !s.isTerminal() {
			if s.envVar != "" {
				s.err = fmt.Errorf("keystore passphrase required; set %s or run interactively", s.envVar)
			} else {
				s.err = errors.New("keystore passphrase required and no terminal available")
			}
			return
		}

		fmt.Fprint(s.out, s.prompt)
		bytes, err := s.readSecret()
		fmt.Fprintln(s.out)
		if err != nil {
			s.err = fmt.Errorf("failed to read passphrase: %w", err)
			return
		}

		passphrase := string(bytes)
		if strings.TrimSpace(passphrase) == "" {
			s.err = errors.New("keystore passphrase cannot be empty")
			return
		}
		s.value = passphrase
	})

	return s.value, s.err
}
