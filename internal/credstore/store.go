// Package credstore persists credentials per target system, encrypted at
// rest with an age identity that belongs to the local user.
package credstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"filippo.io/age"
)

var (
	// ErrNotFound means no usable credential exists for the scope. It covers
	// missing files as well as files this user cannot decrypt.
	ErrNotFound = errors.New("credential not found")

	// ErrInvalidScope is returned for a scope with no letters or digits.
	ErrInvalidScope = errors.New("scope identifier is empty")
)

// ScopeEmail is the scope the mail account credential is stored under.
const ScopeEmail = "email"

const (
	fileExt      = ".cred"
	identityFile = "identity.key"
)

// Credential is a username and secret for one scope.
type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ScopeID derives the storage key for a host address by dropping every rune
// that is not a letter or digit. Addresses differing only in punctuation map
// to the same scope.
func ScopeID(host string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, host)
}

// Store reads and writes credential files in the directory its resolver
// points at. It is not safe for concurrent use by several processes.
type Store struct {
	resolver PathResolver
}

// New returns a Store rooted at the resolver's directory.
func New(resolver PathResolver) *Store {
	return &Store{resolver: resolver}
}

// Dir returns the credential directory, creating it if needed.
func (s *Store) Dir() (string, error) {
	dir, err := s.resolver.Dir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating credential directory: %w", err)
	}
	return dir, nil
}

// Path returns the file a scope's credential is stored in.
func (s *Store) Path(scope string) (string, error) {
	if scope == "" {
		return "", ErrInvalidScope
	}
	dir, err := s.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, scope+fileExt), nil
}

// Load returns the credential stored for scope. Anything that prevents the
// credential from being read back, short of a filesystem error, is reported
// as ErrNotFound so the caller re-prompts.
func (s *Store) Load(scope string) (Credential, error) {
	path, err := s.Path(scope)
	if err != nil {
		return Credential{}, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Credential{}, ErrNotFound
	}
	if err != nil {
		return Credential{}, fmt.Errorf("reading credential %s: %w", path, err)
	}

	identity, err := loadIdentity(filepath.Dir(path))
	if errors.Is(err, fs.ErrNotExist) {
		return Credential{}, fmt.Errorf("%w: no identity for %s", ErrNotFound, path)
	}
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	reader, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: decrypting %s: %v", ErrNotFound, path, err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: decrypting %s: %v", ErrNotFound, path, err)
	}

	var cred Credential
	if err := json.Unmarshal(plaintext, &cred); err != nil {
		return Credential{}, fmt.Errorf("%w: parsing %s: %v", ErrNotFound, path, err)
	}
	if cred.Username == "" {
		return Credential{}, fmt.Errorf("%w: %s has no username", ErrNotFound, path)
	}
	return cred, nil
}

// Save encrypts cred and writes it for scope, replacing any previous value.
func (s *Store) Save(scope string, cred Credential) error {
	path, err := s.Path(scope)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)

	identity, err := loadIdentity(dir)
	if err != nil {
		identity, err = createIdentity(dir)
		if err != nil {
			return err
		}
	}

	plaintext, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, identity.Recipient())
	if err != nil {
		return fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalizing age encryption: %w", err)
	}

	return writeFileAtomic(path, ciphertext.Bytes())
}

func loadIdentity(dir string) (*age.X25519Identity, error) {
	data, err := os.ReadFile(filepath.Join(dir, identityFile))
	if err != nil {
		return nil, err
	}
	identity, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing identity: %w", err)
	}
	return identity, nil
}

// createIdentity generates a fresh identity. Credentials encrypted to a
// previous identity become unreadable.
func createIdentity(dir string) (*age.X25519Identity, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age identity: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, identityFile), []byte(identity.String()+"\n")); err != nil {
		return nil, err
	}
	return identity, nil
}

// writeFileAtomic writes data to a 0600 temp file in the target directory
// and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil && !errors.Is(err, errors.ErrUnsupported) {
		tmp.Close()
		return fmt.Errorf("restricting %s: %w", tmp.Name(), err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}
