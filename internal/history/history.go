// Package history keeps registered users and their question history in a JSON file.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnknownUser        = errors.New("unknown user")

	// ErrInvalidPassword is returned for empty passwords and those longer than bcrypt accepts.
	ErrInvalidPassword = fmt.Errorf("password must be between 1 and %d bytes", maxPasswordBytes)
)

const maxPasswordBytes = 72

// Source is a compact reference to a chunk an answer drew on.
type Source struct {
	SourceID string  `json:"source_id"`
	Position int     `json:"position"`
	Distance float64 `json:"distance"`
	Snippet  string  `json:"snippet"`
}

// Entry is one answered question.
type Entry struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	Sources   []Source  `json:"sources"`
	CreatedAt time.Time `json:"created_at"`
}

type user struct {
	PasswordHash string  `json:"password_hash"`
	History      []Entry `json:"history"`
}

type document struct {
	Users map[string]*user `json:"users"`
}

// Store is safe for concurrent use. Every mutation rewrites the file.
type Store struct {
	mu   sync.Mutex
	path string
	doc  document
	cost int
	now  func() time.Time
}

// Open loads the store at path. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path, doc: document{Users: map[string]*user{}}, cost: bcrypt.DefaultCost, now: time.Now}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("history %s: %w", path, err)
	}
	if s.doc.Users == nil {
		s.doc.Users = map[string]*user{}
	}
	return s, nil
}

func normalize(username string) string { return strings.TrimSpace(username) }

// Register stores a new user with a bcrypt hash of password.
func (s *Store) Register(username, password string) error {
	username = normalize(username)
	if username == "" {
		return errors.New("username is required")
	}
	if password == "" || len(password) > maxPasswordBytes {
		return ErrInvalidPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.Users[username]; ok {
		return ErrUserExists
	}
	s.doc.Users[username] = &user{PasswordHash: string(hash)}
	return s.save()
}

// Authenticate checks password against the stored hash.
func (s *Store) Authenticate(username, password string) error {
	s.mu.Lock()
	u, ok := s.doc.Users[normalize(username)]
	var hash []byte
	if ok {
		hash = []byte(u.PasswordHash)
	}
	s.mu.Unlock()
	if !ok {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Append records e for username, filling ID and CreatedAt when unset.
func (s *Store) Append(username string, e Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.doc.Users[normalize(username)]
	if !ok {
		return Entry{}, ErrUnknownUser
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	u.History = append(u.History, e)
	return e, s.save()
}

// List returns the user's entries, oldest first.
func (s *Store) List(username string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.doc.Users[normalize(username)]
	if !ok {
		return nil, ErrUnknownUser
	}
	return append([]Entry(nil), u.History...), nil
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
