// Package filestore persists terminal client sessions in a JSON file keyed by profile.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
	"github.com/coursedesk/coursedesk/internal/ports"
)

var (
	_ ports.SessionRepository = (*SessionFile)(nil)
	_ ports.SessionAdmin      = (*SessionFile)(nil)
)

// SessionFile stores profile -> session in a single 0600 file.
type SessionFile struct {
	path string
	mu   sync.Mutex
}

// New returns a repository backed by path. The file is created on first Save.
func New(path string) *SessionFile {
	return &SessionFile{path: path}
}

// Path returns the backing file path.
func (f *SessionFile) Path() string { return f.path }

func (f *SessionFile) Save(_ context.Context, key string, sess domainauth.Session) error {
	if key == "" {
		return errors.New("profile cannot be empty")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.load()
	if err != nil {
		// Unreadable content is replaced.
		all = map[string]domainauth.Session{}
	}
	all[key] = sess
	return f.store(all)
}

func (f *SessionFile) Get(_ context.Context, key string) (domainauth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.load()
	if err != nil {
		return domainauth.Session{}, err
	}
	sess, ok := all[key]
	if !ok {
		return domainauth.Session{}, ports.ErrNotFound
	}
	return sess, nil
}

func (f *SessionFile) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.load()
	if err != nil {
		// A corrupt file holds no usable session.
		if rmErr := os.Remove(f.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return fmt.Errorf("remove session file: %w", rmErr)
		}
		return nil
	}
	if _, ok := all[key]; !ok {
		return nil
	}
	delete(all, key)
	return f.store(all)
}

func (f *SessionFile) List(_ context.Context) ([]ports.StoredSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.load()
	if err != nil {
		return nil, err
	}
	out := make([]ports.StoredSession, 0, len(all))
	for k, s := range all {
		out = append(out, ports.StoredSession{Key: k, Identity: s.Identity, ExpiresAt: s.ExpiresAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *SessionFile) Purge(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.load()
	if err != nil {
		all = nil
	}
	if rmErr := os.Remove(f.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		return 0, fmt.Errorf("remove session file: %w", rmErr)
	}
	return len(all), nil
}

func (f *SessionFile) load() (map[string]domainauth.Session, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]domainauth.Session{}, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}
	all := map[string]domainauth.Session{}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	return all, nil
}

func (f *SessionFile) store(all map[string]domainauth.Session) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}
