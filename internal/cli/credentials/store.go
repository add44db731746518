// Package credentials stores GitHub tokens saved by `regsweep login`.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	// DefaultConfigDir is the directory under XDG_CONFIG_HOME holding regsweep state.
	DefaultConfigDir = "regsweep"
	// CredentialsFileName is the name of the stored-credentials file.
	CredentialsFileName = "credentials.json"
	// FilePermissions for the credentials file (read/write for owner only).
	FilePermissions = 0600
	// DirPermissions for config directories.
	DirPermissions = 0700
)

var (
	// ErrContextNotFound indicates no credentials are stored for the host.
	ErrContextNotFound = errors.New("no stored credentials for host")
	// ErrNotLoggedIn indicates no usable token exists.
	ErrNotLoggedIn = errors.New("not logged in - run 'regsweep login' first")
)

// Context holds the credentials stored for one API host.
// GitHub PATs carry no refresh flow, so a context is just the token and
// enough metadata to show who it belongs to.
type Context struct {
	APIURL   string    `json:"api_url"`
	Username string    `json:"username,omitempty"`
	Token    string    `json:"token"`
	SavedAt  time.Time `json:"saved_at,omitempty"`
}

// HasToken returns true if the context carries a token.
func (c *Context) HasToken() bool {
	return c.Token != ""
}

// credentialsFile is the on-disk layout: contexts keyed by API host.
type credentialsFile struct {
	Contexts map[string]*Context `json:"contexts"`
}

// Store manages credential storage and retrieval.
type Store struct {
	configPath string
	file       *credentialsFile
}

// NewStore creates a credential store backed by the default file location.
func NewStore() (*Store, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	store := &Store{
		configPath: configPath,
	}

	// Load existing file or start empty
	if err := store.load(); err != nil {
		if os.IsNotExist(err) {
			store.file = &credentialsFile{
				Contexts: make(map[string]*Context),
			}
		} else {
			return nil, err
		}
	}

	return store, nil
}

// getConfigPath returns the path to the credentials file.
func getConfigPath() (string, error) {
	// Use XDG_CONFIG_HOME if set, otherwise ~/.config
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}

	return filepath.Join(configHome, DefaultConfigDir, CredentialsFileName), nil
}

// load reads the credentials file from disk.
func (s *Store) load() error {
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		return err
	}

	s.file = &credentialsFile{}
	if err := json.Unmarshal(data, s.file); err != nil {
		return fmt.Errorf("corrupt credentials file %s: %w", s.configPath, err)
	}
	if s.file.Contexts == nil {
		s.file.Contexts = make(map[string]*Context)
	}
	return nil
}

// save writes the credentials file to disk.
func (s *Store) save() error {
	// Ensure directory exists
	dir := filepath.Dir(s.configPath)
	if err := os.MkdirAll(dir, DirPermissions); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(s.file, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.configPath, data, FilePermissions)
}

// Get returns the context stored for a host.
func (s *Store) Get(host string) (*Context, error) {
	ctx, ok := s.file.Contexts[host]
	if !ok {
		return nil, ErrContextNotFound
	}
	return ctx, nil
}

// Set stores or replaces the context for a host.
func (s *Store) Set(host string, ctx *Context) error {
	if s.file.Contexts == nil {
		s.file.Contexts = make(map[string]*Context)
	}
	s.file.Contexts[host] = ctx
	return s.save()
}

// Delete removes the context for a host (logout).
func (s *Store) Delete(host string) error {
	if _, ok := s.file.Contexts[host]; !ok {
		return ErrContextNotFound
	}
	delete(s.file.Contexts, host)
	return s.save()
}

// List returns every host with stored credentials, sorted.
func (s *Store) List() []string {
	hosts := make([]string, 0, len(s.file.Contexts))
	for host := range s.file.Contexts {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	return hosts
}

// TokenFor resolves the stored token for an API URL's host.
// Returns false when nothing usable is stored.
func (s *Store) TokenFor(apiURL string) (string, bool) {
	ctx, err := s.Get(ContextName(apiURL))
	if err != nil || !ctx.HasToken() {
		return "", false
	}
	return ctx.Token, true
}

// ConfigPath returns the path to the credentials file.
func (s *Store) ConfigPath() string {
	return s.configPath
}

// ContextName derives the context key from an API URL: its host.
// Falls back to "default" when the URL has no parseable host.
func ContextName(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return "default"
	}
	return u.Host
}
