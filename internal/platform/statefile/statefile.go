// Package statefile persists the legacy single-instance bot state to one
// JSON file. Writes go to a temp file first and are renamed into place,
// so a crash mid-write cannot corrupt the file
package statefile

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	perr "stakegate/internal/platform/errors"
)

// Deadline is a pending challenge deadline that must survive a restart
type Deadline struct {
	ChallengeID    string    `json:"challenge_id"`
	InstallationID int64     `json:"installation_id"`
	RepoFullName   string    `json:"repo_full_name"`
	PRNumber       int       `json:"pr_number"`
	DeadlineAt     time.Time `json:"deadline_at"`
}

// RepoInstallation caches the installation owning a repository
type RepoInstallation struct {
	InstallationID int64  `json:"installation_id"`
	FullName       string `json:"full_name"`
}

// State is the full persisted document
type State struct {
	// Dedup maps delivery keys to their expiry instants
	Dedup map[string]time.Time `json:"dedup"`
	// Deadlines are pending challenge deadlines keyed by challenge id
	Deadlines map[string]Deadline `json:"deadlines"`
	// RepoInstallations is keyed by decimal github repo id
	RepoInstallations map[string]RepoInstallation `json:"repo_installations"`
}

func emptyState() State {
	return State{
		Dedup:             make(map[string]time.Time),
		Deadlines:         make(map[string]Deadline),
		RepoInstallations: make(map[string]RepoInstallation),
	}
}

// File is a mutex-guarded handle over the persisted state
type File struct {
	mu    sync.Mutex
	path  string
	state State
}

// Open loads the state file if it exists, else starts empty
func Open(path string) (*File, error) {
	f := &File{path: path, state: emptyState()}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return f, nil
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "read state file %s", path)
	}
	if err := json.Unmarshal(b, &f.state); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "decode state file %s", path)
	}
	// maps may be null in hand-edited or truncated files
	if f.state.Dedup == nil {
		f.state.Dedup = make(map[string]time.Time)
	}
	if f.state.Deadlines == nil {
		f.state.Deadlines = make(map[string]Deadline)
	}
	if f.state.RepoInstallations == nil {
		f.state.RepoInstallations = make(map[string]RepoInstallation)
	}
	return f, nil
}

// Update mutates the state under the lock and persists the result
func (f *File) Update(fn func(*State)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.state)
	return f.persist()
}

// View reads the state under the lock
func (f *File) View(fn func(State)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.state)
}

// persist writes temp-then-rename; callers hold the lock
func (f *File) persist() error {
	b, err := json.MarshalIndent(f.state, "", "  ")
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "encode state")
	}
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "create temp state file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "write temp state file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "close temp state file")
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "rename state file into place")
	}
	return nil
}
