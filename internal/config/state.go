// ABOUTME: Persisted device state kept across restarts
// ABOUTME: Implements the recorder sequence store on a small YAML file
package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// State is the persisted device settings
type State struct {
	path string
	mu   sync.Mutex

	Channel  int    `yaml:"channel"`
	Muted    bool   `yaml:"muted"`
	Sequence uint32 `yaml:"tx_sequence"`
}

// LoadState reads path; a missing file yields zero state
func LoadState(path string) (*State, error) {
	s := &State{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read state file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	return s, nil
}

// Save writes the state atomically
func (s *State) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *State) saveLocked() error {
	if s.path == "" {
		return nil
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// LoadSequence returns the persisted next TX sequence
func (s *State) LoadSequence() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Sequence, nil
}

// SaveSequence persists the next TX sequence
func (s *State) SaveSequence(seq uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sequence = seq
	return s.saveLocked()
}

// SetChannel persists the selected channel
func (s *State) SetChannel(ch int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Channel = ch
	return s.saveLocked()
}

// SetMuted persists the mute flag
func (s *State) SetMuted(muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Muted = muted
	return s.saveLocked()
}
