package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/BurntSushi/toml"
)

// Store is a grouped key-value settings store.
type Store interface {
	String(group, key, def string) string
	Uint(group, key string, def uint32) uint32
	SetString(group, key, value string)
	SetUint(group, key string, value uint32)
}

// Settings хранит настройки по группам и сохраняет их в TOML файл.
type Settings struct {
	mu     sync.RWMutex
	groups map[string]map[string]interface{}
}

// NewSettings конструктор пустого хранилища.
func NewSettings() *Settings {
	return &Settings{groups: map[string]map[string]interface{}{}}
}

// LoadSettings reads a settings file. A missing file yields an empty store.
func LoadSettings(path string) (*Settings, error) {
	s := NewSettings()
	if _, err := toml.DecodeFile(path, &s.groups); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("failed to read settings %s: %w", path, err)
	}
	return s, nil
}

// Save writes all groups to path.
func (s *Settings) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create settings %s: %w", path, err)
	}
	if err := s.write(f); err != nil {
		return fmt.Errorf("failed to write settings %s: %w", path, err)
	}
	return nil
}

// write encodes all groups to w and closes it. A failed Close is reported
// since it may be the flush that failed.
func (s *Settings) write(w io.WriteCloser) error {
	if err := toml.NewEncoder(w).Encode(s.groups); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (s *Settings) value(group, key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[group]
	if !ok {
		return nil, false
	}
	v, ok := g[key]
	return v, ok
}

func (s *Settings) set(group, key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[group]
	if !ok {
		g = map[string]interface{}{}
		s.groups[group] = g
	}
	g[key] = value
}

func (s *Settings) String(group, key, def string) string {
	v, ok := s.value(group, key)
	if !ok {
		return def
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

// Uint returns def when the key is absent or does not hold an integer
// in the uint32 range.
func (s *Settings) Uint(group, key string, def uint32) uint32 {
	v, ok := s.value(group, key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int64:
		if n >= 0 && n <= math.MaxUint32 {
			return uint32(n)
		}
	case int:
		if n >= 0 && int64(n) <= math.MaxUint32 {
			return uint32(n)
		}
	case uint32:
		return n
	}
	return def
}

func (s *Settings) SetString(group, key, value string) {
	s.set(group, key, value)
}

// SetUint stores value as int64, the integer type TOML decodes to.
func (s *Settings) SetUint(group, key string, value uint32) {
	s.set(group, key, int64(value))
}
