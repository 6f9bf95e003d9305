package common

import (
	"errors"
	"strings"
	"sync"
)

// ErrModulePaused is returned by Guard when the module has been paused.
var ErrModulePaused = errors.New("module paused")

// PauseView exposes the pause toggles consulted before state mutations.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the module is paused. A nil view or empty module
// name never blocks.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// PauseSet is an in-process PauseView whose toggles can be flipped at runtime.
type PauseSet struct {
	mu     sync.RWMutex
	paused map[string]bool
}

// NewPauseSet returns a PauseSet with the supplied modules paused.
func NewPauseSet(modules ...string) *PauseSet {
	set := &PauseSet{paused: make(map[string]bool)}
	for _, module := range modules {
		set.Set(module, true)
	}
	return set
}

// Set toggles the pause flag for module.
func (s *PauseSet) Set(module string, paused bool) {
	module = strings.ToLower(strings.TrimSpace(module))
	if s == nil || module == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused == nil {
		s.paused = make(map[string]bool)
	}
	if paused {
		s.paused[module] = true
		return
	}
	delete(s.paused, module)
}

// IsPaused implements PauseView.
func (s *PauseSet) IsPaused(module string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused[strings.ToLower(strings.TrimSpace(module))]
}
