package character

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned by Get when no character has the requested ID.
var ErrNotFound = errors.New("character: not found")

// Registry is a thread-safe, in-memory catalogue of tutor characters.
type Registry struct {
	mu         sync.RWMutex
	characters map[string]Character
	defaultID  string
	order      []string
}

// NewRegistry builds a registry from the given characters. defaultID selects
// the character used for requests that do not name one; when empty, the first
// character becomes the default. Every character must pass [Validate] and IDs
// must be unique.
func NewRegistry(characters []Character, defaultID string) (*Registry, error) {
	if len(characters) == 0 {
		return nil, errors.New("character: at least one character is required")
	}

	r := &Registry{
		characters: make(map[string]Character, len(characters)),
		order:      make([]string, 0, len(characters)),
	}
	for _, c := range characters {
		if err := Validate(c); err != nil {
			return nil, fmt.Errorf("character: invalid character %q: %w", c.ID, err)
		}
		if _, exists := r.characters[c.ID]; exists {
			return nil, fmt.Errorf("character: duplicate id %q", c.ID)
		}
		r.characters[c.ID] = c
		r.order = append(r.order, c.ID)
	}

	if defaultID == "" {
		defaultID = characters[0].ID
	}
	if _, ok := r.characters[defaultID]; !ok {
		return nil, fmt.Errorf("character: default id %q is not a defined character", defaultID)
	}
	r.defaultID = defaultID

	return r, nil
}

// Get returns the character with the given ID, or [ErrNotFound].
func (r *Registry) Get(id string) (Character, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.characters[id]
	if !ok {
		return Character{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return c, nil
}

// Resolve returns the character with the given ID, falling back to the
// default when id is empty. An unknown non-empty id is an error; silently
// substituting a different persona would be surprising.
func (r *Registry) Resolve(id string) (Character, error) {
	if id == "" {
		return r.Default(), nil
	}
	return r.Get(id)
}

// Default returns the registry's default character.
func (r *Registry) Default() Character {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.characters[r.defaultID]
}

// List returns all characters in definition order.
func (r *Registry) List() []Character {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Character, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.characters[id])
	}
	return out
}
