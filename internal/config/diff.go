package config

import "github.com/MrWong99/tutorvox/internal/character"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	CharactersChanged bool            // true if any character prompt, voice, or display text changed
	CharacterChanges  []CharacterDiff // per-character diffs
	LogLevelChanged   bool
	NewLogLevel       LogLevel
}

// CharacterDiff describes what changed for a single character between two configs.
type CharacterDiff struct {
	ID             string
	PromptChanged  bool
	VoiceChanged   bool
	DisplayChanged bool
	Added          bool
	Removed        bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Build character lookup maps keyed by ID.
	oldChars := make(map[string]*character.Character, len(old.Characters))
	for i := range old.Characters {
		oldChars[old.Characters[i].ID] = &old.Characters[i]
	}
	newChars := make(map[string]*character.Character, len(new.Characters))
	for i := range new.Characters {
		newChars[new.Characters[i].ID] = &new.Characters[i]
	}

	// Detect modified and removed characters.
	for id, oldChar := range oldChars {
		newChar, exists := newChars[id]
		if !exists {
			d.CharacterChanges = append(d.CharacterChanges, CharacterDiff{
				ID:      id,
				Removed: true,
			})
			d.CharactersChanged = true
			continue
		}
		cd := diffCharacter(id, oldChar, newChar)
		if cd.PromptChanged || cd.VoiceChanged || cd.DisplayChanged {
			d.CharacterChanges = append(d.CharacterChanges, cd)
			d.CharactersChanged = true
		}
	}

	// Detect added characters.
	for id := range newChars {
		if _, exists := oldChars[id]; !exists {
			d.CharacterChanges = append(d.CharacterChanges, CharacterDiff{
				ID:    id,
				Added: true,
			})
			d.CharactersChanged = true
		}
	}

	return d
}

// diffCharacter compares two characters with the same ID.
func diffCharacter(id string, old, new *character.Character) CharacterDiff {
	cd := CharacterDiff{ID: id}

	if old.SystemPrompt != new.SystemPrompt || old.SuggestionsPrompt != new.SuggestionsPrompt {
		cd.PromptChanged = true
	}

	if old.VoiceID != new.VoiceID {
		cd.VoiceChanged = true
	}

	if old.DisplayName != new.DisplayName || old.Description != new.Description {
		cd.DisplayChanged = true
	}

	return cd
}
