// Package character provides tutor persona management for tutorvox.
//
// A character bundles everything that shapes one tutor's behaviour: the system
// prompt driving the conversational model, the voice used for speech
// synthesis, and the prompt used to generate follow-up suggestions. Characters
// are defined in the YAML configuration file and resolved per request by ID;
// requests without a character fall back to the registry default.
//
// All registry operations are safe for concurrent use.
package character

import (
	"errors"
	"fmt"
)

// Character is the declarative format for defining a tutor persona.
type Character struct {
	// ID is the unique identifier used by clients to select this character.
	ID string `yaml:"id" json:"id"`

	// DisplayName is the character's human-readable name.
	DisplayName string `yaml:"display_name" json:"displayName"`

	// Description is a short free-text description shown in character pickers.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// VoiceID is the TTS provider voice used for this character's speech.
	VoiceID string `yaml:"voice_id" json:"voiceId"`

	// SystemPrompt drives the conversational model. It is injected as the
	// system message on every streaming completion for this character.
	SystemPrompt string `yaml:"system_prompt" json:"-"`

	// SuggestionsPrompt, when non-empty, overrides the default prompt used to
	// generate follow-up question suggestions after a response completes.
	SuggestionsPrompt string `yaml:"suggestions_prompt,omitempty" json:"-"`
}

// Validate checks a [Character] for required fields.
//
// Rules:
//   - ID must be non-empty.
//   - DisplayName must be non-empty.
//   - SystemPrompt must be non-empty.
func Validate(c Character) error {
	var errs []error

	if c.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if c.DisplayName == "" {
		errs = append(errs, errors.New("display_name must not be empty"))
	}
	if c.SystemPrompt == "" {
		errs = append(errs, fmt.Errorf("character %q: system_prompt must not be empty", c.ID))
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
