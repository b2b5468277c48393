package character_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/tutorvox/internal/character"
)

func testCharacters() []character.Character {
	return []character.Character{
		{ID: "fiona", DisplayName: "Fiona", VoiceID: "v1", SystemPrompt: "You are Fiona."},
		{ID: "max", DisplayName: "Max", VoiceID: "v2", SystemPrompt: "You are Max."},
	}
}

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	t.Run("empty default falls back to first character", func(t *testing.T) {
		t.Parallel()
		r, err := character.NewRegistry(testCharacters(), "")
		if err != nil {
			t.Fatalf("NewRegistry: %v", err)
		}
		if got := r.Default().ID; got != "fiona" {
			t.Errorf("Default().ID = %q, want %q", got, "fiona")
		}
	})

	t.Run("explicit default", func(t *testing.T) {
		t.Parallel()
		r, err := character.NewRegistry(testCharacters(), "max")
		if err != nil {
			t.Fatalf("NewRegistry: %v", err)
		}
		if got := r.Default().ID; got != "max" {
			t.Errorf("Default().ID = %q, want %q", got, "max")
		}
	})

	t.Run("unknown default rejected", func(t *testing.T) {
		t.Parallel()
		if _, err := character.NewRegistry(testCharacters(), "ghost"); err == nil {
			t.Error("expected error for unknown default id")
		}
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		t.Parallel()
		chars := testCharacters()
		chars[1].ID = "fiona"
		if _, err := character.NewRegistry(chars, ""); err == nil {
			t.Error("expected error for duplicate id")
		}
	})

	t.Run("no characters rejected", func(t *testing.T) {
		t.Parallel()
		if _, err := character.NewRegistry(nil, ""); err == nil {
			t.Error("expected error for empty character list")
		}
	})
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	r, err := character.NewRegistry(testCharacters(), "fiona")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	t.Run("empty id yields default", func(t *testing.T) {
		t.Parallel()
		c, err := r.Resolve("")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if c.ID != "fiona" {
			t.Errorf("Resolve(\"\").ID = %q, want %q", c.ID, "fiona")
		}
	})

	t.Run("known id", func(t *testing.T) {
		t.Parallel()
		c, err := r.Resolve("max")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if c.DisplayName != "Max" {
			t.Errorf("DisplayName = %q, want %q", c.DisplayName, "Max")
		}
	})

	t.Run("unknown id is an error", func(t *testing.T) {
		t.Parallel()
		_, err := r.Resolve("ghost")
		if !errors.Is(err, character.ErrNotFound) {
			t.Errorf("Resolve(ghost) = %v, want ErrNotFound", err)
		}
	})
}

func TestRegistryList(t *testing.T) {
	t.Parallel()

	r, err := character.NewRegistry(testCharacters(), "")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	list := r.List()
	if len(list) != 2 {
		t.Fatalf("List() returned %d characters, want 2", len(list))
	}
	if list[0].ID != "fiona" || list[1].ID != "max" {
		t.Errorf("List() order = [%s %s], want [fiona max]", list[0].ID, list[1].ID)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := character.Character{ID: "x", DisplayName: "X", SystemPrompt: "prompt"}
	if err := character.Validate(valid); err != nil {
		t.Errorf("Validate(valid) = %v", err)
	}

	for _, tc := range []struct {
		name string
		mut  func(*character.Character)
	}{
		{"missing id", func(c *character.Character) { c.ID = "" }},
		{"missing display name", func(c *character.Character) { c.DisplayName = "" }},
		{"missing system prompt", func(c *character.Character) { c.SystemPrompt = "" }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := valid
			tc.mut(&c)
			if err := character.Validate(c); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	defaults := character.Defaults()
	if len(defaults) == 0 {
		t.Fatal("Defaults() returned no characters")
	}
	for _, c := range defaults {
		if err := character.Validate(c); err != nil {
			t.Errorf("default character %q fails validation: %v", c.ID, err)
		}
	}
}
