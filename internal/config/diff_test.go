package config_test

import (
	"testing"

	"github.com/MrWong99/tutorvox/internal/character"
	"github.com/MrWong99/tutorvox/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Characters: []character.Character{
			{ID: "fiona", DisplayName: "Fiona", VoiceID: "v1", SystemPrompt: "Be helpful."},
			{ID: "marcus", DisplayName: "Marcus", VoiceID: "v2", SystemPrompt: "Be stern."},
		},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()

	d := config.Diff(old, new)
	if d.CharactersChanged || d.LogLevelChanged {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Fatal("expected LogLevelChanged")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel: got %q, want %q", d.NewLogLevel, config.LogDebug)
	}
	if d.CharactersChanged {
		t.Error("characters should be unchanged")
	}
}

func TestDiff_PromptChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Characters[0].SystemPrompt = "Be extra helpful."

	d := config.Diff(old, new)
	if !d.CharactersChanged {
		t.Fatal("expected CharactersChanged")
	}
	if len(d.CharacterChanges) != 1 {
		t.Fatalf("expected 1 change, got %d", len(d.CharacterChanges))
	}
	cd := d.CharacterChanges[0]
	if cd.ID != "fiona" || !cd.PromptChanged {
		t.Errorf("unexpected change: %+v", cd)
	}
	if cd.VoiceChanged || cd.DisplayChanged {
		t.Errorf("only the prompt should be flagged: %+v", cd)
	}
}

func TestDiff_VoiceChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Characters[1].VoiceID = "v3"

	d := config.Diff(old, new)
	if !d.CharactersChanged {
		t.Fatal("expected CharactersChanged")
	}
	if len(d.CharacterChanges) != 1 || d.CharacterChanges[0].ID != "marcus" || !d.CharacterChanges[0].VoiceChanged {
		t.Errorf("unexpected changes: %+v", d.CharacterChanges)
	}
}

func TestDiff_AddedAndRemoved(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Characters = append(new.Characters[:1], character.Character{
		ID: "ada", DisplayName: "Ada", VoiceID: "v4", SystemPrompt: "Be precise.",
	})

	d := config.Diff(old, new)
	if !d.CharactersChanged {
		t.Fatal("expected CharactersChanged")
	}

	var added, removed bool
	for _, cd := range d.CharacterChanges {
		switch {
		case cd.ID == "ada" && cd.Added:
			added = true
		case cd.ID == "marcus" && cd.Removed:
			removed = true
		}
	}
	if !added {
		t.Error("expected ada to be reported as added")
	}
	if !removed {
		t.Error("expected marcus to be reported as removed")
	}
}
