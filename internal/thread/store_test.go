package thread_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/tutorvox/internal/thread"
)

func TestDeriveTitle(t *testing.T) {
	t.Parallel()

	t.Run("short reply used verbatim", func(t *testing.T) {
		t.Parallel()
		if got := thread.DeriveTitle("Photosynthesis converts light."); got != "Photosynthesis converts light." {
			t.Errorf("DeriveTitle = %q", got)
		}
	})

	t.Run("truncated to 50 characters", func(t *testing.T) {
		t.Parallel()
		long := strings.Repeat("a", 80)
		got := thread.DeriveTitle(long)
		if len(got) != 50 {
			t.Errorf("len(DeriveTitle) = %d, want 50", len(got))
		}
		if got != long[:50] {
			t.Errorf("DeriveTitle = %q, want prefix of input", got)
		}
	})

	t.Run("empty reply falls back", func(t *testing.T) {
		t.Parallel()
		if got := thread.DeriveTitle(""); got != thread.DefaultTitle {
			t.Errorf("DeriveTitle(\"\") = %q, want %q", got, thread.DefaultTitle)
		}
	})

	t.Run("blank reply falls back", func(t *testing.T) {
		t.Parallel()
		if got := thread.DeriveTitle("   "); got != thread.DefaultTitle {
			t.Errorf("DeriveTitle = %q, want %q", got, thread.DefaultTitle)
		}
	})
}
