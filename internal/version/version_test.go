package version

import "testing"

func TestString(t *testing.T) {
	saved := []string{Version, GitSHA, BuildTime}
	defer func() { Version, GitSHA, BuildTime = saved[0], saved[1], saved[2] }()

	Version, GitSHA, BuildTime = "v0.1.0", "abc123", "2026-01-01T00:00:00Z"
	want := "v0.1.0 (git abc123, built 2026-01-01T00:00:00Z)"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
