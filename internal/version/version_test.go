package version

import "testing"

func TestString(t *testing.T) {
	oldV, oldC, oldD := Version, Commit, Date
	defer func() { Version, Commit, Date = oldV, oldC, oldD }()

	Version, Commit, Date = "1.2.0", "abc123", "2024-03-01T00:00:00Z"
	if got, want := String(), "todo-man 1.2.0+abc123 (2024-03-01T00:00:00Z)"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
