package dlerror

import (
	"errors"
	"testing"
)

func TestIsMatchesByKind(t *testing.T) {
	err := Wrap(Network, "connection reset", errors.New("read tcp: reset"))
	if !errors.Is(err, New(Network, "")) {
		t.Error("expected Network error to match Network sentinel")
	}
	if errors.Is(err, New(FileSystem, "")) {
		t.Error("expected Network error not to match FileSystem sentinel")
	}
}

func TestStateNotFoundSentinel(t *testing.T) {
	_, err := loadMissing()
	if !errors.Is(err, ErrStateNotFound) {
		t.Errorf("expected ErrStateNotFound, got %v", err)
	}
}

func loadMissing() (string, error) {
	return "", New(StateNotFound, "no state file at /tmp/x.state")
}

func TestFriendlyMessage(t *testing.T) {
	err := New(Integrity, "512/1024 bytes (1/2 chunks)")
	got := FriendlyMessage(err)
	if got == "" || got == err.Error() {
		t.Errorf("expected a friendlier rendering, got %q", got)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(errors.New("plain")) != "" {
		t.Error("expected empty Kind for a non-taxonomy error")
	}
	if KindOf(New(Config, "x")) != Config {
		t.Error("expected Config kind")
	}
}
