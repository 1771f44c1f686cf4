package registry

import (
	"testing"

	"fluxdl/internal/model"
)

func TestRegisterGetRemove(t *testing.T) {
	r := New()
	metadata := model.New("id-1", "https://example.com/a", "/tmp/a", 100, 4, []int64{0})
	control := model.NewControlBlock()

	r.Register(metadata, control)

	if _, ok := r.Metadata("id-1"); !ok {
		t.Fatal("expected metadata to be registered")
	}
	if _, ok := r.Control("id-1"); !ok {
		t.Fatal("expected control block to be registered")
	}

	r.Remove("id-1")
	if _, ok := r.Metadata("id-1"); ok {
		t.Fatal("expected metadata to be removed")
	}
	if _, ok := r.Control("id-1"); ok {
		t.Fatal("expected control block to be removed")
	}
}

func TestListReturnsAllRegistered(t *testing.T) {
	r := New()
	r.Register(model.New("a", "u", "p", 1, 1, nil), model.NewControlBlock())
	r.Register(model.New("b", "u", "p", 1, 1, nil), model.NewControlBlock())

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
}

func TestUpdateMetadataIgnoresUnknownID(t *testing.T) {
	r := New()
	r.UpdateMetadata("missing", model.New("missing", "u", "p", 1, 1, nil))
	if _, ok := r.Metadata("missing"); ok {
		t.Fatal("update should not register an unknown id")
	}
}
