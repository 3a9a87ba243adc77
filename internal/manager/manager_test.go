package manager_test

import (
	"testing"

	"framepipe/internal/config"
	"framepipe/internal/manager"
)

func TestOpenGetClose(t *testing.T) {
	m := manager.New(nil, config.Default())

	p := m.Open()
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}

	got, err := m.Get(p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != p.ID {
		t.Fatalf("Get returned a different pipeline")
	}

	if err := m.Close(p.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("Len after close = %d, want 0", m.Len())
	}
	if _, err := m.Get(p.ID); err != manager.ErrNotFound {
		t.Fatalf("Get after close = %v, want ErrNotFound", err)
	}
}

func TestCloseUnknownIDReturnsErrNotFound(t *testing.T) {
	m := manager.New(nil, config.Default())
	if err := m.Close([16]byte{}); err != manager.ErrNotFound {
		t.Fatalf("Close(unknown) = %v, want ErrNotFound", err)
	}
}

func TestCloseAllEmptiesRegistry(t *testing.T) {
	m := manager.New(nil, config.Default())
	m.Open()
	m.Open()
	m.Open()
	if m.Len() != 3 {
		t.Fatalf("Len = %d, want 3", m.Len())
	}

	m.CloseAll()
	if m.Len() != 0 {
		t.Fatalf("Len after CloseAll = %d, want 0", m.Len())
	}
}
