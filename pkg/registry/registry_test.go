package registry

import (
	"fmt"
	"testing"
)

type stubProvider struct {
	model string
}

func TestBaseRegistry_Register(t *testing.T) {
	reg := NewBaseRegistry[stubProvider]()

	if err := reg.Register("docs", stubProvider{model: "all-MiniLM-L6-v2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.Register("", stubProvider{}); err == nil {
		t.Error("expected error for empty name")
	}
	if err := reg.Register("docs", stubProvider{model: "other"}); err == nil {
		t.Error("expected error for duplicate name")
	}
}

func TestBaseRegistry_Get(t *testing.T) {
	reg := NewBaseRegistry[stubProvider]()
	want := stubProvider{model: "jina-embeddings-v2-base-code"}
	if err := reg.Register("code", want); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	got, ok := reg.Get("code")
	if !ok {
		t.Fatal("expected provider to be found")
	}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	if _, ok := reg.Get("missing"); ok {
		t.Error("expected miss for unregistered name")
	}
}

func TestBaseRegistry_Names(t *testing.T) {
	reg := NewBaseRegistry[stubProvider]()
	for _, name := range []string{"qdrant", "docs", "code"} {
		if err := reg.Register(name, stubProvider{}); err != nil {
			t.Fatalf("register %s failed: %v", name, err)
		}
	}

	names := reg.Names()
	want := []string{"code", "docs", "qdrant"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected sorted names %v, got %v", want, names)
			break
		}
	}
}

func TestBaseRegistry_Concurrency(t *testing.T) {
	reg := NewBaseRegistry[stubProvider]()
	done := make(chan struct{}, 2)

	go func() {
		defer func() { done <- struct{}{} }()
		for i := 0; i < 100; i++ {
			_ = reg.Register(fmt.Sprintf("p%d", i), stubProvider{})
		}
	}()
	go func() {
		defer func() { done <- struct{}{} }()
		for i := 0; i < 100; i++ {
			reg.Get(fmt.Sprintf("p%d", i))
			reg.Names()
		}
	}()

	<-done
	<-done

	if got := len(reg.Names()); got != 100 {
		t.Errorf("expected 100 items after concurrent registration, got %d", got)
	}
}
