package registry

import (
	"fmt"
	"testing"
)

func TestBaseRegistry_RegisterAndGet(t *testing.T) {
	r := NewBaseRegistry[int]()

	if err := r.Register("one", 1); err != nil {
		t.Fatalf("Register() error = %v, want nil", err)
	}

	got, ok := r.Get("one")
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got != 1 {
		t.Errorf("Get() = %d, want 1", got)
	}

	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) ok = true, want false")
	}
}

func TestBaseRegistry_RegisterDuplicate(t *testing.T) {
	r := NewBaseRegistry[string]()

	if err := r.Register("a", "x"); err != nil {
		t.Fatalf("Register() error = %v, want nil", err)
	}
	if err := r.Register("a", "y"); err == nil {
		t.Error("Register(duplicate) = nil, want error")
	}
}

func TestBaseRegistry_RegisterEmptyName(t *testing.T) {
	r := NewBaseRegistry[string]()
	if err := r.Register("", "x"); err == nil {
		t.Error("Register(empty name) = nil, want error")
	}
}

func TestBaseRegistry_NamesPreserveOrder(t *testing.T) {
	r := NewBaseRegistry[int]()
	for i, name := range []string{"c", "a", "b"} {
		if err := r.Register(name, i); err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
	}

	names := r.Names()
	want := []string{"c", "a", "b"}
	if len(names) != len(want) {
		t.Fatalf("Names() length = %d, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %s, want %s", i, names[i], want[i])
		}
	}

	if count := r.Count(); count != 3 {
		t.Errorf("Count() = %d, want 3", count)
	}
}

func TestBaseRegistry_Concurrency(t *testing.T) {
	r := NewBaseRegistry[int]()

	done := make(chan bool, 2)

	go func() {
		defer func() { done <- true }()
		for i := 0; i < 100; i++ {
			_ = r.Register(fmt.Sprintf("concurrent-%d", i), i)
		}
	}()

	go func() {
		defer func() { done <- true }()
		for i := 0; i < 100; i++ {
			r.Get(fmt.Sprintf("concurrent-%d", i))
			r.Count()
			r.Names()
		}
	}()

	<-done
	<-done

	if count := r.Count(); count != 100 {
		t.Errorf("Count() after concurrent access = %v, want %v", count, 100)
	}
}
