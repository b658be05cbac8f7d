package container

import (
	"errors"
	"testing"
)

func counter(state any, action Action) any {
	n, _ := state.(int)
	if state == nil {
		n = 5
	}
	switch action.Type() {
	case "INCREMENT":
		return n + 1
	case "DECREMENT":
		return n - 1
	}
	return n
}

func TestNew_DispatchesInit(t *testing.T) {
	var seen []string
	s, err := New(func(state any, a Action) any {
		seen = append(seen, a.Type())
		return counter(state, a)
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(seen) != 1 || seen[0] != InitType {
		t.Errorf("actions = %v, want [%s]", seen, InitType)
	}
	if got := s.State(); got != 5 {
		t.Errorf("State() = %v, want 5", got)
	}
}

func TestNew_NilReducer(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil reducer")
	}
}

func TestNew_EnhancerError(t *testing.T) {
	boom := errors.New("boom")
	_, err := New(counter, WithEnhancer(func(*Store) error { return boom }))
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestNew_EnhancerCanDispatch(t *testing.T) {
	s, err := New(counter, WithEnhancer(func(s *Store) error {
		s.Dispatch(Simple{Name: "INCREMENT"})
		return nil
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := s.State(); got != 6 {
		t.Errorf("State() = %v, want 6", got)
	}
}

func TestStore_Subscribe(t *testing.T) {
	s, err := New(counter, WithInitialState(10))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	calls := 0
	unsubscribe := s.Subscribe(func() { calls++ })
	s.Dispatch(Simple{Name: "INCREMENT"})
	s.Dispatch(Simple{Name: "INCREMENT"})
	unsubscribe()
	s.Dispatch(Simple{Name: "INCREMENT"})

	if calls != 2 {
		t.Errorf("listener calls = %d, want 2", calls)
	}
	if got := s.State(); got != 13 {
		t.Errorf("State() = %v, want 13", got)
	}
}

func TestCombine(t *testing.T) {
	root := Combine(map[string]Reducer{
		"a": counter,
		"b": func(state any, a Action) any {
			if state == nil {
				return "hello"
			}
			return state
		},
	})

	s, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Dispatch(Simple{Name: "DECREMENT"})

	if got := SliceOf(s.State(), "a"); got != 4 {
		t.Errorf("a = %v, want 4", got)
	}
	if got := SliceOf(s.State(), "b"); got != "hello" {
		t.Errorf("b = %v, want hello", got)
	}
	if got := SliceOf(nil, "a"); got != nil {
		t.Errorf("SliceOf(nil) = %v, want nil", got)
	}
}
