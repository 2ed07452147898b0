package workflow

import "testing"

func TestEdgeID(t *testing.T) {
	e := NewDirectEdge("a", "b")
	if got, want := e.ID(), "a->b"; got != want {
		t.Fatalf("ID() = %q, want %q", got, want)
	}

	source, target, ok := SplitEdgeID(e.ID())
	if !ok || source != "a" || target != "b" {
		t.Fatalf("SplitEdgeID(%q) = (%q, %q, %v)", e.ID(), source, target, ok)
	}
}

func TestConditionalEdgeCanHandle(t *testing.T) {
	e := NewConditionalEdge("a", "b", func(m *Message) bool {
		age, ok := m.Data.(int)
		return ok && age >= 18
	})

	if !e.CanHandle(NewMessage("a", 21)) {
		t.Fatal("expected edge to handle age 21")
	}
	if e.CanHandle(NewMessage("a", 10)) {
		t.Fatal("expected edge to reject age 10")
	}
}

func TestPredicateCombinators(t *testing.T) {
	isString := func(m *Message) bool { _, ok := m.Data.(string); return ok }
	isEmpty := func(m *Message) bool { s, _ := m.Data.(string); return s == "" }

	and := And(isString, Not(isEmpty))
	if and(NewMessage("a", "")) {
		t.Fatal("And(isString, Not(isEmpty)) should reject empty string")
	}
	if !and(NewMessage("a", "hi")) {
		t.Fatal("And(isString, Not(isEmpty)) should accept non-empty string")
	}

	or := Or(isString, Always())
	if !or(NewMessage("a", 5)) {
		t.Fatal("Or(isString, Always()) should always accept")
	}
}
