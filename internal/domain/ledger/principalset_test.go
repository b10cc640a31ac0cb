package ledger

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestPrincipalSet_RemoveSwapsLastIntoSlot(t *testing.T) {
	s := NewPrincipalSet("a", "b", "c", "d")

	if !s.Remove("b") {
		t.Fatal("expected b to be removed")
	}
	if got, want := s.Items(), []string{"a", "d", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("after removing b: got %v, want %v", got, want)
	}

	if !s.Remove("c") {
		t.Fatal("expected c to be removed")
	}
	if got, want := s.Items(), []string{"a", "d"}; !reflect.DeepEqual(got, want) {
		t.Errorf("removing the last element keeps order: got %v, want %v", got, want)
	}
}

func TestPrincipalSet_RemoveAbsentIsNoop(t *testing.T) {
	s := NewPrincipalSet("a", "b", "c")
	if s.Remove("z") {
		t.Error("expected absent id to report false")
	}
	if got, want := s.Items(), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPrincipalSet_RemoveFirstOccurrenceOnly(t *testing.T) {
	s := NewPrincipalSet("a", "b", "a")
	s.Remove("a")
	if s.Len() != 2 || !s.Contains("a") {
		t.Errorf("expected one a left, got %v", s.Items())
	}
}

func TestPrincipalSet_ItemsIsACopy(t *testing.T) {
	s := NewPrincipalSet("a")
	items := s.Items()
	items[0] = "mutated"
	if !s.Contains("a") {
		t.Error("mutating Items() result changed the set")
	}
}

func TestPrincipalSet_JSON(t *testing.T) {
	var empty PrincipalSet
	b, err := json.Marshal(empty)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "[]" {
		t.Errorf("expected [], got %s", b)
	}

	var s PrincipalSet
	if err := json.Unmarshal([]byte(`["d1","d2"]`), &s); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 || !s.Contains("d2") {
		t.Errorf("unexpected set %v", s.Items())
	}
}
