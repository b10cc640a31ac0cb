package ledger

import "encoding/json"

// PrincipalSet is an unordered set of principal ids backed by a plain slice.
//
// Membership is a linear scan. Removal overwrites the first occurrence with
// the last element and shrinks the slice, so iteration order is not stable
// across removals. Add does not check for duplicates; callers that need set
// semantics check Contains first.
type PrincipalSet struct {
	items []string
}

// NewPrincipalSet returns a set holding ids in the given order.
func NewPrincipalSet(ids ...string) PrincipalSet {
	s := PrincipalSet{}
	if len(ids) > 0 {
		s.items = append(make([]string, 0, len(ids)), ids...)
	}
	return s
}

func (s *PrincipalSet) Len() int { return len(s.items) }

func (s *PrincipalSet) Contains(id string) bool {
	for _, v := range s.items {
		if v == id {
			return true
		}
	}
	return false
}

func (s *PrincipalSet) Add(id string) {
	s.items = append(s.items, id)
}

// Remove deletes the first occurrence of id by moving the last element into
// its slot. It reports whether id was present; removing an absent id is a
// no-op.
func (s *PrincipalSet) Remove(id string) bool {
	for i, v := range s.items {
		if v != id {
			continue
		}
		last := len(s.items) - 1
		s.items[i] = s.items[last]
		s.items[last] = ""
		s.items = s.items[:last]
		return true
	}
	return false
}

// Items returns a copy of the backing sequence in its current order.
func (s *PrincipalSet) Items() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

func (s PrincipalSet) MarshalJSON() ([]byte, error) {
	if s.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}

func (s *PrincipalSet) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	s.items = items
	return nil
}
