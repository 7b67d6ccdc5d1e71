package store

import "sort"

// Token records the versions a gesture left on the collections whose full
// order it persists. The zero Token covers nothing and is never superseded.
type Token struct {
	versions map[string]uint64
}

// Keys lists the entity keys covered by the token in sorted order.
func (t Token) Keys() []string {
	keys := make([]string, 0, len(t.versions))
	for k := range t.versions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Bump advances the version of every key and returns a token for them. Only
// gestures that persist the complete order of a collection may bump its key.
func (s *Store) Bump(keys ...string) Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := Token{versions: make(map[string]uint64, len(keys))}
	for _, k := range keys {
		s.versions[k]++
		t.versions[k] = s.versions[k]
	}
	return t
}

// Superseded reports whether every key of t was bumped again after t was
// issued, meaning later gestures re-persisted everything t covers.
func (s *Store) Superseded(t Token) bool {
	if len(t.versions) == 0 {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range t.versions {
		if s.versions[k] == v {
			return false
		}
	}
	return true
}
