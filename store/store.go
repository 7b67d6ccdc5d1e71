// Package store holds the client-side mirror of one board and hands out
// copies of it to readers.
package store

import (
	"strconv"
	"sync"

	"boardsync/domain"
)

// Listener is notified with a snapshot after every write.
type Listener func(domain.Board)

// Store is the mutable board tree shared by a view session. All reads return
// deep copies; all writes go through the methods below.
type Store struct {
	mu         sync.RWMutex
	board      domain.Board
	loaded     bool
	generation uint64
	versions   map[string]uint64

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int
}

func New() *Store {
	return &Store{
		versions:  make(map[string]uint64),
		listeners: make(map[int]Listener),
	}
}

// Loaded reports whether a board has been installed.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Store) Board() domain.Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board.Clone()
}

// Snapshot returns a copy of the board with columns and cards in order.
func (s *Store) Snapshot() domain.Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b := s.board.Clone()
	b.Columns = b.SortedColumns()
	for i := range b.Columns {
		b.Columns[i].Cards = b.Columns[i].SortedCards()
	}
	return b
}

// SortedColumns returns copies of the columns ordered by Order.
func (s *Store) SortedColumns() []domain.Column {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cols := s.board.SortedColumns()
	for i := range cols {
		cols[i] = cols[i].Clone()
	}
	return cols
}

// SortedCards returns copies of the column's cards ordered by Order.
func (s *Store) SortedCards(columnID int) ([]domain.Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.columnIndex(columnID)
	if idx < 0 {
		return nil, false
	}
	cards := s.board.Columns[idx].SortedCards()
	for i := range cards {
		cards[i] = cards[i].Clone()
	}
	return cards, true
}

func (s *Store) Column(columnID int) (domain.Column, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.columnIndex(columnID)
	if idx < 0 {
		return domain.Column{}, false
	}
	return s.board.Columns[idx].Clone(), true
}

// FindCard locates a card anywhere on the board.
func (s *Store) FindCard(cardID int) (domain.Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, col := range s.board.Columns {
		for _, card := range col.Cards {
			if card.ID == cardID {
				return card.Clone(), true
			}
		}
	}
	return domain.Card{}, false
}

func (s *Store) Member(userID int) (domain.Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.board.Members {
		if m.ID == userID {
			return m, true
		}
	}
	return domain.Member{}, false
}

// Replace installs a board wholesale. It is the reconciliation path.
func (s *Store) Replace(b domain.Board) {
	s.write(func(cur *domain.Board) bool {
		*cur = b.Clone()
		s.loaded = true
		s.generation++
		return true
	})
}

// ReplaceColumns swaps the column collection.
func (s *Store) ReplaceColumns(cols []domain.Column) {
	s.write(func(cur *domain.Board) bool {
		cur.Columns = make([]domain.Column, len(cols))
		for i, col := range cols {
			cur.Columns[i] = col.Clone()
		}
		return true
	})
}

// ReplaceCardsInColumn swaps one column's card collection. It reports false
// when the column is unknown.
func (s *Store) ReplaceCardsInColumn(columnID int, cards []domain.Card) bool {
	return s.ReplaceCards(map[int][]domain.Card{columnID: cards})
}

// ReplaceCards swaps the card collections of several columns in one write,
// so readers never observe a card in both or neither column. Nothing is
// written unless every column exists.
func (s *Store) ReplaceCards(byColumn map[int][]domain.Card) bool {
	return s.write(func(cur *domain.Board) bool {
		idx := make(map[int]int, len(byColumn))
		for columnID := range byColumn {
			i := s.columnIndex(columnID)
			if i < 0 {
				return false
			}
			idx[columnID] = i
		}
		for columnID, cards := range byColumn {
			next := make([]domain.Card, len(cards))
			for i, card := range cards {
				next[i] = card.Clone()
			}
			cur.Columns[idx[columnID]].Cards = next
		}
		return true
	})
}

// PatchCard applies fn to the stored card in place.
func (s *Store) PatchCard(cardID int, fn func(*domain.Card)) bool {
	return s.write(func(cur *domain.Board) bool {
		for ci := range cur.Columns {
			for i := range cur.Columns[ci].Cards {
				if cur.Columns[ci].Cards[i].ID == cardID {
					fn(&cur.Columns[ci].Cards[i])
					return true
				}
			}
		}
		return false
	})
}

// Generation counts wholesale replacements.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Subscribe registers l and returns a func that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.lmu.Unlock()
	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Store) write(fn func(*domain.Board) bool) bool {
	s.mu.Lock()
	ok := fn(&s.board)
	var snapshot domain.Board
	if ok {
		snapshot = s.board.Clone()
	}
	s.mu.Unlock()
	if ok {
		s.notify(snapshot)
	}
	return ok
}

func (s *Store) notify(b domain.Board) {
	s.lmu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.lmu.Unlock()
	for _, l := range listeners {
		l(b)
	}
}

// columnIndex must be called with mu held.
func (s *Store) columnIndex(columnID int) int {
	for i, col := range s.board.Columns {
		if col.ID == columnID {
			return i
		}
	}
	return -1
}

// Version keys for the entities a gesture can touch.
const ColumnsKey = "columns"

func ColumnKey(columnID int) string { return "column:" + strconv.Itoa(columnID) }
func CardKey(cardID int) string     { return "card:" + strconv.Itoa(cardID) }
