package domain

import (
	"math"
	"sort"
	"time"
)

// Statistics aggregates card state over a board.
type Statistics struct {
	TotalCards           int     `json:"total_cards"`
	CompletedCards       int     `json:"completed_cards"`
	PendingCards         int     `json:"pending_cards"`
	CompletionPercentage float64 `json:"completion_percentage"`
	OverdueCards         int     `json:"overdue_cards"`
	TotalComments        int     `json:"total_comments"`
}

// ComputeStatistics derives Statistics from an already-loaded board.
func ComputeStatistics(b Board, now time.Time) Statistics {
	var s Statistics
	for _, col := range b.Columns {
		for _, card := range col.Cards {
			s.TotalCards++
			s.TotalComments += len(card.Comments)
			if card.Completed {
				s.CompletedCards++
				continue
			}
			if card.Deadline != nil && !card.Deadline.IsZero() && card.Deadline.Before(now) {
				s.OverdueCards++
			}
		}
	}
	s.PendingCards = s.TotalCards - s.CompletedCards
	if s.TotalCards > 0 {
		pct := float64(s.CompletedCards) * 100 / float64(s.TotalCards)
		s.CompletionPercentage = math.Round(pct*10) / 10
	}
	return s
}

// ColumnLoad is the number of cards in one column.
type ColumnLoad struct {
	ColumnID    int    `json:"columnId"`
	ColumnTitle string `json:"columnTitle"`
	CardCount   int    `json:"cardCount"`
}

// CardDistribution lists card counts per column in column order.
func CardDistribution(b Board) []ColumnLoad {
	cols := b.SortedColumns()
	out := make([]ColumnLoad, 0, len(cols))
	for _, col := range cols {
		out = append(out, ColumnLoad{ColumnID: col.ID, ColumnTitle: col.Title, CardCount: len(col.Cards)})
	}
	return out
}

// MemberLoad is the number of cards assigned to one member.
type MemberLoad struct {
	UserID        int    `json:"userId"`
	Username      string `json:"username"`
	AssignedCards int    `json:"assignedCards"`
}

// Workload counts assigned cards per board member, busiest first.
func Workload(b Board) []MemberLoad {
	counts := make(map[int]int, len(b.Members))
	for _, col := range b.Columns {
		for _, card := range col.Cards {
			for _, id := range card.AssignedUserIDs {
				counts[id]++
			}
		}
	}
	out := make([]MemberLoad, 0, len(b.Members))
	for _, m := range b.Members {
		out = append(out, MemberLoad{UserID: m.ID, Username: m.Username, AssignedCards: counts[m.ID]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AssignedCards > out[j].AssignedCards })
	return out
}
