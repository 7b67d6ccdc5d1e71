package domain

import (
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

func TestCardDecodesMixedAssignedUsers(t *testing.T) {
	payload := []byte(`{"id":1,"title":"t","order":0,"column_id":3,"deadline":"2024-05-01T12:00:00","assigned_users":[4,{"id":7,"username":"ann","email":"a@x"}]}`)
	var card Card
	if err := sonic.Unmarshal(payload, &card); err != nil {
		t.Fatalf("unmarshal card: %v", err)
	}
	if len(card.AssignedUserIDs) != 2 || card.AssignedUserIDs[0] != 4 || card.AssignedUserIDs[1] != 7 {
		t.Fatalf("unexpected assigned users: %v", card.AssignedUserIDs)
	}
	if card.Deadline == nil || card.Deadline.Year() != 2024 || card.Deadline.Hour() != 12 {
		t.Fatalf("unexpected deadline: %v", card.Deadline)
	}
	if !card.IsAssigned(7) || card.IsAssigned(5) {
		t.Fatalf("IsAssigned mismatch for %v", card.AssignedUserIDs)
	}
}

func TestCardNullDeadline(t *testing.T) {
	var card Card
	if err := sonic.Unmarshal([]byte(`{"id":1,"deadline":null,"assigned_users":[]}`), &card); err != nil {
		t.Fatalf("unmarshal card: %v", err)
	}
	if card.Deadline != nil {
		t.Fatalf("expected nil deadline, got %v", card.Deadline)
	}
}

func TestCloneIsDeep(t *testing.T) {
	deadline := Timestamp{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := Board{ID: 1, Columns: []Column{{ID: 1, Cards: []Card{{ID: 1, Deadline: &deadline, AssignedUserIDs: AssignedUsers{1}}}}}}
	c := b.Clone()
	c.Columns[0].Cards[0].Title = "changed"
	c.Columns[0].Cards[0].AssignedUserIDs[0] = 99
	c.Columns[0].Cards[0].Deadline.Time = time.Time{}

	orig := b.Columns[0].Cards[0]
	if orig.Title != "" || orig.AssignedUserIDs[0] != 1 || orig.Deadline.IsZero() {
		t.Fatalf("clone shares state with original: %#v", orig)
	}
}

func TestSortedProjections(t *testing.T) {
	b := Board{Columns: []Column{
		{ID: 1, Order: 2},
		{ID: 2, Order: 0, Cards: []Card{{ID: 10, Order: 1}, {ID: 11, Order: 0}}},
		{ID: 3, Order: 1},
	}}
	cols := b.SortedColumns()
	if cols[0].ID != 2 || cols[1].ID != 3 || cols[2].ID != 1 {
		t.Fatalf("unexpected column order: %v", cols)
	}
	cards := cols[0].SortedCards()
	if cards[0].ID != 11 || cards[1].ID != 10 {
		t.Fatalf("unexpected card order: %v", cards)
	}
	if b.Columns[0].ID != 1 {
		t.Fatalf("sorted projection mutated the board")
	}
}
