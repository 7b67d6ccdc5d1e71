package coordinator

import (
	"fmt"

	"boardsync/domain"
	"boardsync/ordering"
	"boardsync/store"
)

// apply computes and installs the optimistic state for one gesture. It must
// be called with mu held. Only reorders carry a version token: they persist
// the full order of their collection, so a later reorder of the same
// collection re-persists everything an earlier one changed. Moves and
// assignments persist a single card and are never superseded.
func (c *Coordinator) apply(active, over domain.DragRef) (*Mutation, error) {
	if !c.store.Loaded() {
		return nil, fmt.Errorf("%w: board %d is not loaded", domain.ErrTargetNotFound, c.boardID)
	}
	switch active.Kind {
	case domain.KindUser:
		return c.assignUser(active, over)
	case domain.KindColumn:
		return c.reorderColumns(active, over)
	case domain.KindCard:
		return c.dropCard(active, over)
	default:
		return nil, fmt.Errorf("%w: cannot drag %q", domain.ErrMalformedIdentifier, active.Kind)
	}
}

func (c *Coordinator) assignUser(active, over domain.DragRef) (*Mutation, error) {
	if over.Kind != domain.KindCardDroppable {
		return nil, nil
	}
	if _, ok := c.store.Member(active.ID); !ok {
		return nil, fmt.Errorf("%w: user %d is not a board member", domain.ErrTargetNotFound, active.ID)
	}
	card, ok := c.store.FindCard(over.ID)
	if !ok {
		return nil, fmt.Errorf("%w: card %d", domain.ErrTargetNotFound, over.ID)
	}
	if card.IsAssigned(active.ID) {
		return nil, nil
	}
	c.store.PatchCard(card.ID, func(cur *domain.Card) {
		cur.AssignedUserIDs = append(cur.AssignedUserIDs, active.ID)
	})
	return &Mutation{
		Op:       OpAssignUser,
		ColumnID: card.ColumnID,
		CardID:   card.ID,
		UserID:   active.ID,
	}, nil
}

func (c *Coordinator) reorderColumns(active, over domain.DragRef) (*Mutation, error) {
	if over.Kind != domain.KindColumn || over.ID == active.ID {
		return nil, nil
	}
	cols := c.store.SortedColumns()
	from := ordering.IndexOf(cols, func(col domain.Column) bool { return col.ID == active.ID })
	to := ordering.IndexOf(cols, func(col domain.Column) bool { return col.ID == over.ID })
	if from < 0 || to < 0 {
		return nil, fmt.Errorf("%w: column %d or %d", domain.ErrTargetNotFound, active.ID, over.ID)
	}
	next, changed := ordering.Reorder(cols, from, to)
	if !changed {
		return nil, nil
	}
	c.store.ReplaceColumns(next)

	ids := make([]int, len(next))
	for i, col := range next {
		ids[i] = col.ID
	}
	return &Mutation{
		Op:        OpReorderColumns,
		ColumnIDs: ids,
		token:     c.store.Bump(store.ColumnsKey),
	}, nil
}

func (c *Coordinator) dropCard(active, over domain.DragRef) (*Mutation, error) {
	card, ok := c.store.FindCard(active.ID)
	if !ok {
		return nil, fmt.Errorf("%w: card %d", domain.ErrTargetNotFound, active.ID)
	}

	switch over.Kind {
	case domain.KindCard, domain.KindCardDroppable:
		if over.ID == card.ID {
			return nil, nil
		}
		target, ok := c.store.FindCard(over.ID)
		if !ok {
			return nil, fmt.Errorf("%w: card %d", domain.ErrTargetNotFound, over.ID)
		}
		if target.ColumnID == card.ColumnID {
			return c.reorderCards(card, target.ID)
		}
		return c.moveCard(card, target.ColumnID, target.ID)
	case domain.KindColumn:
		if _, ok := c.store.Column(over.ID); !ok {
			return nil, fmt.Errorf("%w: column %d", domain.ErrTargetNotFound, over.ID)
		}
		if over.ID == card.ColumnID {
			return c.reorderCards(card, 0)
		}
		return c.moveCard(card, over.ID, 0)
	default:
		return nil, nil
	}
}

// reorderCards moves card next to the card overID within its column. An
// overID of zero moves it to the end.
func (c *Coordinator) reorderCards(card domain.Card, overID int) (*Mutation, error) {
	cards, ok := c.store.SortedCards(card.ColumnID)
	if !ok {
		return nil, fmt.Errorf("%w: column %d", domain.ErrTargetNotFound, card.ColumnID)
	}
	from := ordering.IndexOf(cards, func(x domain.Card) bool { return x.ID == card.ID })
	to := len(cards) - 1
	if overID != 0 {
		to = ordering.IndexOf(cards, func(x domain.Card) bool { return x.ID == overID })
	}
	if from < 0 || to < 0 {
		return nil, fmt.Errorf("%w: card %d", domain.ErrTargetNotFound, overID)
	}
	next, changed := ordering.Reorder(cards, from, to)
	if !changed {
		return nil, nil
	}
	c.store.ReplaceCardsInColumn(card.ColumnID, next)

	ids := make([]int, len(next))
	for i, x := range next {
		ids[i] = x.ID
	}
	return &Mutation{
		Op:       OpReorderCards,
		ColumnID: card.ColumnID,
		CardID:   card.ID,
		CardIDs:  ids,
		token:    c.store.Bump(store.ColumnKey(card.ColumnID)),
	}, nil
}

// moveCard moves card into column targetID in front of the card overID, or
// to the end when overID is zero.
func (c *Coordinator) moveCard(card domain.Card, targetID, overID int) (*Mutation, error) {
	source, ok := c.store.SortedCards(card.ColumnID)
	if !ok {
		return nil, fmt.Errorf("%w: column %d", domain.ErrTargetNotFound, card.ColumnID)
	}
	target, ok := c.store.SortedCards(targetID)
	if !ok {
		return nil, fmt.Errorf("%w: column %d", domain.ErrTargetNotFound, targetID)
	}
	from := ordering.IndexOf(source, func(x domain.Card) bool { return x.ID == card.ID })
	to := -1
	if overID != 0 {
		to = ordering.IndexOf(target, func(x domain.Card) bool { return x.ID == overID })
	}
	src, dst, moved := ordering.Move(source, target, from, to, targetID)
	if !moved {
		return nil, fmt.Errorf("%w: card %d", domain.ErrTargetNotFound, card.ID)
	}
	c.store.ReplaceCards(map[int][]domain.Card{card.ColumnID: src, targetID: dst})

	order := ordering.IndexOf(dst, func(x domain.Card) bool { return x.ID == card.ID })
	return &Mutation{
		Op:       OpMoveCard,
		ColumnID: card.ColumnID,
		CardID:   card.ID,
		Move:     domain.CardMove{ColumnID: targetID, Order: order},
	}, nil
}
