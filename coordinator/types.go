package coordinator

import (
	"context"
	"sync"

	"boardsync/domain"
	"boardsync/store"
)

// BoardAPI is the remote collaborator the coordinator persists through.
type BoardAPI interface {
	FetchBoard(ctx context.Context, boardID int) (domain.Board, error)
	ReorderColumns(ctx context.Context, boardID int, columnIDs []int) error
	ReorderCards(ctx context.Context, boardID, columnID int, cardIDs []int) error
	MoveCard(ctx context.Context, boardID, cardID int, move domain.CardMove) error
	AssignUser(ctx context.Context, boardID, columnID, cardID, userID int) error
}

// Reconciler restores local state after a rejected persistence call. gate
// serializes store writes with gesture application: implementations hold it
// around their store writes and never across a network call.
type Reconciler interface {
	Reconcile(ctx context.Context, boardID int, gate sync.Locker) error
}

// Op names a persistence operation.
type Op string

const (
	OpReorderColumns Op = "reorder-columns"
	OpReorderCards   Op = "reorder-cards"
	OpMoveCard       Op = "move-card"
	OpAssignUser     Op = "assign-user"
)

// Mutation describes an optimistically applied gesture and the call that
// persists it.
type Mutation struct {
	ID        string          `json:"id"`
	Op        Op              `json:"op"`
	BoardID   int             `json:"boardId"`
	ColumnID  int             `json:"columnId,omitempty"`
	CardID    int             `json:"cardId,omitempty"`
	UserID    int             `json:"userId,omitempty"`
	ColumnIDs []int           `json:"columnIds,omitempty"`
	CardIDs   []int           `json:"cardIds,omitempty"`
	Move      domain.CardMove `json:"move,omitempty"`

	// token is set for reorders only.
	token store.Token
}
