package api

import (
	"boardsync/collision"
	"boardsync/coordinator"
	"boardsync/domain"
)

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Backend is the remote board API the sessions persist through.
type Backend interface {
	coordinator.BoardAPI
}

type boardResponse struct {
	Board     domain.Board     `json:"board"`
	Access    domain.Access    `json:"access"`
	DragState domain.DragState `json:"dragState"`
}

type dragStartRequest struct {
	ActiveID string          `json:"activeId"`
	Data     domain.DragData `json:"data"`
}

type dragMoveRequest struct {
	Pointer    collision.Point    `json:"pointer"`
	ActiveRect collision.Rect     `json:"activeRect"`
	Regions    []collision.Region `json:"regions"`
}

type dragMoveResponse struct {
	DropTargetID   *string     `json:"dropTargetId"`
	DropTargetKind domain.Kind `json:"dropTargetKind,omitempty"`
	Collisions     []string    `json:"collisions"`
}

// Gesture outcomes reported by drag/end and drag/cancel.
const (
	outcomeApplied   = "applied"
	outcomeNoop      = "noop"
	outcomeAborted   = "aborted"
	outcomeCancelled = "cancelled"
)

type dragEndResponse struct {
	Outcome  string                `json:"outcome"`
	Mutation *coordinator.Mutation `json:"mutation,omitempty"`
	Board    domain.Board          `json:"board"`
}

type statsResponse struct {
	Statistics   domain.Statistics   `json:"statistics"`
	Distribution []domain.ColumnLoad `json:"distribution"`
	Workload     []domain.MemberLoad `json:"workload"`
}
