package domain

// DragRef is a decoded drag participant. ColumnID is set for cards and
// card-droppable regions when the drag library supplied it.
type DragRef struct {
	Kind     Kind `json:"kind"`
	ID       int  `json:"id"`
	ColumnID int  `json:"columnId,omitempty"`
}

// DragData is the extra payload the drag library attaches to a participant.
type DragData struct {
	ColumnID int `json:"columnId,omitempty"`
}

// NewDragRef decodes token once; the result is never re-inspected ad hoc.
func NewDragRef(token string, data DragData) (DragRef, error) {
	kind, id, err := Decode(token)
	if err != nil {
		return DragRef{}, err
	}
	ref := DragRef{Kind: kind, ID: id}
	switch kind {
	case KindCard, KindCardDroppable:
		ref.ColumnID = data.ColumnID
	}
	return ref, nil
}

// Token re-encodes the reference.
func (r DragRef) Token() string { return Encode(r.Kind, r.ID) }

// DragState is the ephemeral state of an in-progress gesture.
type DragState struct {
	ActiveID       string `json:"activeId,omitempty"`
	ActiveKind     Kind   `json:"activeKind,omitempty"`
	DropTargetID   string `json:"dropTargetId,omitempty"`
	DropTargetKind Kind   `json:"dropTargetKind,omitempty"`
}
