// Package collision resolves the intended drop target of an in-progress drag
// gesture from pointer position and droppable geometry.
package collision

import (
	"fmt"

	"boardsync/domain"
)

// State is the resolver's gesture state.
type State int

const (
	Idle State = iota
	DraggingColumn
	DraggingCard
	DraggingUser
)

func (s State) String() string {
	switch s {
	case DraggingColumn:
		return "dragging-column"
	case DraggingCard:
		return "dragging-card"
	case DraggingUser:
		return "dragging-user"
	default:
		return "idle"
	}
}

// Drop is the outcome of a completed gesture.
type Drop struct {
	Active domain.DragRef
	Over   domain.DragRef
}

// Resolver tracks one gesture at a time. It is not safe for concurrent use;
// callers own one resolver per gesture source.
type Resolver struct {
	state  State
	active domain.DragRef
	over   *Region
}

// NewResolver returns an idle resolver.
func NewResolver() *Resolver { return &Resolver{} }

// State returns the current gesture state.
func (r *Resolver) State() State { return r.state }

// Active returns the decoded active participant of the current gesture.
func (r *Resolver) Active() domain.DragRef { return r.active }

// Start decodes the active token and enters the matching dragging state. A
// malformed or non-draggable token leaves the resolver idle.
func (r *Resolver) Start(activeID string, data domain.DragData) (domain.DragRef, error) {
	r.reset()
	ref, err := domain.NewDragRef(activeID, data)
	if err != nil {
		return domain.DragRef{}, err
	}
	switch ref.Kind {
	case domain.KindColumn:
		r.state = DraggingColumn
	case domain.KindCard:
		r.state = DraggingCard
	case domain.KindUser:
		r.state = DraggingUser
	default:
		return domain.DragRef{}, fmt.Errorf("%w: %q is not draggable", domain.ErrMalformedIdentifier, activeID)
	}
	r.active = ref
	return ref, nil
}

// Move recomputes the collision set for a pointer-move and returns it. The
// first element, if any, becomes the current drop target.
func (r *Resolver) Move(pointer Point, activeRect Rect, regions []Region) []Region {
	if r.state == Idle {
		return nil
	}
	within := PointerWithin(pointer, regions)
	candidates := union(within, RectIntersection(activeRect, regions))

	var collisions []Region
	switch r.state {
	case DraggingColumn:
		if cols := onlyColumns(within); len(cols) > 0 {
			collisions = cols[:1]
		} else {
			collisions = ClosestCorners(activeRect, onlyColumns(candidates))
		}
	default:
		collisions = candidates
	}

	if len(collisions) == 0 {
		r.over = nil
		return nil
	}
	target := collisions[0]
	r.over = &target
	return collisions
}

// DragState reports the ephemeral state for the drop indicator.
func (r *Resolver) DragState() domain.DragState {
	if r.state == Idle {
		return domain.DragState{}
	}
	ds := domain.DragState{ActiveID: r.active.Token(), ActiveKind: r.active.Kind}
	if r.over != nil {
		ds.DropTargetID = r.over.ID
		ds.DropTargetKind = domain.Classify(r.over.ID)
	}
	return ds
}

// End finishes the gesture. Without a valid target it returns
// ErrTargetNotFound; the resolver is idle afterwards either way.
func (r *Resolver) End() (Drop, error) {
	defer r.reset()
	if r.state == Idle {
		return Drop{}, fmt.Errorf("%w: no gesture in progress", domain.ErrTargetNotFound)
	}
	if r.over == nil {
		return Drop{}, fmt.Errorf("%w: no drop target", domain.ErrTargetNotFound)
	}
	over, err := domain.NewDragRef(r.over.ID, domain.DragData{ColumnID: r.over.ColumnID})
	if err != nil {
		return Drop{}, err
	}
	return Drop{Active: r.active, Over: over}, nil
}

// Cancel abandons the gesture without producing a drop.
func (r *Resolver) Cancel() { r.reset() }

func (r *Resolver) reset() {
	r.state = Idle
	r.active = domain.DragRef{}
	r.over = nil
}

func onlyColumns(regions []Region) []Region {
	out := make([]Region, 0, len(regions))
	for _, reg := range regions {
		if domain.Classify(reg.ID) == domain.KindColumn {
			out = append(out, reg)
		}
	}
	return out
}

func union(a, b []Region) []Region {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]Region, 0, len(a)+len(b))
	for _, set := range [][]Region{a, b} {
		for _, reg := range set {
			if _, ok := seen[reg.ID]; ok {
				continue
			}
			seen[reg.ID] = struct{}{}
			out = append(out, reg)
		}
	}
	return out
}
