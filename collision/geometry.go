package collision

import (
	"math"
	"sort"
)

// Point is a pointer position in viewport coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Right() float64  { return r.Left + r.Width }
func (r Rect) Bottom() float64 { return r.Top + r.Height }
func (r Rect) Area() float64   { return r.Width * r.Height }

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left && p.X <= r.Right() && p.Y >= r.Top && p.Y <= r.Bottom()
}

func (r Rect) corners() [4]Point {
	return [4]Point{
		{r.Left, r.Top},
		{r.Right(), r.Top},
		{r.Left, r.Bottom()},
		{r.Right(), r.Bottom()},
	}
}

// Region is a droppable area registered by the board view.
type Region struct {
	ID       string `json:"id"`
	Rect     Rect   `json:"rect"`
	ColumnID int    `json:"columnId,omitempty"`
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

type scored struct {
	region Region
	score  float64
}

func sortScored(items []scored, desc bool) []Region {
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return items[i].score > items[j].score
		}
		return items[i].score < items[j].score
	})
	out := make([]Region, len(items))
	for i, s := range items {
		out[i] = s.region
	}
	return out
}

// PointerWithin returns the regions containing the pointer, nearest first by
// mean distance from the pointer to the region corners.
func PointerWithin(pointer Point, regions []Region) []Region {
	hits := make([]scored, 0, len(regions))
	for _, r := range regions {
		if !r.Rect.Contains(pointer) {
			continue
		}
		var total float64
		for _, c := range r.Rect.corners() {
			total += distance(pointer, c)
		}
		hits = append(hits, scored{region: r, score: total / 4})
	}
	return sortScored(hits, false)
}

// IntersectionRatio is the overlap area over the union area of a and b.
func IntersectionRatio(a, b Rect) float64 {
	left := math.Max(a.Left, b.Left)
	right := math.Min(a.Right(), b.Right())
	top := math.Max(a.Top, b.Top)
	bottom := math.Min(a.Bottom(), b.Bottom())
	if left >= right || top >= bottom {
		return 0
	}
	overlap := (right - left) * (bottom - top)
	union := a.Area() + b.Area() - overlap
	if union <= 0 {
		return 0
	}
	return overlap / union
}

// RectIntersection returns the regions overlapping active, largest ratio first.
func RectIntersection(active Rect, regions []Region) []Region {
	hits := make([]scored, 0, len(regions))
	for _, r := range regions {
		if ratio := IntersectionRatio(active, r.Rect); ratio > 0 {
			hits = append(hits, scored{region: r, score: ratio})
		}
	}
	return sortScored(hits, true)
}

// ClosestCorners orders regions by the summed distance between matching
// corners of active and each region, nearest first.
func ClosestCorners(active Rect, regions []Region) []Region {
	ac := active.corners()
	items := make([]scored, 0, len(regions))
	for _, r := range regions {
		rc := r.Rect.corners()
		var total float64
		for i := range ac {
			total += distance(ac[i], rc[i])
		}
		items = append(items, scored{region: r, score: total})
	}
	return sortScored(items, false)
}
