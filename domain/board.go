package domain

import (
	"github.com/bytedance/sonic"

	"boardsync/ordering"
)

// Role is a board-scoped membership role.
type Role string

const (
	// RoleNone marks a viewer who is not on the board.
	RoleNone   Role = ""
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Board is the root aggregate loaded wholesale for a view session.
type Board struct {
	ID          int              `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	OwnerID     int              `json:"owner_id"`
	CreatedAt   Timestamp        `json:"created_at"`
	UpdatedAt   Timestamp        `json:"updated_at"`
	Members     []Member         `json:"members"`
	Columns     []Column         `json:"columns"`
	Permissions BoardPermissions `json:"permissions"`
}

// BoardPermissions are the server-computed capabilities of the viewer.
type BoardPermissions struct {
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
	CanInvite bool `json:"can_invite"`
	CanAssign bool `json:"can_assign"`
}

// Member is a user participating in a board.
type Member struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// Column holds cards ordered by Order, dense and zero based.
type Column struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Order   int    `json:"order"`
	BoardID int    `json:"board_id"`
	Cards   []Card `json:"cards"`
}

// SetOrder implements ordering.Positioned.
func (c *Column) SetOrder(order int) { c.Order = order }

// Card is a single work item inside a column.
type Card struct {
	ID              int           `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Order           int           `json:"order"`
	ColumnID        int           `json:"column_id"`
	Color           string        `json:"color,omitempty"`
	Completed       bool          `json:"completed"`
	Deadline        *Timestamp    `json:"deadline"`
	AssignedUserIDs AssignedUsers `json:"assigned_users"`
	Comments        []Comment     `json:"comments"`
	Tags            []Tag         `json:"tags,omitempty"`
	CreatedAt       Timestamp     `json:"created_at"`
	UpdatedAt       Timestamp     `json:"updated_at"`
}

// SetOrder implements ordering.Positioned.
func (c *Card) SetOrder(order int) { c.Order = order }

// SetParent implements ordering.Parented.
func (c *Card) SetParent(columnID int) { c.ColumnID = columnID }

// IsAssigned reports whether userID is in the card's assigned set.
func (c Card) IsAssigned(userID int) bool {
	for _, id := range c.AssignedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// User is the public projection of an account.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type Reaction struct {
	ID     int    `json:"id"`
	Emoji  string `json:"emoji"`
	UserID int    `json:"user_id"`
}

type Comment struct {
	ID        int        `json:"id"`
	Content   string     `json:"content"`
	CreatedAt Timestamp  `json:"created_at"`
	UpdatedAt Timestamp  `json:"updated_at"`
	Author    User       `json:"author"`
	Reactions []Reaction `json:"reactions"`
}

type Tag struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	BoardID int    `json:"board_id"`
}

// CardMove is the body of a cross-column move.
type CardMove struct {
	ColumnID int `json:"column_id"`
	Order    int `json:"order"`
}

// AssignedUsers decodes the API's mixed list of user objects and bare ids.
type AssignedUsers []int

func (a *AssignedUsers) UnmarshalJSON(data []byte) error {
	var raw []sonic.NoCopyRawMessage
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}
	ids := make([]int, 0, len(raw))
	for _, item := range raw {
		var id int
		if err := sonic.Unmarshal(item, &id); err == nil {
			ids = append(ids, id)
			continue
		}
		var u User
		if err := sonic.Unmarshal(item, &u); err != nil {
			return err
		}
		ids = append(ids, u.ID)
	}
	*a = ids
	return nil
}

// Clone returns a deep copy so callers can mutate freely.
func (b Board) Clone() Board {
	out := b
	out.Members = append([]Member(nil), b.Members...)
	out.Columns = make([]Column, len(b.Columns))
	for i, col := range b.Columns {
		out.Columns[i] = col.Clone()
	}
	return out
}

// Clone returns a deep copy of the column and its cards.
func (c Column) Clone() Column {
	out := c
	out.Cards = make([]Card, len(c.Cards))
	for i, card := range c.Cards {
		out.Cards[i] = card.Clone()
	}
	return out
}

// Clone returns a deep copy of the card.
func (c Card) Clone() Card {
	out := c
	if c.Deadline != nil {
		d := *c.Deadline
		out.Deadline = &d
	}
	out.AssignedUserIDs = append(AssignedUsers(nil), c.AssignedUserIDs...)
	out.Comments = append([]Comment(nil), c.Comments...)
	out.Tags = append([]Tag(nil), c.Tags...)
	return out
}

// SortedColumns returns the board's columns ordered by Order.
func (b Board) SortedColumns() []Column {
	return ordering.SortBy(b.Columns, func(c Column) int { return c.Order })
}

// SortedCards returns the column's cards ordered by Order.
func (c Column) SortedCards() []Card {
	return ordering.SortBy(c.Cards, func(card Card) int { return card.Order })
}
