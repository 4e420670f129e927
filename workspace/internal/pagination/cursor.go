package pagination

import "time"

// Cursor is the sort key shared by the SQL and memory stores.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        string    `json:"id"`
}

// Order is the direction of a scan over Cursor keys.
type Order int

const (
	Ascending Order = iota
	Descending
)

// Less reports whether a comes before b in this order.
func (o Order) Less(a, b Cursor) bool {
	if o == Descending {
		a, b = b, a
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
