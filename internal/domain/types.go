package domain

import "time"

// Location is a latitude/longitude pair persisted as its own row and
// referenced by at most one Target.
type Location struct {
	ID        int64
	Latitude  float64
	Longitude float64
}

type Target struct {
	ID                int64
	UserID            int64
	Type              TargetType
	Location          *Location
	Orientation       *Orientation
	Shape             *Shape
	BackgroundColor   *Color
	AlphanumericColor *Color
	Alphanumeric      string
	Description       string
	// Thumbnail is the blob store key of the attached image, "" when none.
	Thumbnail string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OwnedBy reports whether userID owns t.
func (t *Target) OwnedBy(userID int64) bool {
	return t.UserID == userID
}
