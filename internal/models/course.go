package models

import "time"

// Course represents a purchasable course offering.
//
// StartAt and EndAt are stored in UTC. They are derived from local calendar
// dates: the start is normalized to the beginning of the local day and the
// end to the last second of the local day, so day-granularity checks such as
// "has this course started" behave the same in every timezone.
type Course struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Price     int64     `db:"price" json:"price"`
	StartAt   time.Time `db:"start_at" json:"start_at"`
	EndAt     time.Time `db:"end_at" json:"end_at"`
	TrainerID string    `db:"trainer_id" json:"trainer_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HasStarted reports whether the course start has passed at the given instant.
func (c *Course) HasStarted(now time.Time) bool {
	return !now.Before(c.StartAt)
}

// HasEnded reports whether the course end has passed at the given instant.
func (c *Course) HasEnded(now time.Time) bool {
	return !now.Before(c.EndAt)
}

// CourseFilter captures filtering criteria for listing courses.
type CourseFilter struct {
	TrainerID string
	Search    string
	Upcoming  bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
