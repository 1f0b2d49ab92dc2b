package models

import "time"

// Holiday is a single non-teaching date. Maintained by the calendar import
// collaborator; read-only to the scheduling engine.
type Holiday struct {
	ID        string    `db:"id" json:"id"`
	Date      time.Time `db:"holiday_date" json:"date"`
	Label     string    `db:"label" json:"label,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
