package dto

// CreateHolidayRequest registers one non-teaching date.
type CreateHolidayRequest struct {
	Date  string `json:"date" validate:"required"`
	Label string `json:"label" validate:"required"`
}

// ImportHolidaysRequest registers a batch of non-teaching dates, typically a
// whole term calendar at once.
type ImportHolidaysRequest struct {
	Items []CreateHolidayRequest `json:"items" validate:"required,min=1,dive"`
}

// ImportHolidaysResult reports how the batch landed.
type ImportHolidaysResult struct {
	Imported int      `json:"imported"`
	Skipped  []string `json:"skipped,omitempty"`
}
