package dashboard

import "time"

// Snapshot is the daily operations view: status counts, derived rates and
// the attention lists front-desk staff act on. Status rates are whole
// percentages; visit durations keep two decimals. An empty day yields
// zeroes, never NaN.
type Snapshot struct {
	Date        string    `json:"date"`
	GeneratedAt time.Time `json:"generated_at"`

	Total      int `json:"total"`
	Scheduled  int `json:"scheduled"`
	Confirmed  int `json:"confirmed"`
	CheckedIn  int `json:"checked_in"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
	NoShow     int `json:"no_show"`

	CompletionRate   float64 `json:"completion_rate"`
	CancellationRate float64 `json:"cancellation_rate"`
	NoShowRate       float64 `json:"no_show_rate"`
	OccupancyRate    float64 `json:"occupancy_rate"`

	AvgVisitMinutes    float64 `json:"avg_visit_minutes"`
	MedianVisitMinutes float64 `json:"median_visit_minutes"`

	Upcoming         []Upcoming     `json:"upcoming"`
	Overdue          []Overdue      `json:"overdue"`
	Conflicts        []ConflictPair `json:"conflicts"`
	Unconfirmed      []Unconfirmed  `json:"unconfirmed"`
	UnconfirmedSoon  int            `json:"unconfirmed_soon"`
	ActiveBlockCount int            `json:"active_block_count"`
}

// Upcoming is one of the next bookings due to start.
type Upcoming struct {
	BookingID      int64     `json:"booking_id"`
	PatientID      int64     `json:"patient_id"`
	ProfessionalID int64     `json:"professional_id"`
	StartsAt       time.Time `json:"starts_at"`
	Status         string    `json:"status"`
}

// Unconfirmed is a SCHEDULED booking starting within the confirmation
// horizon that still needs a confirmation call.
type Unconfirmed struct {
	BookingID      int64     `json:"booking_id"`
	PatientID      int64     `json:"patient_id"`
	ProfessionalID int64     `json:"professional_id"`
	StartsAt       time.Time `json:"starts_at"`
}

// Overdue is a booking past its start that has not reached a terminal state.
type Overdue struct {
	BookingID      int64     `json:"booking_id"`
	PatientID      int64     `json:"patient_id"`
	ProfessionalID int64     `json:"professional_id"`
	StartsAt       time.Time `json:"starts_at"`
	Status         string    `json:"status"`
	MinutesLate    int       `json:"minutes_late"`
}

// ConflictPair flags two active bookings double-holding the same resource.
// These should not exist; surfacing them lets staff repair manual edits.
type ConflictPair struct {
	Resource   string `json:"resource"` // "professional" or "room"
	ResourceID int64  `json:"resource_id"`
	BookingA   int64  `json:"booking_a"`
	BookingB   int64  `json:"booking_b"`
}
