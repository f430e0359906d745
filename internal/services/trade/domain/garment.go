package domain

import "time"

// Availability identifies one garment availability state.
type Availability string

const (
	// AvailabilityAvailable means the garment is in the tradable pool.
	AvailabilityAvailable Availability = "available"
	// AvailabilityReserved means the garment is held by an accepted proposal.
	AvailabilityReserved Availability = "reserved"
	// AvailabilityWithdrawn means the owner pulled the garment from the pool.
	AvailabilityWithdrawn Availability = "withdrawn"
	// AvailabilityTraded means a completed exchange consumed the garment.
	AvailabilityTraded Availability = "traded"
)

// Garment captures one listed garment and its availability state.
type Garment struct {
	ID           string
	OwnerUserID  string
	Title        string
	Availability Availability
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
