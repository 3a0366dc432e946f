package model

import "time"

// Restaurant represents a venue with a fixed seating capacity.  The catalog
// itself is managed elsewhere; the reservation service reads it to admit
// bookings and answer availability questions.
//
// Fields:
//
//	ID        – primary key identifier.
//	OwnerID   – user ID of the restaurant owner.
//	Name      – display name.
//	Location  – free form address or area.
//	Capacity  – total seats, at least 1.
//	Cuisines  – cuisine names attached through restaurant_cuisines.
//	CreatedAt – timestamp when the restaurant was created.
//	UpdatedAt – timestamp of last update.
type Restaurant struct {
	ID        uint64    `json:"id"`                 // restaurants.id
	OwnerID   uint64    `json:"owner_id"`           // restaurants.owner_id
	Name      string    `json:"name"`               // restaurants.name
	Location  string    `json:"location"`           // restaurants.location
	Capacity  int       `json:"capacity"`           // restaurants.capacity
	Cuisines  []string  `json:"cuisines,omitempty"` // restaurant_cuisines -> cuisines.name
	CreatedAt time.Time `json:"created_at"`         // restaurants.created_at
	UpdatedAt time.Time `json:"updated_at"`         // restaurants.updated_at
}
