package reservation

import "github.com/iliyamo/restaurant-reservation/internal/model"

// Overlap is the subset of a restaurant's reservations that intersect a
// candidate window, together with the seats they commit.
type Overlap struct {
	Reservations []model.Reservation
	Seats        int
}

// EvaluateOverlap selects the ACTIVE reservations whose windows intersect w.
// Cancelled and completed reservations never count, whatever their window.
func EvaluateOverlap(w Window, existing []model.Reservation) Overlap {
	var out Overlap
	for _, r := range existing {
		if !r.Holds() {
			continue
		}
		if !w.Overlaps(r.StartAt, r.EndAt) {
			continue
		}
		out.Reservations = append(out.Reservations, r)
		out.Seats += r.Seats
	}
	return out
}
