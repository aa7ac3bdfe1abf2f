package model

import (
	"encoding/json"
	"time"
)

// Rental types
const (
	RentalTypeVehicle = "vehicle"
	RentalTypeHousing = "housing"
)

// Rental is the parent record a completed signature is mirrored onto.
// This service does not own the rental lifecycle; it reads the check-in
// stage and patches the two check-in signature fields.
type Rental struct {
	ID                      string          `db:"id" json:"id"`
	OwnerID                 string          `db:"owner_id" json:"ownerId"`
	Title                   string          `db:"title" json:"title"`
	RentalType              string          `db:"rental_type" json:"rentalType"`
	CheckInCompletedAt      *time.Time      `db:"check_in_completed_at" json:"checkInCompletedAt,omitempty"`
	CheckInPartnerSignature json.RawMessage `db:"check_in_partner_signature" json:"checkInPartnerSignature,omitempty"`
	CheckInSignatureRequest json.RawMessage `db:"check_in_signature_request" json:"checkInSignatureRequest,omitempty"`
	CreatedAt               time.Time       `db:"created_at" json:"createdAt"`
}

// CheckInCompleted reports whether the before-photos stage is done.
// A signature can only be requested after check-in.
func (r *Rental) CheckInCompleted() bool {
	return r.CheckInCompletedAt != nil
}
