package model

import (
	"encoding/json"
	"time"
)

// SignatureRequest is the durable record of an outstanding countersign
// request. The ID is an unguessable token that doubles as the signing
// link capability. Records are never deleted; expiry makes them inert.
type SignatureRequest struct {
	ID             string          `db:"id" json:"signId"`
	RentalID       string          `db:"rental_id" json:"rentalId"`
	RentalTitle    string          `db:"rental_title" json:"rentalTitle"`
	RentalType     string          `db:"rental_type" json:"rentalType"`
	RequesterID    string          `db:"requester_id" json:"requesterId"`
	RequesterName  string          `db:"requester_name" json:"requesterName"`
	SignerName     string          `db:"signer_name" json:"signerName"`
	SignerPhone    string          `db:"signer_phone" json:"signerPhone"`
	Method         DeliveryMethod  `db:"method" json:"method"`
	SignURL        string          `db:"sign_url" json:"signUrl"`
	IsExistingUser bool            `db:"is_existing_user" json:"isExistingUser"`
	Status         RequestStatus   `db:"status" json:"status"`
	Signature      json.RawMessage `db:"signature" json:"signature,omitempty"`
	RequestedAt    time.Time       `db:"requested_at" json:"requestedAt"`
	ExpiresAt      time.Time       `db:"expires_at" json:"expiresAt"`
	CompletedAt    *time.Time      `db:"completed_at" json:"completedAt,omitempty"`
	MirroredAt     *time.Time      `db:"mirrored_at" json:"-"`
}

// State derives the effective state of the request at the given time.
func (r *SignatureRequest) State(now time.Time) EffectiveState {
	return DeriveState(r.Status, r.ExpiresAt, now)
}

type CreateSignatureRequestParams struct {
	ID             string
	RentalID       string
	RentalTitle    string
	RentalType     string
	RequesterID    string
	RequesterName  string
	SignerName     string
	SignerPhone    string
	Method         DeliveryMethod
	SignURL        string
	IsExistingUser bool
	ExpiresAt      time.Time
}

// Signature is the payload attached once the counterparty signs.
// The signer phone is copied from the request, never from the submit
// call. A copy is mirrored onto the parent rental's check-in record.
type Signature struct {
	SignerName    string    `json:"signerName"`
	SignerPhone   string    `json:"signerPhone"`
	SignerAddress string    `json:"signerAddress,omitempty"`
	ImageData     string    `json:"imageData"`
	SignedAt      time.Time `json:"signedAt"`
	IPAddress     string    `json:"ipAddress,omitempty"`
	UserAgent     string    `json:"userAgent,omitempty"`
}

// RequestSummary is the compact form mirrored onto the rental record.
type RequestSummary struct {
	SignID      string     `json:"signId"`
	SignerName  string     `json:"signerName"`
	SignerPhone string     `json:"signerPhone"`
	RequestedAt time.Time  `json:"requestedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Summary builds the mirror payload for the parent rental.
func (r *SignatureRequest) Summary(completedAt time.Time) RequestSummary {
	return RequestSummary{
		SignID:      r.ID,
		SignerName:  r.SignerName,
		SignerPhone: r.SignerPhone,
		RequestedAt: r.RequestedAt,
		CompletedAt: &completedAt,
	}
}
