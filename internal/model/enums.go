package model

import "time"

// RequestStatus is the stored state of a signature request.
// Only pending -> completed is a legal transition.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusCompleted RequestStatus = "completed"
)

// DeliveryMethod is the channel the signing link is sent over.
type DeliveryMethod string

const (
	MethodSMS   DeliveryMethod = "sms"
	MethodKakao DeliveryMethod = "kakao"
)

func ValidDeliveryMethods() []string {
	return []string{string(MethodSMS), string(MethodKakao)}
}

// DeliveryStatus reports which channel the signing-link notification
// actually went out on. Delivery is best effort: "failed" does not fail
// the request creation.
type DeliveryStatus string

const (
	DeliveredSMS   DeliveryStatus = "sms"
	DeliveredKakao DeliveryStatus = "kakao"
	DeliveryFailed DeliveryStatus = "failed"
)

// EffectiveState is the functional state of a request. Expiry is
// time-derived, not stored, so the stored status alone is never enough:
// every gate must derive the effective state first.
type EffectiveState string

const (
	StatePending   EffectiveState = "pending"
	StateCompleted EffectiveState = "completed"
	StateExpired   EffectiveState = "expired"
)

// DeriveState computes the effective state from the stored status and
// the expiry timestamp. Expiry wins regardless of status: once past
// expiresAt the record is terminal and every mutation is rejected.
func DeriveState(status RequestStatus, expiresAt, now time.Time) EffectiveState {
	if now.After(expiresAt) {
		return StateExpired
	}
	if status == StatusCompleted {
		return StateCompleted
	}
	return StatePending
}
