package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveState(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Minute)

	// Exhaustive over (status, expiry) combinations.
	tests := []struct {
		name      string
		status    RequestStatus
		expiresAt time.Time
		expected  EffectiveState
	}{
		{"pending and not expired", StatusPending, future, StatePending},
		{"pending and expired", StatusPending, past, StateExpired},
		{"completed and not expired", StatusCompleted, future, StateCompleted},
		{"completed and expired", StatusCompleted, past, StateExpired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DeriveState(tc.status, tc.expiresAt, now))
		})
	}

	t.Run("exactly at expiry is still live", func(t *testing.T) {
		assert.Equal(t, StatePending, DeriveState(StatusPending, now, now))
	})
}

func TestSignatureRequestState(t *testing.T) {
	now := time.Now()

	t.Run("derives from stored fields", func(t *testing.T) {
		req := &SignatureRequest{Status: StatusPending, ExpiresAt: now.Add(72 * time.Hour)}
		assert.Equal(t, StatePending, req.State(now))

		req.Status = StatusCompleted
		assert.Equal(t, StateCompleted, req.State(now))

		req.ExpiresAt = now.Add(-time.Second)
		assert.Equal(t, StateExpired, req.State(now))
	})
}

func TestSummary(t *testing.T) {
	t.Run("copies signer identity from the request", func(t *testing.T) {
		requestedAt := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
		completedAt := requestedAt.Add(time.Hour)

		req := &SignatureRequest{
			ID:          "sr_abcdefgh12345678",
			SignerName:  "김철수",
			SignerPhone: "010-1234-5678",
			RequestedAt: requestedAt,
		}

		summary := req.Summary(completedAt)
		assert.Equal(t, "sr_abcdefgh12345678", summary.SignID)
		assert.Equal(t, "김철수", summary.SignerName)
		assert.Equal(t, "010-1234-5678", summary.SignerPhone)
		assert.Equal(t, requestedAt, summary.RequestedAt)
		assert.Equal(t, completedAt, *summary.CompletedAt)
	})
}

func TestCheckInCompleted(t *testing.T) {
	t.Run("false without completion timestamp", func(t *testing.T) {
		r := &Rental{}
		assert.False(t, r.CheckInCompleted())
	})

	t.Run("true with completion timestamp", func(t *testing.T) {
		ts := time.Now()
		r := &Rental{CheckInCompletedAt: &ts}
		assert.True(t, r.CheckInCompleted())
	})
}
