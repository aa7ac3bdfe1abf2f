package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/record365/sign-server-go/internal/database"
	"github.com/record365/sign-server-go/internal/model"
)

// ErrNotPending is returned by CompleteAndMirror when the guarded update
// matched no row: the request was already completed, expired, or gone.
// The caller re-reads the row to classify which.
var ErrNotPending = errors.New("signature request is not pending")

type SignatureRequestRepository interface {
	Create(ctx context.Context, params model.CreateSignatureRequestParams) (*model.SignatureRequest, error)
	FindByID(ctx context.Context, id string) (*model.SignatureRequest, error)
	FindByRequesterID(ctx context.Context, requesterID string) ([]model.SignatureRequest, error)
	CompleteAndMirror(ctx context.Context, id string, sig model.Signature, completedAt time.Time) error
	FindUnmirrored(ctx context.Context, limit int) ([]model.SignatureRequest, error)
	MarkMirrored(ctx context.Context, id string) error
}

type signatureRequestRepo struct {
	db *database.DB
}

func NewSignatureRequestRepository(db *database.DB) SignatureRequestRepository {
	return &signatureRequestRepo{db: db}
}

func (r *signatureRequestRepo) Create(ctx context.Context, params model.CreateSignatureRequestParams) (*model.SignatureRequest, error) {
	var req model.SignatureRequest
	err := r.db.GetContext(ctx, &req, `
		INSERT INTO signature_requests (
			id, rental_id, rental_title, rental_type, requester_id, requester_name,
			signer_name, signer_phone, method, sign_url, is_existing_user, status, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'pending', $12)
		RETURNING *
	`, params.ID, params.RentalID, params.RentalTitle, params.RentalType,
		params.RequesterID, params.RequesterName, params.SignerName, params.SignerPhone,
		params.Method, params.SignURL, params.IsExistingUser, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *signatureRequestRepo) FindByID(ctx context.Context, id string) (*model.SignatureRequest, error) {
	var req model.SignatureRequest
	err := r.db.GetContext(ctx, &req, `
		SELECT * FROM signature_requests WHERE id = $1
	`, id)
	return HandleNotFound(&req, err)
}

func (r *signatureRequestRepo) FindByRequesterID(ctx context.Context, requesterID string) ([]model.SignatureRequest, error) {
	var reqs []model.SignatureRequest
	err := r.db.SelectContext(ctx, &reqs, `
		SELECT * FROM signature_requests
		WHERE requester_id = $1
		ORDER BY requested_at DESC
	`, requesterID)
	return reqs, err
}

// CompleteAndMirror flips the request to completed and mirrors the
// signature onto the parent rental's check-in record in one transaction.
// The status flip is a conditional update guarded on status='pending'
// and a live expiry, so concurrent submissions cannot both succeed.
func (r *signatureRequestRepo) CompleteAndMirror(ctx context.Context, id string, sig model.Signature, completedAt time.Time) error {
	sigJSON, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signature: %w", err)
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var req model.SignatureRequest
		err := tx.GetContext(ctx, &req, `
			UPDATE signature_requests SET
				status = 'completed',
				signature = $2,
				completed_at = $3,
				mirrored_at = $3
			WHERE id = $1 AND status = 'pending' AND expires_at > $3
			RETURNING *
		`, id, sigJSON, completedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotPending
		}
		if err != nil {
			return fmt.Errorf("complete signature request: %w", err)
		}

		summaryJSON, err := json.Marshal(req.Summary(completedAt))
		if err != nil {
			return fmt.Errorf("marshal request summary: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE rentals SET
				check_in_partner_signature = $2,
				check_in_signature_request = $3
			WHERE id = $1
		`, req.RentalID, sigJSON, summaryJSON)
		if err != nil {
			return fmt.Errorf("mirror signature onto rental: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("rental %s not found for signature mirror", req.RentalID)
		}

		return nil
	})
}

func (r *signatureRequestRepo) FindUnmirrored(ctx context.Context, limit int) ([]model.SignatureRequest, error) {
	var reqs []model.SignatureRequest
	err := r.db.SelectContext(ctx, &reqs, `
		SELECT * FROM signature_requests
		WHERE status = 'completed' AND mirrored_at IS NULL
		ORDER BY completed_at ASC
		LIMIT $1
	`, limit)
	return reqs, err
}

func (r *signatureRequestRepo) MarkMirrored(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE signature_requests SET
			mirrored_at = $2
		WHERE id = $1
	`, id, time.Now())
	return err
}
