package repository

import (
	"context"
	"encoding/json"

	"github.com/record365/sign-server-go/internal/database"
	"github.com/record365/sign-server-go/internal/model"
)

type RentalRepository interface {
	FindByID(ctx context.Context, id string) (*model.Rental, error)
	MirrorSignature(ctx context.Context, rentalID string, partnerSignature, signatureRequest json.RawMessage) error
}

type rentalRepo struct {
	db *database.DB
}

func NewRentalRepository(db *database.DB) RentalRepository {
	return &rentalRepo{db: db}
}

func (r *rentalRepo) FindByID(ctx context.Context, id string) (*model.Rental, error) {
	var rental model.Rental
	err := r.db.GetContext(ctx, &rental, `
		SELECT * FROM rentals WHERE id = $1
	`, id)
	return HandleNotFound(&rental, err)
}

// MirrorSignature patches the two check-in signature fields on a rental.
// Used by the reconcile job; the submission path mirrors inside its own
// transaction.
func (r *rentalRepo) MirrorSignature(ctx context.Context, rentalID string, partnerSignature, signatureRequest json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE rentals SET
			check_in_partner_signature = $2,
			check_in_signature_request = $3
		WHERE id = $1
	`, rentalID, partnerSignature, signatureRequest)
	return err
}
