package repository

import (
	"context"

	"github.com/record365/sign-server-go/internal/database"
	"github.com/record365/sign-server-go/internal/model"
)

type UserRepository interface {
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
}

type userRepo struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE token_hash = $1
	`, tokenHash)
	return HandleNotFound(&user, err)
}

// ExistsByPhone reports whether any account matches the signer phone.
// Precomputed at request creation so the signing page can tell the
// signer whether they already have an account.
func (r *userRepo) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM users WHERE phone_number = $1
	`, phone)
	return count > 0, err
}
