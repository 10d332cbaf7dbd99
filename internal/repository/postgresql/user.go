package postgresql

import (
	"context"
	"fmt"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/domain/user"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/database"
)

type userRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) user.UserRepository {
	return &userRepository{db: db}
}

const userColumns = `
	id, email, full_name, password_hash,
	oauth_provider, oauth_provider_id,
	created_at, updated_at
`

// GetByEmail implements user.UserRepository.
func (u *userRepository) GetByEmail(ctx context.Context, email string) (user.User, error) {
	q := GetQuerier(ctx, u.db)

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var usr user.User
	err := q.QueryRow(ctx, query, email).Scan(
		&usr.ID, &usr.Email, &usr.FullName, &usr.PasswordHash,
		&usr.OAuthProvider, &usr.OAuthProviderID,
		&usr.CreatedAt, &usr.UpdatedAt,
	)
	if err != nil {
		// pgx.ErrNoRows passes through so callers can treat it as absence
		return user.User{}, err
	}
	return usr, nil
}

// GetByID implements user.UserRepository.
func (u *userRepository) GetByID(ctx context.Context, id string) (user.User, error) {
	q := GetQuerier(ctx, u.db)

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var usr user.User
	err := q.QueryRow(ctx, query, id).Scan(
		&usr.ID, &usr.Email, &usr.FullName, &usr.PasswordHash,
		&usr.OAuthProvider, &usr.OAuthProviderID,
		&usr.CreatedAt, &usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

// Create implements user.UserRepository.
func (u *userRepository) Create(ctx context.Context, newUser user.User) (user.User, error) {
	q := GetQuerier(ctx, u.db)

	query := `
		INSERT INTO users (email, full_name, password_hash, oauth_provider, oauth_provider_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		newUser.Email,
		newUser.FullName,
		newUser.PasswordHash,
		newUser.OAuthProvider,
		newUser.OAuthProviderID,
	).Scan(&newUser.ID, &newUser.CreatedAt, &newUser.UpdatedAt)

	if err != nil {
		return user.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return newUser, nil
}

// LinkGoogleAccount implements user.UserRepository.
func (u *userRepository) LinkGoogleAccount(ctx context.Context, googleID string, email string) (user.User, error) {
	q := GetQuerier(ctx, u.db)

	query := `
		UPDATE users
		SET oauth_provider = 'google',
		    oauth_provider_id = $1,
		    updated_at = NOW()
		WHERE email = $2
		RETURNING ` + userColumns

	var usr user.User
	err := q.QueryRow(ctx, query, googleID, email).Scan(
		&usr.ID, &usr.Email, &usr.FullName, &usr.PasswordHash,
		&usr.OAuthProvider, &usr.OAuthProviderID,
		&usr.CreatedAt, &usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, fmt.Errorf("failed to link google account: %w", err)
	}
	return usr, nil
}
