package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

const credentialColumns = `id, provider_id, email, access_token, refresh_token, expires_in, api_key, is_banned, created_at, updated_at`

// CredentialRepository persists [models.UserCredential] records.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new [CredentialRepository] with the given database connection
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// FindByProviderID returns the credential for a Spotify user id.
func (r *CredentialRepository) FindByProviderID(ctx context.Context, providerID string) (*models.UserCredential, error) {
	query := `SELECT ` + credentialColumns + ` FROM user_credentials WHERE provider_id = ?`
	cred, err := scanCredential(r.db.QueryRowContext(ctx, query, providerID))
	if err != nil {
		return nil, classify("find credential by provider id", err)
	}
	return cred, nil
}

// FindByAPIKey returns the credential holding exactly this API key.
//
// An empty key never matches, including records that were never issued a key.
func (r *CredentialRepository) FindByAPIKey(ctx context.Context, apiKey string) (*models.UserCredential, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: find credential by api key", shared.ErrNotFound)
	}

	query := `SELECT ` + credentialColumns + ` FROM user_credentials WHERE api_key = ?`
	cred, err := scanCredential(r.db.QueryRowContext(ctx, query, apiKey))
	if err != nil {
		return nil, classify("find credential by api key", err)
	}
	return cred, nil
}

// Upsert writes the full record keyed by provider id and returns the stored row.
//
// A new provider id is inserted with a generated id. An existing provider id has every mutable column
// overwritten (last writer wins), except the API key and the ban flag. Those belong to
// [CredentialRepository.UpdateAPIKey] and [CredentialRepository.SetBanned], so a login that read the record
// before a key was reissued cannot write the old key back.
// Concurrent inserts of the same provider id collapse into one row; email or api key collisions with
// another record fail with [shared.ErrConflict].
func (r *CredentialRepository) Upsert(ctx context.Context, cred *models.UserCredential) (*models.UserCredential, error) {
	if err := cred.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	if cred.ID() == "" {
		cred.SetID(shared.GenerateID())
	}
	if cred.CreatedAt().IsZero() {
		cred.SetCreatedAt(now)
	}
	cred.SetUpdatedAt(now)

	query := `
		INSERT INTO user_credentials (` + credentialColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider_id) DO UPDATE SET
			email = excluded.email,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_in = excluded.expires_in,
			updated_at = excluded.updated_at
	`

	tokens := cred.Tokens()
	_, err := r.db.ExecContext(ctx, query,
		cred.ID(), cred.ProviderID(), cred.Email(),
		tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresIn,
		nullString(cred.APIKey()), cred.IsBanned(),
		cred.CreatedAt(), cred.UpdatedAt(),
	)
	if err != nil {
		return nil, classify("upsert credential", err)
	}

	return r.FindByProviderID(ctx, cred.ProviderID())
}

// UpdateAPIKey replaces only the API key of the record for providerID.
func (r *CredentialRepository) UpdateAPIKey(ctx context.Context, providerID, apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("%w: api key is required", shared.ErrInvalidInput)
	}

	query := `UPDATE user_credentials SET api_key = ?, updated_at = ? WHERE provider_id = ?`
	result, err := r.db.ExecContext(ctx, query, apiKey, time.Now().UTC(), providerID)
	if err != nil {
		return classify("update api key", err)
	}
	return checkAffected("update api key", result)
}

// UpdateAccessToken replaces only the access token, provided the stored refresh token is still the one
// the new access token was minted from.
//
// A login that replaced the token pair in the meantime makes this a no-op reported as [shared.ErrNotFound].
func (r *CredentialRepository) UpdateAccessToken(ctx context.Context, providerID, refreshToken, accessToken string) error {
	if accessToken == "" {
		return fmt.Errorf("%w: access token is required", shared.ErrInvalidInput)
	}

	query := `
		UPDATE user_credentials
		SET access_token = ?, updated_at = ?
		WHERE provider_id = ? AND refresh_token = ?
	`
	result, err := r.db.ExecContext(ctx, query, accessToken, time.Now().UTC(), providerID, refreshToken)
	if err != nil {
		return classify("update access token", err)
	}
	return checkAffected("update access token", result)
}

// SetBanned toggles the ban flag for providerID.
func (r *CredentialRepository) SetBanned(ctx context.Context, providerID string, banned bool) error {
	query := `UPDATE user_credentials SET is_banned = ?, updated_at = ? WHERE provider_id = ?`
	result, err := r.db.ExecContext(ctx, query, banned, time.Now().UTC(), providerID)
	if err != nil {
		return classify("set banned", err)
	}
	return checkAffected("set banned", result)
}

// Count returns the number of stored credentials.
func (r *CredentialRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_credentials`).Scan(&n); err != nil {
		return 0, classify("count credentials", err)
	}
	return n, nil
}

func scanCredential(row *sql.Row) (*models.UserCredential, error) {
	var (
		id         string
		providerID string
		email      string
		tokens     models.TokenPair
		apiKey     sql.NullString
		banned     bool
		createdAt  time.Time
		updatedAt  time.Time
	)

	err := row.Scan(&id, &providerID, &email,
		&tokens.AccessToken, &tokens.RefreshToken, &tokens.ExpiresIn,
		&apiKey, &banned, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	cred := models.NewUserCredential(providerID, email, tokens)
	cred.SetID(id)
	cred.SetAPIKey(apiKey.String)
	cred.SetBanned(banned)
	cred.SetCreatedAt(createdAt)
	cred.SetUpdatedAt(updatedAt)
	return cred, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
