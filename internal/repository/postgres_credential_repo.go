package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/unisearch/internal/model"
)

// PostgresCredentialRepo はPostgreSQLを使用した認可情報リポジトリ。
type PostgresCredentialRepo struct {
	db *sql.DB
}

// NewPostgresCredentialRepo はPostgresCredentialRepoを生成する。
func NewPostgresCredentialRepo(db *sql.DB) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db}
}

const selectCredentialColumns = `SELECT user_id, provider, access_token, refresh_token, external_id, expiry, created_at, updated_at
	 FROM provider_credentials`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*model.ProviderCredential, error) {
	var (
		cred         model.ProviderCredential
		provider     string
		refreshToken sql.NullString
		externalID   sql.NullString
		expiry       sql.NullTime
	)
	err := row.Scan(&cred.UserID, &provider, &cred.AccessToken, &refreshToken, &externalID, &expiry, &cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		return nil, err
	}
	cred.Provider = model.Provider(provider)
	cred.RefreshToken = refreshToken.String
	cred.ExternalID = externalID.String
	if expiry.Valid {
		t := expiry.Time
		cred.Expiry = &t
	}
	return &cred, nil
}

// Get は指定ユーザー・プロバイダーの認可情報を取得する。見つからない場合はnilを返す。
func (r *PostgresCredentialRepo) Get(ctx context.Context, userID string, provider model.Provider) (*model.ProviderCredential, error) {
	cred, err := scanCredential(r.db.QueryRowContext(ctx,
		selectCredentialColumns+` WHERE user_id = $1 AND provider = $2`,
		userID, string(provider),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return cred, nil
}

// Upsert は認可情報を挿入し、既存行があればトークン類を上書きする。
// refresh_tokenは新しい値が空の場合のみ既存値を維持する。
func (r *PostgresCredentialRepo) Upsert(ctx context.Context, cred *model.ProviderCredential) error {
	var expiry sql.NullTime
	if cred.Expiry != nil {
		expiry = sql.NullTime{Time: *cred.Expiry, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO provider_credentials (user_id, provider, access_token, refresh_token, external_id, expiry, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		 ON CONFLICT (user_id, provider) DO UPDATE SET
		   access_token = EXCLUDED.access_token,
		   refresh_token = COALESCE(EXCLUDED.refresh_token, provider_credentials.refresh_token),
		   external_id = EXCLUDED.external_id,
		   expiry = EXCLUDED.expiry,
		   updated_at = now()`,
		cred.UserID, string(cred.Provider), cred.AccessToken,
		nullString(cred.RefreshToken), nullString(cred.ExternalID), expiry,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}
	return nil
}

// ListByUserID は指定ユーザーの全認可情報を返す。1件もない場合は空のマップを返す。
func (r *PostgresCredentialRepo) ListByUserID(ctx context.Context, userID string) (model.Credentials, error) {
	rows, err := r.db.QueryContext(ctx,
		selectCredentialColumns+` WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	creds := model.Credentials{}
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		creds[cred.Provider] = cred
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate credentials: %w", err)
	}
	return creds, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ CredentialRepository = (*PostgresCredentialRepo)(nil)
