package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/storyhub/storyhub/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	profile := &model.Profile{}
	var avatarURL sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, full_name, avatar_url, created_at, updated_at FROM profiles WHERE id = $1`,
		id,
	).Scan(&profile.ID, &profile.FullName, &avatarURL, &profile.CreatedAt, &profile.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}

	if avatarURL.Valid {
		profile.AvatarURL = &avatarURL.String
	}

	return profile, nil
}

// UpdateFullName は所有者IDで絞り込んでfull_nameのみを部分更新する。
// 更新対象フィールドはfull_nameに限定し、他のフィールドには触れない。
func (r *PostgresProfileRepo) UpdateFullName(ctx context.Context, id, fullName string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET full_name = $1, updated_at = now() WHERE id = $2`,
		fullName, id,
	)
	if err != nil {
		return fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewProfileNotFoundError()
	}

	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
