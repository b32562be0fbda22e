package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/storyhub/storyhub/internal/model"
)

// PostgresStoryRepo はPostgreSQLを使用したストーリーリポジトリ。
type PostgresStoryRepo struct {
	db *sql.DB
}

// NewPostgresStoryRepo はPostgresStoryRepoを生成する。
func NewPostgresStoryRepo(db *sql.DB) *PostgresStoryRepo {
	return &PostgresStoryRepo{db: db}
}

const storyWithAuthorColumns = `
	s.id, s.title, s.description, s.content,
	s.cover_image_url, s.audio_url, s.audio_status,
	s.view_count, s.file_path, s.file_type,
	s.author_id, s.created_at, s.updated_at,
	COALESCE(p.full_name, '')`

func scanStoryWithAuthor(scanner interface{ Scan(dest ...any) error }) (*model.StoryWithAuthor, error) {
	sw := &model.StoryWithAuthor{}
	err := scanner.Scan(
		&sw.ID, &sw.Title, &sw.Description, &sw.Content,
		&sw.CoverImageURL, &sw.AudioURL, &sw.AudioStatus,
		&sw.ViewCount, &sw.FilePath, &sw.FileType,
		&sw.AuthorID, &sw.CreatedAt, &sw.UpdatedAt,
		&sw.AuthorName,
	)
	if err != nil {
		return nil, err
	}
	return sw, nil
}

// FindByID は指定IDのストーリーを投稿者名付きで取得する。
// 投稿者のプロフィールが存在しない場合、投稿者名は空文字列になる。
func (r *PostgresStoryRepo) FindByID(ctx context.Context, id string) (*model.StoryWithAuthor, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+storyWithAuthorColumns+`
		 FROM stories s
		 LEFT JOIN profiles p ON p.id = s.author_id
		 WHERE s.id = $1`,
		id,
	)

	sw, err := scanStoryWithAuthor(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find story: %w", err)
	}
	return sw, nil
}

// ListAll は全ストーリーを投稿者名付きで新着順に取得する。
func (r *PostgresStoryRepo) ListAll(ctx context.Context) ([]*model.StoryWithAuthor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+storyWithAuthorColumns+`
		 FROM stories s
		 LEFT JOIN profiles p ON p.id = s.author_id
		 ORDER BY s.created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer rows.Close()

	var stories []*model.StoryWithAuthor
	for rows.Next() {
		sw, err := scanStoryWithAuthor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		stories = append(stories, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stories: %w", err)
	}

	return stories, nil
}

// ListByAuthor は指定投稿者のストーリーを新着順に取得する。
func (r *PostgresStoryRepo) ListByAuthor(ctx context.Context, authorID string) ([]*model.StoryWithAuthor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+storyWithAuthorColumns+`
		 FROM stories s
		 LEFT JOIN profiles p ON p.id = s.author_id
		 WHERE s.author_id = $1
		 ORDER BY s.created_at DESC`,
		authorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories by author: %w", err)
	}
	defer rows.Close()

	var stories []*model.StoryWithAuthor
	for rows.Next() {
		sw, err := scanStoryWithAuthor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		stories = append(stories, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stories: %w", err)
	}

	return stories, nil
}

// Create はストーリーを作成する。
func (r *PostgresStoryRepo) Create(ctx context.Context, story *model.Story) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO stories (
			id, title, description, content,
			cover_image_url, audio_url, audio_status,
			view_count, file_path, file_type,
			author_id, created_at, updated_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		story.ID, story.Title, story.Description, story.Content,
		story.CoverImageURL, story.AudioURL, story.AudioStatus,
		story.ViewCount, story.FilePath, story.FileType,
		story.AuthorID, story.CreatedAt, story.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create story: %w", err)
	}
	return nil
}

// AttachFile はアップロード完了後に添付ファイルの情報をストーリーへ記録する。
func (r *PostgresStoryRepo) AttachFile(ctx context.Context, id, filePath, fileType string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE stories
		 SET file_path = $1, file_type = $2, updated_at = now()
		 WHERE id = $3`,
		filePath, fileType, id,
	)
	if err != nil {
		return fmt.Errorf("failed to attach file: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return model.NewStoryNotFoundError(id)
	}
	return nil
}

// IncrementViewCount は閲覧数を単一のUPDATE文で加算する。
// 読み取りと書き込みを分けると同時アクセス時に加算が失われるため、
// DB側で加算することで競合を避ける。
func (r *PostgresStoryRepo) IncrementViewCount(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE stories
		 SET view_count = view_count + 1, updated_at = now()
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to increment view count: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return model.NewStoryNotFoundError(id)
	}
	return nil
}

// DeleteByIDAndAuthor はIDと投稿者IDの両方が一致するストーリーを削除する。
// 他人のストーリーはWHERE句で弾かれるため、存在チェックと削除の間に
// 権限チェックを挟む必要がない。削除された場合にtrueを返す。
func (r *PostgresStoryRepo) DeleteByIDAndAuthor(ctx context.Context, id, authorID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM stories WHERE id = $1 AND author_id = $2`,
		id, authorID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete story: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

// ListFilePaths はDBが参照している全オブジェクトキーを返す。
// 添付ファイル・カバー画像・音声ファイルをすべて含む。
// 孤児オブジェクトの掃除に使用する。
func (r *PostgresStoryRepo) ListFilePaths(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT file_path FROM stories WHERE file_path <> ''
		 UNION
		 SELECT cover_image_url FROM stories WHERE cover_image_url <> ''
		 UNION
		 SELECT audio_url FROM stories WHERE audio_url <> ''`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list file paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan file path: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate file paths: %w", err)
	}

	return paths, nil
}

// ClaimPendingForAudio は音声未生成のストーリーを最大limit件確保し、
// audio_statusをprocessingへ遷移させる。FOR UPDATE SKIP LOCKEDにより
// 複数ワーカーが同じ行を確保することはない。
func (r *PostgresStoryRepo) ClaimPendingForAudio(ctx context.Context, limit int) ([]*model.Story, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, title, description, content,
		        cover_image_url, audio_url, audio_status,
		        view_count, file_path, file_type,
		        author_id, created_at, updated_at
		 FROM stories
		 WHERE audio_status = $1
		 ORDER BY created_at
		 LIMIT $2
		 FOR UPDATE SKIP LOCKED`,
		model.AudioStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending stories: %w", err)
	}

	var stories []*model.Story
	for rows.Next() {
		s := &model.Story{}
		err := rows.Scan(
			&s.ID, &s.Title, &s.Description, &s.Content,
			&s.CoverImageURL, &s.AudioURL, &s.AudioStatus,
			&s.ViewCount, &s.FilePath, &s.FileType,
			&s.AuthorID, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan pending story: %w", err)
		}
		stories = append(stories, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate pending stories: %w", err)
	}
	rows.Close()

	for _, s := range stories {
		_, err := tx.ExecContext(ctx,
			`UPDATE stories SET audio_status = $1, updated_at = now() WHERE id = $2`,
			model.AudioStatusProcessing, s.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to mark story as processing: %w", err)
		}
		s.AudioStatus = model.AudioStatusProcessing
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim transaction: %w", err)
	}

	return stories, nil
}

// SetAudioResult は音声生成の結果を記録する。
func (r *PostgresStoryRepo) SetAudioResult(ctx context.Context, id, audioURL string, status model.AudioStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE stories
		 SET audio_url = $1, audio_status = $2, updated_at = now()
		 WHERE id = $3`,
		audioURL, status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set audio result: %w", err)
	}
	return nil
}

// compile-time interface check
var _ StoryRepository = (*PostgresStoryRepo)(nil)
