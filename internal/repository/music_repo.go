package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"musicfiles/internal/model"
)

// MusicFileRepository persists metadata rows for objects stored in the
// bucket.
type MusicFileRepository struct {
	pool *pgxpool.Pool
}

func NewMusicFileRepository(pool *pgxpool.Pool) *MusicFileRepository {
	return &MusicFileRepository{pool: pool}
}

func (r *MusicFileRepository) Create(ctx context.Context, f model.MusicFile) (model.MusicFile, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO music_files (id, user_public_id, file_name, s3_key, category, media_type, last_modified, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, f.UserPublicID, f.FileName, f.S3Key, f.Category, string(f.MediaType), f.LastModified, f.CreatedAt)
	if err != nil {
		return model.MusicFile{}, fmt.Errorf("create music file: %w", err)
	}
	return f, nil
}

func (r *MusicFileRepository) ListByUser(ctx context.Context, userPublicID string) ([]model.MusicFile, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_public_id, file_name, s3_key, category, media_type, last_modified, created_at
		 FROM music_files WHERE user_public_id = $1 ORDER BY created_at DESC`,
		userPublicID)
	if err != nil {
		return nil, fmt.Errorf("list music files: %w", err)
	}
	defer rows.Close()

	files := make([]model.MusicFile, 0)
	for rows.Next() {
		var f model.MusicFile
		var mediaType string
		if err := rows.Scan(&f.ID, &f.UserPublicID, &f.FileName, &f.S3Key, &f.Category,
			&mediaType, &f.LastModified, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan music file: %w", err)
		}
		f.MediaType = model.MediaType(mediaType)
		files = append(files, f)
	}
	return files, rows.Err()
}
