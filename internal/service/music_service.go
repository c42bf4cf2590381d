package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"musicfiles/internal/model"
	"musicfiles/pkg/apierror"
)

// MusicFileStore is the metadata persistence contract.
type MusicFileStore interface {
	Create(ctx context.Context, f model.MusicFile) (model.MusicFile, error)
	ListByUser(ctx context.Context, userPublicID string) ([]model.MusicFile, error)
}

// MusicDataService owns the metadata side of the upload flow: listing a
// user's files and recording a row once the client finishes its direct
// upload against the presigned URL.
type MusicDataService struct {
	store MusicFileStore
}

func NewMusicDataService(store MusicFileStore) *MusicDataService {
	return &MusicDataService{store: store}
}

func (s *MusicDataService) ListByUser(ctx context.Context, userPublicID string) ([]model.MusicFile, error) {
	return s.store.ListByUser(ctx, userPublicID)
}

// CompleteUpload records metadata for an uploaded object. The public id
// always comes from the caller's validated claims, never the request body.
func (s *MusicDataService) CompleteUpload(ctx context.Context, userPublicID string, req model.CompleteUploadRequest) (model.MusicFile, error) {
	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" {
		return model.MusicFile{}, apierror.Validation("fileName is required", "fileName")
	}

	mediaType := model.MediaTypeFromFileName(fileName)
	if raw := strings.TrimSpace(req.MediaType); raw != "" {
		mediaType = model.MediaType(strings.ToLower(raw))
		switch mediaType {
		case model.MediaTypePdf, model.MediaTypeJpg, model.MediaTypeJpeg,
			model.MediaTypePng, model.MediaTypeMp3, model.MediaTypeMp4, model.MediaTypeOther:
		default:
			return model.MusicFile{}, apierror.Validation("mediaType is not recognized", "mediaType")
		}
	}

	file := model.MusicFile{
		ID:           uuid.NewString(),
		UserPublicID: userPublicID,
		FileName:     fileName,
		S3Key:        ObjectKey(userPublicID, fileName),
		Category:     strings.TrimSpace(req.Category),
		MediaType:    mediaType,
		LastModified: req.LastModified,
		CreatedAt:    time.Now().UTC(),
	}

	return s.store.Create(ctx, file)
}
