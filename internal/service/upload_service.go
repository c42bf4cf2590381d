package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"musicfiles/internal/model"
	"musicfiles/pkg/apierror"
)

// ObjectPresigner produces presigned upload URLs against the object store.
type ObjectPresigner interface {
	PresignedUploadURL(ctx context.Context, key string, expiry time.Duration) (*url.URL, error)
}

// FileUploadService hands out short-lived presigned PUT URLs. Object bytes
// flow directly between the client and the bucket.
type FileUploadService struct {
	presigner ObjectPresigner
	urlTTL    time.Duration
}

func NewFileUploadService(presigner ObjectPresigner, urlTTL time.Duration) *FileUploadService {
	if urlTTL <= 0 {
		urlTTL = time.Minute
	}
	return &FileUploadService{presigner: presigner, urlTTL: urlTTL}
}

// GenerateUploadURL returns a presigned PUT URL for the caller's own prefix.
func (s *FileUploadService) GenerateUploadURL(ctx context.Context, userPublicID string, fileName string) (model.PresignedURLResponse, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return model.PresignedURLResponse{}, apierror.Validation("fileName is required", "fileName")
	}
	if strings.ContainsAny(fileName, "/\\") || strings.Contains(fileName, "..") {
		return model.PresignedURLResponse{}, apierror.Validation("fileName must not contain path separators", "fileName")
	}

	key := ObjectKey(userPublicID, fileName)
	expiresAt := time.Now().UTC().Add(s.urlTTL)

	presigned, err := s.presigner.PresignedUploadURL(ctx, key, s.urlTTL)
	if err != nil {
		return model.PresignedURLResponse{}, err
	}

	return model.PresignedURLResponse{
		UploadURL: presigned.String(),
		S3Key:     key,
		ExpiresAt: expiresAt,
	}, nil
}

// ObjectKey places every object under its owner's public id prefix.
func ObjectKey(userPublicID string, fileName string) string {
	return "users/" + userPublicID + "/" + fileName
}
