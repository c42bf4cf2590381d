package model

import (
	"path/filepath"
	"strings"
	"time"
)

// MediaType enumerates the kinds of files the object store accepts.
type MediaType string

const (
	MediaTypePdf   MediaType = "pdf"
	MediaTypeJpg   MediaType = "jpg"
	MediaTypeJpeg  MediaType = "jpeg"
	MediaTypePng   MediaType = "png"
	MediaTypeMp3   MediaType = "mp3"
	MediaTypeMp4   MediaType = "mp4"
	MediaTypeOther MediaType = "other"
)

// MediaTypeFromFileName derives the media type from a file extension,
// falling back to MediaTypeOther for anything unrecognized.
func MediaTypeFromFileName(fileName string) MediaType {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	switch MediaType(ext) {
	case MediaTypePdf, MediaTypeJpg, MediaTypeJpeg, MediaTypePng, MediaTypeMp3, MediaTypeMp4:
		return MediaType(ext)
	default:
		return MediaTypeOther
	}
}

// MusicFile is a metadata row describing an object uploaded to the bucket.
// The object bytes themselves never pass through this service.
type MusicFile struct {
	ID           string
	UserPublicID string
	FileName     string
	S3Key        string
	Category     string
	MediaType    MediaType
	LastModified *time.Time
	CreatedAt    time.Time
}
