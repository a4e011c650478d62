// Package cloudinary stores project images on Cloudinary
package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"

	"github.com/rebuildfund/rebuildfund-backend/internal/platform/logger"
)

const uploadTimeout = 60 * time.Second

// uploadAPI is the part of the Cloudinary uploader the store needs
type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

// ImageStore implements domain.ImageStore
type ImageStore struct {
	api    uploadAPI
	folder string
	log    *logger.Logger
}

// NewImageStore builds a store from account credentials
func NewImageStore(cloudName, apiKey, apiSecret, folder string, log *logger.Logger) (*ImageStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config error: %w", err)
	}
	return newImageStore(&cld.Upload, folder, log), nil
}

func newImageStore(api uploadAPI, folder string, log *logger.Logger) *ImageStore {
	if strings.TrimSpace(folder) == "" {
		folder = "projects"
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ImageStore{api: api, folder: folder, log: log.With("service", "CloudinaryImageStore")}
}

// Upload stores the image under a public id derived from the project, so a
// new upload replaces the previous one
func (s *ImageStore) Upload(ctx context.Context, projectID uuid.UUID, filename string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	resp, err := s.api.Upload(ctx, r, uploader.UploadParams{
		Folder:   s.folder,
		PublicID: publicID(projectID, filename),
	})
	if err != nil {
		return "", fmt.Errorf("upload error: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("upload error: empty response")
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("upload error: %s", resp.Error.Message)
	}

	s.log.Info("project image uploaded", "project_id", projectID, "public_id", resp.PublicID)
	return resp.SecureURL, nil
}

// publicID keeps a sanitized base name for readability in the media library
func publicID(projectID uuid.UUID, filename string) string {
	base := strings.TrimSuffix(path.Base(strings.ReplaceAll(filename, "\\", "/")), path.Ext(filename))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, base)
	base = strings.Trim(base, "-")
	if base == "" || base == "." {
		return "project-" + projectID.String()
	}
	return "project-" + projectID.String() + "-" + base
}
