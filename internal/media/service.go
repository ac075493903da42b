package media

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/partsdepot/partsdepot-backend/internal/parts"
	"github.com/partsdepot/partsdepot-backend/pkg/config"
	pkgerrors "github.com/partsdepot/partsdepot-backend/pkg/errors"
	"github.com/partsdepot/partsdepot-backend/pkg/logger"
)

// allowedContentTypes maps acceptable photo MIME types to their extension.
var allowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// PresignInput requests one upload URL for a listing photo.
type PresignInput struct {
	FileName    string `json:"file_name" validate:"required"`
	ContentType string `json:"content_type" validate:"required"`
}

// PresignResult carries the signed PUT URL and the object key the client
// should report back on the listing.
type PresignResult struct {
	UploadURL string    `json:"upload_url"`
	ObjectKey string    `json:"object_key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service issues signed upload URLs for part photos.
type Service interface {
	PresignPartPhoto(ctx context.Context, partID uuid.UUID, input PresignInput) (*PresignResult, error)
}

type urlSigner interface {
	SignedURL(bucket, object, contentType string, expires time.Duration) (string, error)
}

type partFinder interface {
	GetPart(ctx context.Context, partID uuid.UUID) (*parts.PartView, error)
}

type service struct {
	signer urlSigner
	parts  partFinder
	cfg    config.GCSConfig
	logg   *logger.Logger
	now    func() time.Time
}

// NewService wires the photo presign service.
func NewService(signer urlSigner, finder partFinder, cfg config.GCSConfig, logg *logger.Logger) (Service, error) {
	if signer == nil {
		return nil, fmt.Errorf("url signer is required")
	}
	if finder == nil {
		return nil, fmt.Errorf("part finder is required")
	}
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		signer: signer,
		parts:  finder,
		cfg:    cfg,
		logg:   logg,
		now:    time.Now,
	}, nil
}

// PresignPartPhoto validates the upload and signs a PUT URL under the
// listing's object prefix. The listing must exist.
func (s *service) PresignPartPhoto(ctx context.Context, partID uuid.UUID, input PresignInput) (*PresignResult, error) {
	contentType := strings.ToLower(strings.TrimSpace(input.ContentType))
	ext, ok := allowedContentTypes[contentType]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported photo content type").
			WithDetails(map[string]any{"content_type": input.ContentType})
	}
	if strings.TrimSpace(input.FileName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file name is required")
	}

	if _, err := s.parts.GetPart(ctx, partID); err != nil {
		return nil, err
	}

	objectKey := path.Join("parts", partID.String(), uuid.NewString()+ext)
	expiry := s.cfg.UploadURLExpiry
	url, err := s.signer.SignedURL(s.cfg.BucketName, objectKey, contentType, expiry)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign upload url")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"part_id":    partID.String(),
		"object_key": objectKey,
	})
	s.logg.Info(logCtx, "photo upload url issued")

	return &PresignResult{
		UploadURL: url,
		ObjectKey: objectKey,
		ExpiresAt: s.now().UTC().Add(expiry),
	}, nil
}
