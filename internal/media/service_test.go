package media

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/partsdepot/partsdepot-backend/internal/parts"
	"github.com/partsdepot/partsdepot-backend/pkg/config"
	pkgerrors "github.com/partsdepot/partsdepot-backend/pkg/errors"
	"github.com/partsdepot/partsdepot-backend/pkg/logger"
)

type fakeSigner struct {
	lastObject      string
	lastContentType string
	lastExpires     time.Duration
	err             error
}

func (f *fakeSigner) SignedURL(bucket, object, contentType string, expires time.Duration) (string, error) {
	f.lastObject = object
	f.lastContentType = contentType
	f.lastExpires = expires
	if f.err != nil {
		return "", f.err
	}
	return "https://storage.example.com/" + bucket + "/" + object, nil
}

type fakeFinder struct {
	known map[uuid.UUID]bool
}

func (f *fakeFinder) GetPart(_ context.Context, partID uuid.UUID) (*parts.PartView, error) {
	if f.known[partID] {
		return &parts.PartView{ID: partID}, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "part not found")
}

func newTestService(t *testing.T, signer *fakeSigner, finder *fakeFinder) Service {
	t.Helper()
	cfg := config.GCSConfig{BucketName: "pd-part-photos", UploadURLExpiry: 15 * time.Minute}
	logg := logger.New(logger.Options{ServiceName: "media-test", Output: io.Discard})
	svc, err := NewService(signer, finder, cfg, logg)
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func TestPresignPartPhotoSignsUnderListingPrefix(t *testing.T) {
	t.Parallel()

	partID := uuid.New()
	signer := &fakeSigner{}
	svc := newTestService(t, signer, &fakeFinder{known: map[uuid.UUID]bool{partID: true}})

	result, err := svc.PresignPartPhoto(context.Background(), partID, PresignInput{
		FileName:    "front.jpg",
		ContentType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}

	prefix := "parts/" + partID.String() + "/"
	if !strings.HasPrefix(result.ObjectKey, prefix) {
		t.Fatalf("object key %q not under %q", result.ObjectKey, prefix)
	}
	if !strings.HasSuffix(result.ObjectKey, ".jpg") {
		t.Fatalf("object key %q missing extension", result.ObjectKey)
	}
	if signer.lastContentType != "image/jpeg" {
		t.Fatalf("unexpected content type %q", signer.lastContentType)
	}
	if signer.lastExpires != 15*time.Minute {
		t.Fatalf("unexpected expiry %s", signer.lastExpires)
	}
	if result.UploadURL == "" {
		t.Fatal("expected signed url")
	}
}

func TestPresignPartPhotoRejectsUnknownContentType(t *testing.T) {
	t.Parallel()

	partID := uuid.New()
	svc := newTestService(t, &fakeSigner{}, &fakeFinder{known: map[uuid.UUID]bool{partID: true}})

	_, err := svc.PresignPartPhoto(context.Background(), partID, PresignInput{
		FileName:    "notes.pdf",
		ContentType: "application/pdf",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPresignPartPhotoRequiresExistingListing(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeSigner{}, &fakeFinder{known: map[uuid.UUID]bool{}})

	_, err := svc.PresignPartPhoto(context.Background(), uuid.New(), PresignInput{
		FileName:    "front.png",
		ContentType: "image/png",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
