package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"github.com/anucarts/marketplace-backend/pkg/logger"
	"github.com/google/uuid"
)

// Scope groups uploaded objects by what they illustrate.
type Scope string

const (
	ScopeProduct   Scope = "products"
	ScopeOrderLine Scope = "orders"
)

type uploader interface {
	Upload(ctx context.Context, object, contentType string, data []byte) (string, error)
}

// Service stores validated images in the blob store and returns their URLs.
type Service interface {
	StoreImage(ctx context.Context, scope Scope, ownerID uuid.UUID, data []byte) (string, error)
	MaxBytes() int64
}

type service struct {
	store    uploader
	maxBytes int64
	timeout  time.Duration
	logg     *logger.Logger
}

// NewService constructs a media service backed by the provided uploader.
func NewService(store uploader, maxBytes int64, timeout time.Duration, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("blob uploader required")
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be positive")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("upload timeout must be positive")
	}
	return &service{
		store:    store,
		maxBytes: maxBytes,
		timeout:  timeout,
		logg:     logg,
	}, nil
}

func (s *service) MaxBytes() int64 {
	return s.maxBytes
}

func (s *service) StoreImage(ctx context.Context, scope Scope, ownerID uuid.UUID, data []byte) (string, error) {
	if ownerID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "owner identity missing")
	}
	if int64(len(data)) > s.maxBytes {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("image must be at most %d bytes", s.maxBytes)).
			WithDetails(map[string]any{"maxBytes": s.maxBytes})
	}
	mimeType, ext, err := sniffImage(data)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "image must be png, jpeg, or webp")
	}

	object := buildObjectKey(scope, ownerID, uuid.New(), ext)

	uploadCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	url, err := s.store.Upload(uploadCtx, object, mimeType, data)
	if err != nil {
		if errors.Is(uploadCtx.Err(), context.DeadlineExceeded) {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "image upload timed out")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upload image")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"object":     object,
			"mime_type":  mimeType,
			"size_bytes": len(data),
		})
		s.logg.Info(logCtx, "image stored")
	}
	return url, nil
}

func buildObjectKey(scope Scope, ownerID, objectID uuid.UUID, ext string) string {
	if scope == "" {
		scope = ScopeProduct
	}
	return fmt.Sprintf("%s/%s/%s.%s", scope, ownerID, objectID, ext)
}
