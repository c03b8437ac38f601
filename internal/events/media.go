package events

import (
	"context"
	"path"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/access"
	"github.com/aura-events/backend/internal/apperr"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/store"
)

// Media kinds accepted by MediaUploadURL. They name the event field the
// resulting object URL belongs in.
const (
	MediaImage    = "image"
	MediaMP4Video = "mp4Video"
	MediaM4Audio  = "m4Audio"
)

var mediaTypes = map[string]map[string]string{
	MediaImage: {
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/webp": ".webp",
		"image/gif":  ".gif",
	},
	MediaMP4Video: {
		"video/mp4": ".mp4",
	},
	MediaM4Audio: {
		"audio/mp4":   ".m4a",
		"audio/x-m4a": ".m4a",
	},
}

// Presigner issues direct-upload URLs. The core stores only the resulting
// object URL; it never sees the media itself.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string) (string, time.Time, error)
	ObjectURL(key string) string
}

// MediaRemover is implemented by presigners that can also delete objects.
type MediaRemover interface {
	DeleteURLs(ctx context.Context, urls ...string) error
}

// MediaUpload is returned by MediaUploadURL. ObjectURL is what the client
// stores on the event once the upload finishes.
type MediaUpload struct {
	Field     string    `json:"field"`
	UploadURL string    `json:"upload_url"`
	ObjectURL string    `json:"object_url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MediaKey returns events/{eventID}/{kind}/{uuid}{ext}.
func MediaKey(eventID, kind, ext string) string {
	return path.Join("events", eventID, kind, uuid.New().String()+ext)
}

// MediaExtension validates contentType for kind and returns the object
// extension to use.
func MediaExtension(kind, contentType string) (string, error) {
	types, ok := mediaTypes[kind]
	if !ok {
		return "", apperr.Validation("kind must be image, mp4Video or m4Audio")
	}
	ext, ok := types[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", apperr.Validation("content type %q is not accepted for %s", contentType, kind)
	}
	return ext, nil
}

// MediaUploadURL returns a presigned upload for one of the event's media
// fields. Managers only.
func (s *Service) MediaUploadURL(ctx context.Context, caller models.Caller, eventID, kind, contentType string) (*MediaUpload, error) {
	err := validation.Errors{
		"kind":         validation.Validate(kind, validation.Required),
		"content_type": validation.Validate(contentType, validation.Required),
	}.Filter()
	if err := apperr.FromValidation(err); err != nil {
		return nil, err
	}
	ext, err := MediaExtension(kind, contentType)
	if err != nil {
		return nil, err
	}
	e, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	if err := access.RequireManager(e, caller); err != nil {
		return nil, err
	}
	if s.media == nil {
		return nil, apperr.Internal(errMediaDisabled, "media uploads unavailable")
	}
	key := MediaKey(eventID, kind, ext)
	url, expires, err := s.media.PresignPut(ctx, key, strings.ToLower(strings.TrimSpace(contentType)))
	if err != nil {
		return nil, apperr.Internal(err, "presign upload")
	}
	return &MediaUpload{
		Field:     kind,
		UploadURL: url,
		ObjectURL: s.media.ObjectURL(key),
		Key:       key,
		ExpiresAt: expires,
	}, nil
}

// removeMedia deletes the stored media of a deleted event. Failures are
// logged only; the event is already gone.
func (s *Service) removeMedia(ctx context.Context, e *models.Event) {
	rm, ok := s.media.(MediaRemover)
	if !ok {
		return
	}
	var urls []string
	for _, u := range []string{e.Image, e.MP4Video, e.M4Audio} {
		if u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return
	}
	if err := rm.DeleteURLs(ctx, urls...); err != nil {
		s.logger.Warn("media cleanup failed", zap.String("event_id", e.ID), zap.Error(err))
	}
}
