package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"orionos/internal/util"
	"orionos/pkg/domain"
	"orionos/pkg/storage"
)

// UploadInput is one file posted to an upload endpoint.
type UploadInput struct {
	Endpoint    string
	Filename    string
	ContentType string
	Body        io.Reader
}

// UploadResult describes a stored upload.
type UploadResult struct {
	URL         string       `json:"url"`
	Key         string       `json:"key"`
	Endpoint    string       `json:"endpoint"`
	Kind        string       `json:"kind"`
	ContentType string       `json:"contentType"`
	Size        int64        `json:"size,string"`
	Pages       int          `json:"pages,omitempty"`
	Drive       domain.Drive `json:"drive"`
}

// Upload validates and stores a file, charging it to the profile's drive.
// A write that would pass the storage limit fails with ErrQuotaExceeded
// and leaves the drive and the bucket unchanged.
func (a *App) Upload(ctx context.Context, profileID string, in UploadInput) (UploadResult, error) {
	if a.objects == nil {
		return UploadResult{}, ErrStorageDisabled
	}
	endpoint, err := storage.ParseEndpoint(in.Endpoint)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	data, err := io.ReadAll(io.LimitReader(in.Body, endpoint.MaxBytes()+1))
	if err != nil {
		return UploadResult{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > endpoint.MaxBytes() {
		return UploadResult{}, fmt.Errorf("%w: %s accepts at most %d bytes", ErrPayloadTooLarge, endpoint, endpoint.MaxBytes())
	}
	if len(data) == 0 {
		return UploadResult{}, invalid("empty upload")
	}
	size := int64(len(data))
	contentType := storage.DetectContentType(data, in.ContentType)
	kind, err := storage.Classify(endpoint, contentType, size)
	if err != nil {
		return UploadResult{}, uploadErr(err)
	}
	result := UploadResult{Endpoint: string(endpoint), Kind: string(kind), ContentType: contentType, Size: size}
	if kind == storage.KindPDF {
		pages, err := storage.InspectPDF(data)
		if err != nil {
			return UploadResult{}, uploadErr(err)
		}
		result.Pages = pages
	}

	drive, ok, err := a.store.GetDriveByProfile(ctx, profileID)
	if err != nil {
		return UploadResult{}, storeErr("load drive", err)
	}
	if !ok {
		return UploadResult{}, fmt.Errorf("drive for %s: %w", profileID, ErrNotFound)
	}
	if drive.TotalStorage+size > drive.StorageLimit {
		return UploadResult{}, ErrQuotaExceeded
	}

	key := storage.ObjectKey(profileID, endpoint, util.NewID(), storage.Extension(contentType, in.Filename))
	if err := a.objects.Put(ctx, key, bytes.NewReader(data), size, contentType); err != nil {
		return UploadResult{}, fmt.Errorf("store object: %w", err)
	}
	drive, err = a.store.AddDriveUsage(ctx, profileID, size)
	if err != nil {
		// the pre-check raced with another upload
		if delErr := a.objects.Delete(ctx, key); delErr != nil {
			util.LoggerFromContext(ctx).Warn("orphaned upload", "key", key, "err", delErr)
		}
		return UploadResult{}, storeErr("charge drive", err)
	}
	url, err := a.objects.URL(ctx, key)
	if err != nil {
		return UploadResult{}, fmt.Errorf("object url: %w", err)
	}
	result.URL = url
	result.Key = key
	result.Drive = drive

	switch endpoint {
	case storage.EndpointProfileImage:
		profile, err := loadProfile(ctx, a.store, profileID)
		if err != nil {
			return UploadResult{}, err
		}
		profile.ImageURL = url
		if err := a.store.UpdateProfile(ctx, profile); err != nil {
			return UploadResult{}, storeErr("update profile image", err)
		}
	case storage.EndpointWallpaper:
		if _, err := a.UpdateDesktopSettings(ctx, profileID, DesktopPatch{Wallpaper: &url}); err != nil {
			return UploadResult{}, err
		}
	}
	util.LoggerFromContext(ctx).Info("upload stored",
		"profile_id", profileID,
		"endpoint", endpoint,
		"kind", kind,
		"size", size,
		"key", key,
	)
	return result, nil
}

func uploadErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		return fmt.Errorf("%w: %v", ErrPayloadTooLarge, err)
	case errors.Is(err, storage.ErrUnsupportedType), errors.Is(err, storage.ErrInvalidPDF):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return err
}
