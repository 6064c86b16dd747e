package storage

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	ErrUnknownEndpoint = errors.New("unknown upload endpoint")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrInvalidPDF      = errors.New("invalid pdf")
)

// Endpoint names an upload category.
type Endpoint string

const (
	EndpointProfileImage Endpoint = "profileImage"
	EndpointWallpaper    Endpoint = "wallpaper"
	EndpointAssetFile    Endpoint = "assetFile"
)

type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	KindPDF   Kind = "pdf"
)

const mb = 1 << 20

// endpointLimits lists the accepted kinds per endpoint with their size caps.
var endpointLimits = map[Endpoint]map[Kind]int64{
	EndpointProfileImage: {KindImage: 4 * mb},
	EndpointWallpaper:    {KindImage: 8 * mb, KindVideo: 32 * mb},
	EndpointAssetFile:    {KindImage: 4 * mb, KindVideo: 16 * mb, KindAudio: 8 * mb, KindPDF: 4 * mb},
}

// ParseEndpoint validates an endpoint name from a request path.
func ParseEndpoint(raw string) (Endpoint, error) {
	e := Endpoint(raw)
	if _, ok := endpointLimits[e]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEndpoint, raw)
	}
	return e, nil
}

// MaxBytes is the largest file any kind of the endpoint accepts.
func (e Endpoint) MaxBytes() int64 {
	var largest int64
	for _, limit := range endpointLimits[e] {
		largest = max(largest, limit)
	}
	return largest
}

// KindOf maps a MIME type to a file kind.
func KindOf(contentType string) (Kind, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return KindImage, true
	case strings.HasPrefix(mediaType, "video/"):
		return KindVideo, true
	case strings.HasPrefix(mediaType, "audio/"):
		return KindAudio, true
	case mediaType == "application/pdf":
		return KindPDF, true
	}
	return "", false
}

// DetectContentType sniffs the payload; the declared type is used only when
// sniffing is inconclusive.
func DetectContentType(head []byte, declared string) string {
	sniffed := http.DetectContentType(head)
	if sniffed == "application/octet-stream" && declared != "" {
		return declared
	}
	return sniffed
}

// Classify checks a file against the endpoint's rules.
func Classify(endpoint Endpoint, contentType string, size int64) (Kind, error) {
	limits, ok := endpointLimits[endpoint]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEndpoint, endpoint)
	}
	kind, ok := KindOf(contentType)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	limit, ok := limits[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s not accepted by %s", ErrUnsupportedType, kind, endpoint)
	}
	if size > limit {
		return "", fmt.Errorf("%w: %s over %dMB", ErrTooLarge, kind, limit/mb)
	}
	return kind, nil
}

// InspectPDF parses the document and returns its page count. The parser
// panics on some malformed inputs; those are reported as ErrInvalidPDF.
func InspectPDF(data []byte) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("%w: %v", ErrInvalidPDF, r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	pages = reader.NumPage()
	if pages == 0 {
		return 0, fmt.Errorf("%w: no pages", ErrInvalidPDF)
	}
	return pages, nil
}

// ObjectKey builds the object path for an upload.
func ObjectKey(profileID string, endpoint Endpoint, id, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		return fmt.Sprintf("%s/%s/%s", profileID, endpoint, id)
	}
	return fmt.Sprintf("%s/%s/%s.%s", profileID, endpoint, id, ext)
}

// Extension picks a file extension for a content type.
func Extension(contentType, filename string) string {
	if idx := strings.LastIndex(filename, "."); idx >= 0 && idx < len(filename)-1 {
		return filename[idx+1:]
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
