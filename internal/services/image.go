package services

import (
	"encoding/base64"
	"strings"

	"github.com/foodgram/apiserver/internal/apperr"
	"github.com/gabriel-vasile/mimetype"
)

const (
	imageMarkerPrefix = "data:image/"
	imageBase64Sep    = ";base64,"
	maxImageBytes     = 10 << 20
)

// rasterTypes are the image formats accepted for recipe pictures.
var rasterTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// decodedImage is an image payload that passed decoding and content sniffing.
type decodedImage struct {
	Data        []byte
	Ext         string
	ContentType string
}

func imageError(msg string) error {
	return apperr.ValidationFields(map[string][]string{"image": {msg}})
}

// decodeImage parses a "data:image/<fmt>;base64,<payload>" string and checks
// that the decoded bytes really are an image.
func decodeImage(payload string) (decodedImage, error) {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, imageMarkerPrefix) {
		return decodedImage{}, imageError("Expected a data:image/<format>;base64 payload.")
	}
	header, encoded, ok := strings.Cut(payload, imageBase64Sep)
	if !ok {
		return decodedImage{}, imageError("Expected a data:image/<format>;base64 payload.")
	}
	declared := strings.ToLower(strings.TrimPrefix(header, imageMarkerPrefix))
	if declared == "" {
		return decodedImage{}, imageError("Missing image format.")
	}
	if base64.StdEncoding.DecodedLen(len(encoded)) > maxImageBytes {
		return decodedImage{}, imageError("Image is too large.")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return decodedImage{}, imageError("Image payload is not valid base64.")
	}
	if len(data) == 0 {
		return decodedImage{}, imageError("Image is empty.")
	}

	mt := mimetype.Detect(data)
	if !isRaster(mt) {
		return decodedImage{}, imageError("Upload a valid image. The file is either not an image or corrupted.")
	}

	// Keep the declared format as the extension when the content agrees with it.
	ext := strings.TrimPrefix(mt.Extension(), ".")
	if mt.Is("image/" + declared) {
		ext = declared
	}
	return decodedImage{Data: data, Ext: ext, ContentType: mt.String()}, nil
}

func isRaster(mt *mimetype.MIME) bool {
	for _, t := range rasterTypes {
		if mt.Is(t) {
			return true
		}
	}
	return false
}
