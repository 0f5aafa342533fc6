package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config contains credentials and placement for mirrored uploads.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Mirror copies upload payloads to Cloudinary so records can link to a CDN copy.
type Mirror struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary mirror.
func New(cfg Config, logger zerolog.Logger) (*Mirror, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Mirror{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "cloudinary_mirror").Logger(),
	}, nil
}

// Upload stores the file and returns its secure URL and public id. Files are kept as raw
// assets so documents are served back byte for byte.
func (m *Mirror) Upload(ctx context.Context, name string, reader io.Reader) (string, string, error) {
	overwrite := false
	params := uploader.UploadParams{
		Folder:       m.folder,
		PublicID:     PublicID(name),
		ResourceType: "raw",
		Overwrite:    &overwrite,
		Tags:         api.CldAPIArray{"campus-portal"},
	}

	result, err := m.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", "", fmt.Errorf("mirror upload %s: %w", name, err)
	}
	if result.Error.Message != "" {
		return "", "", fmt.Errorf("mirror upload %s: %s", name, result.Error.Message)
	}

	m.logger.Debug().Str("public_id", result.PublicID).Int("bytes", result.Bytes).Msg("upload mirrored")
	return result.SecureURL, result.PublicID, nil
}

// Delete removes a mirrored asset by public id. A missing asset is not an error.
func (m *Mirror) Delete(ctx context.Context, publicID string) error {
	result, err := m.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: "raw",
	})
	if err != nil {
		return fmt.Errorf("mirror delete %s: %w", publicID, err)
	}
	if result.Error.Message != "" {
		return fmt.Errorf("mirror delete %s: %s", publicID, result.Error.Message)
	}

	m.logger.Debug().Str("public_id", publicID).Str("result", result.Result).Msg("mirrored upload removed")
	return nil
}

// PublicID derives a collision-free asset id from a file name, keeping its extension.
func PublicID(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "upload"
	}

	return fmt.Sprintf("%s-%s%s", base, uuid.NewString()[:8], ext)
}
