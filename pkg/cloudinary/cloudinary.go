package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Storage stores submission files in Cloudinary. It satisfies service.FileStorage.
type Storage struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Cloudinary-backed storage.
func New(cfg Config, logger zerolog.Logger) (*Storage, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Storage{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "cloudinary_storage").Logger(),
		now:    time.Now,
	}, nil
}

// Upload stores the file and returns its secure URL. Images keep Cloudinary's image
// pipeline; documents and archives are stored as raw assets with their extension.
func (s *Storage) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	resourceType := resourceTypeFor(name)
	params := uploader.UploadParams{
		Folder:         s.folder,
		PublicID:       buildPublicID(name, resourceType, s.now()),
		ResourceType:   resourceType,
		Overwrite:      api.Bool(false),
		UniqueFilename: api.Bool(false),
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload submission file: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected submission file: %s", result.Error.Message)
	}

	s.logger.Info().
		Str("public_id", result.PublicID).
		Str("resource_type", resourceType).
		Int("bytes", result.Bytes).
		Msg("submission file uploaded to cloudinary")

	return result.SecureURL, nil
}

func resourceTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return "image"
	default:
		return "raw"
	}
}

// buildPublicID derives a collision-resistant public id. Raw assets keep the extension
// because Cloudinary serves them under the public id verbatim.
func buildPublicID(name, resourceType string, at time.Time) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "submission"
	}

	id := fmt.Sprintf("%s-%d", base, at.Unix())
	if resourceType == "raw" && ext != "" {
		id += ext
	}
	return id
}
