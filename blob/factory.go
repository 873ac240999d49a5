package blob

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Options selects and configures a backend.
type Options struct {
	Backend  string // local, s3, gcs
	Dir      string
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

// Open builds the Store named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "", "local":
		return NewLocalStore(opts.Dir)
	case "s3":
		return NewS3Store(ctx, S3Config{
			Bucket:   opts.Bucket,
			Region:   opts.Region,
			Endpoint: opts.Endpoint,
			Prefix:   opts.Prefix,
		})
	case "gcs":
		return NewGCSStore(ctx, GCSConfig{Bucket: opts.Bucket, Prefix: opts.Prefix})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

func contentType(ref string) string {
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".webm":
		return "audio/webm"
	case ".ogg":
		return "audio/ogg"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

// ContentType is the MIME type served for ref.
func ContentType(ref string) string {
	return contentType(ref)
}
