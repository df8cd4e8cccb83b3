package storage

import (
	"context"
	"errors"
	"fmt"

	gcs "cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// GCSClient deletes pin images from the Firebase storage bucket.
type GCSClient struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
	name   string
}

// NewGCSClient creates a client for bucket using the given credentials file.
func NewGCSClient(ctx context.Context, bucket, credentialsFile string) (*GCSClient, error) {
	if bucket == "" {
		return nil, errors.New("gcs: bucket name is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	c, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCSClient{client: c, bucket: c.Bucket(bucket), name: bucket}, nil
}

func (g *GCSClient) Name() string { return "gcs" }

func (g *GCSClient) Close() error { return g.client.Close() }

func (g *GCSClient) Delete(ctx context.Context, path string) error {
	if err := g.bucket.Object(path).Delete(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("delete gs://%s/%s: %w", g.name, path, err)
	}
	log.Debug().Str("bucket", g.name).Str("path", path).Msg("deleted object from GCS")
	return nil
}

// Ping reads the bucket attributes.
func (g *GCSClient) Ping(ctx context.Context) error {
	_, err := g.bucket.Attrs(ctx)
	return err
}
