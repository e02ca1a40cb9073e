package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Backup copies saved bundles to S3 so a lost disk never loses the
// last trained model
type Backup struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
	log      zerolog.Logger
}

// NewBackup builds an S3 backup target from the ambient AWS config
func NewBackup(ctx context.Context, bucket, prefix string, log zerolog.Logger) (*Backup, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &Backup{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
		log:      log.With().Str("component", "artifact-backup").Logger(),
	}, nil
}

// Upload pushes every file in the store directory under a timestamped
// key prefix
func (b *Backup) Upload(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read artifacts dir: %w", err)
	}

	stamp := time.Now().UTC().Format("2006-01-02T15-04-05Z")
	uploaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}

		key := b.prefix + stamp + "/" + entry.Name()
		_, err = b.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
			Body:   f,
		})
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", key, err)
		}
		uploaded++
	}

	b.log.Info().
		Str("bucket", b.bucket).
		Str("stamp", stamp).
		Int("files", uploaded).
		Msg("Backed up artifacts to S3")
	return nil
}
