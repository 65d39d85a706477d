package readings

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"fieldmap/internal/types"
)

// S3Client abstracts S3 object retrieval for testability.
// *s3.Client satisfies it.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads the reading table from a single S3 object.
type S3Source struct {
	client S3Client
	bucket string
	key    string
}

// NewS3Source creates an S3Source for bucket/key.
func NewS3Source(client S3Client, bucket, key string) *S3Source {
	return &S3Source{client: client, bucket: bucket, key: key}
}

// Name implements types.ReadingSource.
func (s *S3Source) Name() string { return fmt.Sprintf("s3://%s/%s", s.bucket, s.key) }

// Load implements types.ReadingSource.
func (s *S3Source) Load(ctx context.Context) ([]types.SensorReading, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		details := map[string]any{"bucket": s.bucket, "key": s.key}
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, sourceError("could not find specified data for the period mentioned", err, details)
		}
		return nil, sourceError(fmt.Sprintf("failed to fetch %s", s.Name()), err, details)
	}
	defer out.Body.Close()

	return DecodeStream(out.Body)
}
