package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// New returns an S3 backed store when bucketName is set, otherwise an
// in-memory store.
func New(ctx context.Context, bucketName, encryptKey string) (TokenStore, error) {
	if bucketName == "" {
		return NewMemoryTokenStore(), nil
	}
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3TokenStore(s3.NewFromConfig(awsCfg), bucketName, []byte(encryptKey)), nil
}
