package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"bhf-go/internal/bhf"
	"bhf-go/internal/config"
)

// S3Vault resolves backup files stored in an S3 bucket. Objects are keyed by
// prefix plus file name, matching how backup jobs typically upload sets.
type S3Vault struct {
	name       string
	bucket     string
	prefix     string
	client     *s3.Client
	downloader *manager.Downloader
}

var _ bhf.Vault = (*S3Vault)(nil)

// NewS3Vault creates an S3-backed vault from configuration. Credentials come
// from the default AWS chain unless static keys are configured.
func NewS3Vault(cfg config.VaultConfig) (*S3Vault, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 vault requires s3_bucket to be set")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Vault{
		name:       cfg.Name,
		bucket:     cfg.S3Bucket,
		prefix:     strings.Trim(cfg.S3Prefix, "/"),
		client:     client,
		downloader: manager.NewDownloader(client),
	}, nil
}

// StatBackup heads the object for a history path. Absence is reported as
// nil, not an error.
func (v *S3Vault) StatBackup(path string) (*bhf.BackupFileInfo, error) {
	key := v.key(path)
	out, err := v.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("checking s3 object %s: %w", key, err)
	}

	size := int64(0)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return &bhf.BackupFileInfo{Path: key, Size: size}, nil
}

// DownloadBackup fetches the object into destDir using the multipart
// download manager.
func (v *S3Vault) DownloadBackup(path string, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("creating destination directory: %w", err)
	}

	destPath := filepath.Join(destDir, backupFileName(path))
	f, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("creating destination file: %w", err)
	}
	defer f.Close()

	key := v.key(path)
	_, err = v.downloader.Download(context.Background(), f, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("downloading s3 object %s: %w", key, err)
	}
	return destPath, nil
}

// ValidateSetup verifies the bucket is reachable.
func (v *S3Vault) ValidateSetup() error {
	_, err := v.client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(v.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

// key maps a history path to an object key.
func (v *S3Vault) key(path string) string {
	name := backupFileName(path)
	if v.prefix == "" {
		return name
	}
	return v.prefix + "/" + name
}

// isNotFound matches the service error codes S3 uses for missing objects.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NotFound", "NoSuchKey":
		return true
	}
	return false
}
