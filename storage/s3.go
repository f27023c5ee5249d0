package storage

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/config"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
)

// GetObjectAPI is the subset of the S3 client used for downloads.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Downloader downloads objects from an S3-compatible endpoint.
type S3Downloader struct {
	client GetObjectAPI
	options
}

// NewS3 creates a downloader for the S3-compatible endpoint (scheme://host:port)
// using static credentials and path-style addressing.
func NewS3(ctx context.Context, endpoint, region string, accessKey, secretKey config.Secret, opts ...Option) (*S3Downloader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey.Reveal(), secretKey.Reveal(), "")),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "failed to load AWS configuration")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return NewS3WithClient(client, opts...), nil
}

// NewS3WithClient creates a downloader around an existing client.
func NewS3WithClient(client GetObjectAPI, opts ...Option) *S3Downloader {
	return &S3Downloader{client: client, options: newOptions(opts)}
}

// Download implements Downloader.
func (d *S3Downloader) Download(ctx context.Context, bucket, key, dest string) (int64, error) {
	d.logger.Debug("downloading object", "backend", "s3", "bucket", bucket, "key", key, "dest", dest)

	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, translateS3Error(err, bucket, key)
	}
	defer out.Body.Close()

	size := aws.ToInt64(out.ContentLength)
	if out.ContentLength == nil {
		size = -1
	}

	n, err := writeFile(d.options, dest, out.Body, size)
	if err != nil {
		return n, err
	}
	d.logger.Info("downloaded object", "bucket", bucket, "key", key, "bytes", n)
	return n, nil
}

func translateS3Error(err error, bucket, key string) error {
	ctx := map[string]interface{}{"bucket": bucket, "key": key}

	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return errors.WrapWithContext(err, errors.CodeNotFound, "object not found", ctx)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return errors.WrapWithContext(err, errors.CodeNotFound, "object not found", ctx)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return errors.WrapWithContext(err, errors.CodeInvalidConfig, "object store rejected credentials", ctx)
		}
	}
	return errors.WrapWithContext(err, errors.CodeStorage, "failed to download object", ctx)
}
