package storage

import (
	"context"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/config"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
)

// MinioDownloader downloads objects with the MinIO client.
type MinioDownloader struct {
	client *minio.Client
	options
}

// NewMinio creates a downloader for the MinIO server at endpoint (host:port).
func NewMinio(endpoint string, accessKey, secretKey config.Secret, secure bool, opts ...Option) (*MinioDownloader, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey.Reveal(), secretKey.Reveal(), ""),
		Secure: secure,
	})
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeInvalidConfig, "failed to create MinIO client",
			map[string]interface{}{"endpoint": endpoint})
	}
	return &MinioDownloader{client: client, options: newOptions(opts)}, nil
}

// Download implements Downloader.
func (d *MinioDownloader) Download(ctx context.Context, bucket, key, dest string) (int64, error) {
	d.logger.Debug("downloading object", "backend", "minio", "bucket", bucket, "key", key, "dest", dest)

	info, err := d.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return 0, translateMinioError(err, bucket, key)
	}

	obj, err := d.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return 0, translateMinioError(err, bucket, key)
	}
	defer func() {
		_ = obj.Close()
	}()

	n, err := writeFile(d.options, dest, obj, info.Size)
	if err != nil {
		return n, err
	}
	d.logger.Info("downloaded object", "bucket", bucket, "key", key, "bytes", n)
	return n, nil
}

func translateMinioError(err error, bucket, key string) error {
	ctx := map[string]interface{}{"bucket": bucket, "key": key}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return errors.WrapWithContext(err, errors.CodeNotFound, "object not found", ctx)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return errors.WrapWithContext(err, errors.CodeInvalidConfig, "object store rejected credentials", ctx)
	}
	return errors.WrapWithContext(err, errors.CodeStorage, "failed to download object", ctx)
}
