package artifact

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectSource reads artifacts from an S3-compatible bucket, one object per
// artifact at "<owner>/<period>/<name><ext>".
type ObjectSource struct {
	client *minio.Client
	bucket string
	ext    string
}

func NewObjectSource(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*ObjectSource, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	return &ObjectSource{client: client, bucket: bucket, ext: DefaultExtension}, nil
}

func (s *ObjectSource) Key(artifactID string) (string, error) {
	_, key, err := pathFor(artifactID, s.ext)
	return key, err
}

func (s *ObjectSource) Read(ctx context.Context, artifactID string) (Text, error) {
	locator, key, err := pathFor(artifactID, s.ext)
	if err != nil {
		return Text{}, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return Text{}, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return Text{}, ErrNotFound
		}
		return Text{}, fmt.Errorf("read object %s: %w", key, err)
	}
	info, err := obj.Stat()
	revision := ""
	if err == nil {
		revision = info.ETag
	}
	return Text{Locator: locator, Path: key, Revision: revision, Content: string(data)}, nil
}
