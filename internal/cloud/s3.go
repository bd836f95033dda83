package cloud

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// objectGetter is the part of *s3.Client the archive reader needs.
type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Archive reads archived meter logs from a bucket. Object keys are the
// same names used on local disk, e.g. "dsmr.tsv".
type S3Archive struct {
	svc    objectGetter
	bucket string
}

// NewS3Archive creates an archive reader using the default AWS credential
// chain for region.
func NewS3Archive(ctx context.Context, region, bucket string) (*S3Archive, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, "unable to load SDK config")
	}
	return &S3Archive{svc: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

func (a *S3Archive) Bucket() string { return a.bucket }

// Open streams the object stored under key. The caller closes the body.
func (a *S3Archive) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := a.svc.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get s3://%s/%s", a.bucket, key)
	}
	return out.Body, nil
}
