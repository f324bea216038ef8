package storage

import (
	"context"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
)

// S3Store talks to AWS S3, or to any S3-compatible server when an endpoint
// override is configured.
type S3Store struct {
	client   s3iface.S3API
	uploader *s3manager.Uploader
}

// NewS3Store builds an S3Store. Without static keys the SDK's default
// credential chain (environment, shared config, instance role) applies.
func NewS3Store(opts Options) (*S3Store, error) {
	cfg := aws.NewConfig().WithRegion(opts.Region)
	if opts.Endpoint != "" {
		cfg = cfg.WithEndpoint(opts.Endpoint).WithS3ForcePathStyle(true)
	}
	if opts.AccessKey != "" {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, ""))
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create aws session")
	}
	client := s3.New(sess)
	return &S3Store{
		client:   client,
		uploader: s3manager.NewUploaderWithClient(client),
	}, nil
}

func (s *S3Store) PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, error) {
	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(in.Bucket),
		Key:         aws.String(in.Key),
		Body:        in.Body,
		ContentType: aws.String(in.ContentType),
	})
	if err != nil {
		return PutObjectOutput{}, s3Error("put", in.Bucket, in.Key, err)
	}
	return PutObjectOutput{Location: out.Location}, nil
}

func (s *S3Store) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	objects := []ObjectInfo{}
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	err := s.client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			objects = append(objects, ObjectInfo{
				Key:          aws.StringValue(obj.Key),
				LastModified: aws.TimeValue(obj.LastModified).UTC(),
				Size:         aws.Int64Value(obj.Size),
			})
		}
		return true
	})
	if err != nil {
		return nil, s3Error("list", bucket, "", err)
	}
	return objects, nil
}

func s3Error(op, bucket, key string, err error) error {
	serr := &Error{Op: op, Bucket: bucket, Key: key, Kind: classifyS3(err), Err: err}
	if aerr, ok := err.(awserr.Error); ok {
		serr.Err = awsChain{aerr: aerr}
	}
	return serr
}

// classifyS3 walks the OrigErr chain; s3manager reports multipart failures
// as a wrapper around the request error.
func classifyS3(err error) Kind {
	for err != nil {
		aerr, ok := err.(awserr.Error)
		if !ok {
			return KindUnknown
		}
		switch aerr.Code() {
		case s3.ErrCodeNoSuchBucket:
			return KindBucketNotFound
		case "AccessDenied", "Forbidden":
			return KindAccessDenied
		}
		if rf, ok := err.(awserr.RequestFailure); ok && rf.StatusCode() == http.StatusForbidden {
			return KindAccessDenied
		}
		err = aerr.OrigErr()
	}
	return KindUnknown
}

// awsChain exposes awserr's OrigErr links to errors.Is and errors.As while
// still satisfying awserr.Error.
type awsChain struct {
	aerr awserr.Error
}

func (e awsChain) Error() string   { return e.aerr.Error() }
func (e awsChain) Code() string    { return e.aerr.Code() }
func (e awsChain) Message() string { return e.aerr.Message() }
func (e awsChain) OrigErr() error  { return e.aerr.OrigErr() }

func (e awsChain) Unwrap() error {
	orig := e.aerr.OrigErr()
	if aerr, ok := orig.(awserr.Error); ok {
		return awsChain{aerr: aerr}
	}
	return orig
}
