package awss3

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	p "path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/ashdowne/gallery-sync-server/pkg/e"
	"github.com/ashdowne/gallery-sync-server/pkg/s"
)

type Backend struct {
	BucketURL string
	Session   *session.Session
	Client    *s3.S3

	bucket string
	prefix string
	region string
}

func New(connectionString string) (*Backend, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String("us-east-1")})
	if err != nil {
		return &Backend{}, err
	}

	backend := Backend{
		BucketURL: connectionString,
		Session:   sess,
		region:    "us-east-1", // Region is calculated in Setup()
	}
	return &backend, nil
}

func (b *Backend) Setup() error {
	parsedURL, err := url.Parse(b.BucketURL)
	if err != nil {
		return err
	}

	if parsedURL.Scheme != "s3" {
		//goland:noinspection GoErrorStringFormat
		return errors.New("S3 url should be in the format of s3://bucket/prefix")
	}

	b.bucket = parsedURL.Host
	b.prefix = strings.TrimPrefix(parsedURL.Path, "/")

	b.Client = s3.New(b.Session, &aws.Config{Region: aws.String(b.region)})
	resp, err := b.Client.GetBucketLocation(&s3.GetBucketLocationInput{Bucket: aws.String(b.bucket)})
	if err != nil {
		return err
	}

	if resp.LocationConstraint != nil {
		b.region = *resp.LocationConstraint
		b.Session.Config.Region = resp.LocationConstraint
		b.Client = s3.New(b.Session, &aws.Config{Region: resp.LocationConstraint})
	}

	return nil
}

func (b *Backend) Type() string {
	return "s3"
}

// publicURL assumes the bucket serves image objects publicly, matching how
// the galleries embed them.
func (b *Backend) publicURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", b.bucket, b.region, key)
}

func (b *Backend) List(prefix string) ([]s.CachedBlob, error) {
	fullPrefix := p.Join(b.prefix, prefix)
	if strings.HasSuffix(prefix, "/") {
		fullPrefix += "/"
	}

	blobs := make([]s.CachedBlob, 0)
	err := b.Client.ListObjectsV2Pages(&s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(fullPrefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			pathname := strings.TrimPrefix(strings.TrimPrefix(key, b.prefix), "/")
			blobs = append(blobs, s.CachedBlob{Pathname: pathname, URL: b.publicURL(key)})
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	return blobs, nil
}

func (b *Backend) Upload(pathname string, r io.Reader) (s.CachedBlob, error) {
	key := p.Join(b.prefix, pathname)

	uploader := s3manager.NewUploader(b.Session)
	_, err := uploader.Upload(&s3manager.UploadInput{
		Bucket: aws.String(b.bucket),
		Body:   r,
		Key:    aws.String(key),
	})
	if err != nil {
		return s.CachedBlob{}, err
	}

	return s.CachedBlob{Pathname: pathname, URL: b.publicURL(key)}, nil
}

func (b *Backend) Delete(pathname string) error {
	key := p.Join(b.prefix, pathname)

	_, err := b.Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})

	return err
}

func (b *Backend) GetFilePath(key string) (string, error) {
	return "", e.ErrNotImplemented
}
