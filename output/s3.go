package output

import (
	"context"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/mediatext/config"
	apperrors "github.com/nijaru/mediatext/errors"
)

const s3Scheme = "s3://"

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Writer uploads transcripts with a single PutObject, which S3 applies
// atomically.
type S3Writer struct {
	client putObjectAPI
	logger *logrus.Entry
}

// NewS3Writer loads AWS credentials the usual way unless static keys are
// configured. A custom endpoint switches to path-style addressing for
// S3-compatible stores.
func NewS3Writer(ctx context.Context, cfg config.S3Config, logger *logrus.Entry) (*S3Writer, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load SDK config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Writer(client, logger), nil
}

func newS3Writer(client putObjectAPI, logger *logrus.Entry) *S3Writer {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &S3Writer{client: client, logger: logger}
}

func (w *S3Writer) Write(ctx context.Context, dir, stem, text string) (string, error) {
	const op = "S3Writer.Write"

	bucket, prefix, err := ParseS3Location(dir)
	if err != nil {
		return "", apperrors.Write(op, err, "invalid S3 location")
	}

	key := path.Join(prefix, stem+".txt")
	_, err = w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(text),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		w.logger.WithError(err).WithFields(logrus.Fields{
			"bucket": bucket,
			"key":    key,
		}).Error("Failed to upload transcript")
		return "", apperrors.Write(op, err, "failed to save to S3")
	}

	location := s3Scheme + bucket + "/" + key
	w.logger.WithField("location", location).Info("Transcript uploaded")
	return location, nil
}

// ParseS3Location splits s3://bucket/some/prefix into bucket and prefix.
func ParseS3Location(dir string) (bucket, prefix string, err error) {
	dir = strings.TrimSpace(dir)
	if !strings.HasPrefix(dir, s3Scheme) {
		return "", "", errors.Errorf("not an S3 location: %q", dir)
	}
	rest := strings.Trim(strings.TrimPrefix(dir, s3Scheme), "/")
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", errors.Errorf("missing bucket in %q", dir)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}
