package s3

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/queryrelay/queryrelay/internal/storage"
)

type awsAPI interface {
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *awss3.HeadBucketInput, optFns ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *awss3.CreateBucketInput, optFns ...func(*awss3.Options)) (*awss3.CreateBucketOutput, error)
}

type awsClient struct {
	api awsAPI
}

func newAWSClient(cfg Config) (*awsClient, error) {
	var baseEndpoint string
	if strings.TrimSpace(cfg.Endpoint) != "" {
		host, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
		if err != nil {
			return nil, err
		}
		scheme := "http"
		if secure {
			scheme = "https"
		}
		baseEndpoint = scheme + "://" + host
	}

	api := awss3.NewFromConfig(cfg.AWS, func(o *awss3.Options) {
		if region := strings.TrimSpace(cfg.Region); region != "" {
			o.Region = region
		}
		if baseEndpoint != "" {
			o.BaseEndpoint = aws.String(baseEndpoint)
			o.UsePathStyle = true
		}
		if cfg.AccessKeyID != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		}
	})
	return &awsClient{api: api}, nil
}

func (a *awsClient) Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) (storage.ObjectInfo, error) {
	input := &awss3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   reader,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	out, err := a.api.PutObject(ctx, input)
	if err != nil {
		return storage.ObjectInfo{}, mapAWSErr(err)
	}
	return storage.ObjectInfo{Key: key, Size: size, ETag: strings.Trim(aws.ToString(out.ETag), `"`)}, nil
}

func (a *awsClient) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := a.api.GetObject(ctx, &awss3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, mapAWSErr(err)
	}
	return out.Body, nil
}

func (a *awsClient) Stat(ctx context.Context, bucket, key string) (storage.ObjectInfo, error) {
	out, err := a.api.HeadObject(ctx, &awss3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return storage.ObjectInfo{}, mapAWSErr(err)
	}
	return storage.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

func (a *awsClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	if _, err := a.api.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		mapped := mapAWSErr(err)
		if errors.Is(mapped, storage.ErrObjectNotFound) {
			return false, nil
		}
		return false, mapped
	}
	return true, nil
}

func (a *awsClient) CreateBucket(ctx context.Context, bucket, region string) error {
	input := &awss3.CreateBucketInput{Bucket: aws.String(bucket)}
	// us-east-1 rejects an explicit location constraint.
	if region != "" && region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}
	if _, err := a.api.CreateBucket(ctx, input); err != nil {
		return mapAWSErr(err)
	}
	return nil
}

func mapAWSErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return storage.ErrObjectNotFound
		}
	}
	return err
}
