package s3

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/queryrelay/queryrelay/internal/storage"
)

func TestAWSClientPutSetsLengthAndContentType(t *testing.T) {
	api := &fakeAWSAPI{etag: `"abc"`}
	c := &awsClient{api: api}

	info, err := c.Put(context.Background(), "bucket-a", "result.json", bytes.NewReader([]byte("[]")), 2, "application/json")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	in := api.lastPut
	if aws.ToString(in.Bucket) != "bucket-a" || aws.ToString(in.Key) != "result.json" {
		t.Fatalf("bucket/key = %q/%q", aws.ToString(in.Bucket), aws.ToString(in.Key))
	}
	if aws.ToInt64(in.ContentLength) != 2 {
		t.Fatalf("ContentLength = %d", aws.ToInt64(in.ContentLength))
	}
	if aws.ToString(in.ContentType) != "application/json" {
		t.Fatalf("ContentType = %q", aws.ToString(in.ContentType))
	}
	if info.ETag != "abc" || info.Size != 2 {
		t.Fatalf("info = %+v", info)
	}
}

func TestAWSClientBucketExistsTreatsNotFoundAsMissing(t *testing.T) {
	api := &fakeAWSAPI{headBucketErr: &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"}}
	c := &awsClient{api: api}

	exists, err := c.BucketExists(context.Background(), "bucket-a")
	if err != nil {
		t.Fatalf("BucketExists() error = %v", err)
	}
	if exists {
		t.Fatal("exists = true, want false")
	}
}

func TestAWSClientBucketExistsPropagatesOtherErrors(t *testing.T) {
	api := &fakeAWSAPI{headBucketErr: &smithy.GenericAPIError{Code: "Forbidden", Message: "Forbidden"}}
	c := &awsClient{api: api}
	if _, err := c.BucketExists(context.Background(), "bucket-a"); err == nil {
		t.Fatal("expected error")
	}
}

func TestAWSClientCreateBucketLocationConstraint(t *testing.T) {
	api := &fakeAWSAPI{}
	c := &awsClient{api: api}

	if err := c.CreateBucket(context.Background(), "bucket-a", "us-east-1"); err != nil {
		t.Fatalf("CreateBucket() error = %v", err)
	}
	if api.lastCreate.CreateBucketConfiguration != nil {
		t.Fatal("us-east-1 must not send a location constraint")
	}

	if err := c.CreateBucket(context.Background(), "bucket-b", "eu-west-1"); err != nil {
		t.Fatalf("CreateBucket() error = %v", err)
	}
	if api.lastCreate.CreateBucketConfiguration == nil || string(api.lastCreate.CreateBucketConfiguration.LocationConstraint) != "eu-west-1" {
		t.Fatalf("CreateBucketConfiguration = %+v", api.lastCreate.CreateBucketConfiguration)
	}
}

func TestMapAWSErr(t *testing.T) {
	if !errors.Is(mapAWSErr(&smithy.GenericAPIError{Code: "NoSuchKey"}), storage.ErrObjectNotFound) {
		t.Fatal("NoSuchKey should map to ErrObjectNotFound")
	}
	other := errors.New("boom")
	if mapAWSErr(other) != other {
		t.Fatal("unrelated errors should pass through")
	}
}

type fakeAWSAPI struct {
	etag          string
	lastPut       *awss3.PutObjectInput
	headBucketErr error
	lastCreate    *awss3.CreateBucketInput
}

func (f *fakeAWSAPI) PutObject(_ context.Context, params *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	f.lastPut = params
	return &awss3.PutObjectOutput{ETag: aws.String(f.etag)}, nil
}

func (f *fakeAWSAPI) GetObject(context.Context, *awss3.GetObjectInput, ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	return nil, &smithy.GenericAPIError{Code: "NoSuchKey"}
}

func (f *fakeAWSAPI) HeadObject(context.Context, *awss3.HeadObjectInput, ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
	return &awss3.HeadObjectOutput{ContentLength: aws.Int64(2)}, nil
}

func (f *fakeAWSAPI) HeadBucket(context.Context, *awss3.HeadBucketInput, ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error) {
	if f.headBucketErr != nil {
		return nil, f.headBucketErr
	}
	return &awss3.HeadBucketOutput{}, nil
}

func (f *fakeAWSAPI) CreateBucket(_ context.Context, params *awss3.CreateBucketInput, _ ...func(*awss3.Options)) (*awss3.CreateBucketOutput, error) {
	f.lastCreate = params
	return &awss3.CreateBucketOutput{}, nil
}
