package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// S3URI is a parsed s3://bucket/prefix location.
type S3URI struct {
	Bucket string
	Key    string
}

func (u S3URI) String() string {
	return "s3://" + u.Bucket + "/" + u.Key
}

// ParseS3URI splits an s3://bucket/key URI. The key may be empty, which
// addresses the bucket root.
func ParseS3URI(raw string) (S3URI, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "s3://") {
		return S3URI{}, fmt.Errorf("invalid s3 uri %q: scheme must be s3", raw)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return S3URI{}, fmt.Errorf("parse s3 uri %q: %w", raw, err)
	}
	if parsed.Host == "" {
		return S3URI{}, fmt.Errorf("invalid s3 uri %q: bucket is required", raw)
	}
	return S3URI{Bucket: parsed.Host, Key: strings.TrimPrefix(parsed.Path, "/")}, nil
}
