// Package resource parses object-store URIs of the form scheme://bucket/key.
package resource

import (
	"fmt"
	"strings"

	"github.com/savaki/batch-provisioner/internal/errors"
)

// S3Scheme is the default object-store scheme prefix
const S3Scheme = "s3://"

// Location identifies an object in the object store
type Location struct {
	Scheme   string `json:"-"`
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	Filename string `json:"filename"`
}

// NewLocation builds an s3 Location from a bucket and key
func NewLocation(bucket, key string) Location {
	filename := key
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		filename = key[idx+1:]
	}
	return Location{
		Scheme:   S3Scheme,
		Bucket:   bucket,
		Key:      key,
		Filename: filename,
	}
}

// URI returns the location as scheme://bucket/key
func (l Location) URI() string {
	scheme := l.Scheme
	if scheme == "" {
		scheme = S3Scheme
	}
	return scheme + l.Bucket + "/" + l.Key
}

func (l Location) String() string {
	return l.URI()
}

// Locator parses URIs that begin with Scheme
type Locator struct {
	Scheme string
}

// Parse splits uri into bucket, key, and filename.
//
// The first "/" after the scheme separates the bucket from the key and the
// filename is everything after the last "/". An object at the bucket root has
// the same key and filename.
func (l Locator) Parse(uri string) (Location, error) {
	scheme := l.Scheme
	if scheme == "" {
		scheme = S3Scheme
	}

	rest, ok := strings.CutPrefix(uri, scheme)
	if !ok {
		return Location{}, fmt.Errorf("%w: %q does not start with %s", errors.ErrMalformedResourceURI, uri, scheme)
	}

	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" {
		return Location{}, fmt.Errorf("%w: %q, expected %s{bucket}/{key}", errors.ErrMalformedResourceURI, uri, scheme)
	}

	filename := rest[strings.LastIndex(rest, "/")+1:]
	if filename == "" {
		return Location{}, fmt.Errorf("%w: %q does not name an object", errors.ErrMalformedResourceURI, uri)
	}

	return Location{
		Scheme:   scheme,
		Bucket:   bucket,
		Key:      key,
		Filename: filename,
	}, nil
}

// Parse parses an s3:// uri
func Parse(uri string) (Location, error) {
	return Locator{Scheme: S3Scheme}.Parse(uri)
}
