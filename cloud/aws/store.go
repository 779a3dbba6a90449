// Package aws archives retired table files to S3, implementing
// worker.ColdStorage (SPEC_FULL.md Domain Stack §D). Adapted from the
// teacher's cloud/aws package, which wrapped an entire pebble vfs.FS so
// every file Close/Sync shadow-wrote to S3; this module's merge core only
// ever needs to archive a file once it is already retired
// (DeleteObsoleteFiles, after UpdateMetaInfo), so Store narrows that down
// to a single Archive(path) call instead of intercepting the whole
// filesystem.
package aws

import (
	"bufio"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/cockroachdb/errors"

	"github.com/tgraphdb/propstore/internal/vfs"
)

// Options configures a Store's S3 destination, generalized from the
// teacher's CloudFsOption (which only carried BasePath, reading the
// bucket from the S3_BUCKET environment variable).
type Options struct {
	Bucket string
	Prefix string
	Region string
}

// Store uploads retired table files to S3.
type Store struct {
	fs       vfs.FS
	bucket   string
	prefix   string
	uploader *s3manager.Uploader
	s3Client *s3.S3
}

// NewStore returns a Store that reads files through fs and uploads them
// to opts.Bucket/opts.Prefix in opts.Region.
func NewStore(fs vfs.FS, opts Options) (*Store, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(opts.Region)})
	if err != nil {
		return nil, errors.Wrapf(err, "propstore: opening AWS session")
	}
	return &Store{
		fs:       fs,
		bucket:   opts.Bucket,
		prefix:   opts.Prefix,
		uploader: s3manager.NewUploader(sess),
		s3Client: s3.New(sess),
	}, nil
}

// skipArchive carries forward the teacher's SkipS3Upload filter: neither
// suffix is ever worth a round trip to cold storage.
func skipArchive(path string) bool {
	return strings.HasSuffix(path, ".log") || strings.HasSuffix(path, ".dbtmp")
}

// Archive implements worker.ColdStorage. It is called from
// DeleteObsoleteFiles after a file has already been dropped from
// metadata, so a failed upload here is logged by the caller and never
// blocks the merge cycle (§7: archival failures are not fatal).
func (s *Store) Archive(path string) error {
	if skipArchive(path) {
		return nil
	}
	f, err := s.fs.Open(path)
	if err != nil {
		return errors.Wrapf(err, "propstore: opening %s for archival", path)
	}
	defer f.Close()

	key := s.prefix + "/" + filepath.Base(path)
	out, err := s.uploader.Upload(&s3manager.UploadInput{
		Body:   bufio.NewReader(f),
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrapf(err, "propstore: archiving %s to s3://%s/%s", path, s.bucket, key)
	}
	_ = out
	return nil
}

// Delete removes path's archived copy from S3. Not part of
// worker.ColdStorage's interface (retired files are kept in cold storage
// even after local deletion, for recovery) but exposed for an operator
// tool that wants to purge archives past a retention window.
func (s *Store) Delete(path string) error {
	key := s.prefix + "/" + filepath.Base(path)
	_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrapf(err, "propstore: deleting s3://%s/%s", s.bucket, key)
	}
	return nil
}
