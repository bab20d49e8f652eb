// Package staging materializes S3 prefixes as local directory trees for the
// duration of a run.
//
// Inputs and existing stores may live behind s3:// URLs. A Stager downloads
// everything under a prefix into a fresh private directory; Areas hand the
// local path to the readers and remove the tree on release. Only the parent
// of the prefix is stripped from object keys, so the prefix's final path
// element survives as a directory inside the area.
package staging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"gridappend/internal/options"
)

const defaultParallelism = 8

// ObjectAPI is the slice of the S3 API staging depends on. *s3.Client
// satisfies it; tests inject fakes.
type ObjectAPI interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Stager downloads S3 prefixes into private local areas.
type Stager struct {
	api      ObjectAPI
	logger   *slog.Logger
	parallel int
	baseDir  string
}

// StagerOption represents a functional option for configuring a Stager.
type StagerOption = options.Option[*Stager]

// WithLogger routes staging progress records through the given logger.
func WithLogger(logger *slog.Logger) StagerOption {
	return options.NoError(func(s *Stager) {
		s.logger = logger
	})
}

// WithParallelism bounds the number of concurrent object downloads.
func WithParallelism(n int) StagerOption {
	return options.New(func(s *Stager) error {
		if n <= 0 {
			return fmt.Errorf("parallelism must be positive, got %d", n)
		}
		s.parallel = n

		return nil
	})
}

// WithBaseDir places staging areas under dir instead of the system temp
// directory.
func WithBaseDir(dir string) StagerOption {
	return options.NoError(func(s *Stager) {
		s.baseDir = dir
	})
}

// New creates a Stager on top of an S3 API client.
func New(api ObjectAPI, opts ...StagerOption) (*Stager, error) {
	s := &Stager{
		api:      api,
		logger:   slog.Default(),
		parallel: defaultParallelism,
	}
	if err := options.Apply(s, opts...); err != nil {
		return nil, err
	}

	return s, nil
}

// ParseURL splits an s3://bucket/prefix URL. The leading slash of the key
// prefix is dropped; a missing prefix is valid and lists the whole bucket.
func ParseURL(raw string) (bucket, prefix string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse %s: %w", raw, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("expected s3 URL, got scheme %q in %s", u.Scheme, raw)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("no bucket in %s", raw)
	}

	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// PrefixBase returns the final path element of a prefix URL, the directory
// name its objects keep inside a staging area.
func PrefixBase(raw string) (string, error) {
	_, prefix, err := ParseURL(raw)
	if err != nil {
		return "", err
	}

	return path.Base(strings.TrimSuffix(prefix, "/")), nil
}

// stripParent returns the key prefix to remove from staged object keys:
// everything up to and including the last slash of the listing prefix.
func stripParent(prefix string) string {
	if i := strings.LastIndex(prefix, "/"); i != -1 {
		return prefix[:i+1]
	}

	return prefix
}

// Stage downloads every object under an s3://bucket/prefix URL into a fresh
// area. Downloads run in parallel; any failure releases the area before the
// error is returned.
func (s *Stager) Stage(ctx context.Context, rawURL string) (*Area, error) {
	bucket, prefix, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	keys, err := s.list(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(s.baseDir, "gridappend-stage-*")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	area := &Area{dir: dir}

	strip := stripParent(prefix)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)

	staged := 0
	for _, key := range keys {
		if strings.HasSuffix(key, "/") {
			continue
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(key, strip), "/")
		if rel == "" {
			s.logger.Debug("skipping object named after the prefix parent", "bucket", bucket, "key", key)
			continue
		}
		if !filepath.IsLocal(filepath.FromSlash(rel)) {
			_ = area.Release()
			return nil, fmt.Errorf("object key %s escapes the staging area", key)
		}

		dst := filepath.Join(dir, filepath.FromSlash(rel))
		staged++
		g.Go(func() error {
			s.logger.Debug("staging object", "bucket", bucket, "key", key, "dst", dst)
			return s.download(gctx, bucket, key, dst)
		})
	}

	if err := g.Wait(); err != nil {
		_ = area.Release()
		return nil, err
	}

	s.logger.Info("staged prefix", "url", rawURL, "objects", staged, "dir", dir)

	return area, nil
}

func (s *Stager) list(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	return keys, nil
}

func (s *Stager) download(ctx context.Context, bucket, key, dst string) error {
	resp, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}

	return f.Close()
}
