package staging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves a fixed key space with paginated listings, small pages to
// exercise the paginator loop.
type fakeS3 struct {
	objects  map[string][]byte
	failKeys map[string]bool
	pageLen  int

	mu   sync.Mutex
	gets []string
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(in.Prefix)
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		var err error
		start, err = strconv.Atoi(tok)
		if err != nil {
			return nil, err
		}
	}
	pageLen := f.pageLen
	if pageLen <= 0 {
		pageLen = 1000
	}
	end := min(start+pageLen, len(keys))

	out := &s3.ListObjectsV2Output{}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}

	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	f.mu.Lock()
	f.gets = append(f.gets, key)
	f.mu.Unlock()

	if f.failKeys[key] {
		return nil, fmt.Errorf("injected failure for %s", key)
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}

	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func quietStager(t *testing.T, api ObjectAPI, opts ...StagerOption) *Stager {
	t.Helper()

	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), WithBaseDir(t.TempDir()))
	s, err := New(api, opts...)
	require.NoError(t, err)

	return s
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		bucket  string
		prefix  string
		wantErr bool
	}{
		{name: "bucket and prefix", raw: "s3://bkt/data/2024/run1", bucket: "bkt", prefix: "data/2024/run1"},
		{name: "bare bucket", raw: "s3://bkt", bucket: "bkt", prefix: ""},
		{name: "trailing slash kept in prefix", raw: "s3://bkt/data/", bucket: "bkt", prefix: "data/"},
		{name: "wrong scheme", raw: "https://bkt/data", wantErr: true},
		{name: "no bucket", raw: "s3://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, prefix, err := ParseURL(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.bucket, bucket)
			require.Equal(t, tt.prefix, prefix)
		})
	}
}

func TestPrefixBase(t *testing.T) {
	base, err := PrefixBase("s3://bkt/stores/weather.zarr")
	require.NoError(t, err)
	require.Equal(t, "weather.zarr", base)

	base, err = PrefixBase("s3://bkt/stores/weather.zarr/")
	require.NoError(t, err)
	require.Equal(t, "weather.zarr", base)

	_, err = PrefixBase("file:///stores/weather.zarr")
	require.Error(t, err)
}

func TestStage(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{
		objects: map[string][]byte{
			"data/2024/run1/a.grn":     []byte("alpha"),
			"data/2024/run1/c.grn":     []byte("charlie"),
			"data/2024/run1/sub/b.grn": []byte("bravo"),
			"data/2024/run1/":          nil,
			"data/2024/other/x.grn":    []byte("xray"),
		},
		pageLen: 2,
	}

	stager := quietStager(t, fake, WithParallelism(2))
	area, err := stager.Stage(ctx, "s3://bkt/data/2024/run1")
	require.NoError(t, err)

	t.Cleanup(func() { _ = area.Release() })

	read := func(rel string) string {
		data, err := os.ReadFile(filepath.Join(area.Dir(), filepath.FromSlash(rel)))
		require.NoError(t, err)
		return string(data)
	}

	require.Equal(t, "alpha", read("run1/a.grn"))
	require.Equal(t, "charlie", read("run1/c.grn"))
	require.Equal(t, "bravo", read("run1/sub/b.grn"))
	require.NoFileExists(t, filepath.Join(area.Dir(), "other", "x.grn"))
	require.NoFileExists(t, filepath.Join(area.Dir(), "x.grn"))
	require.Len(t, fake.gets, 3, "directory markers and out-of-prefix objects must not be fetched")

	require.NoError(t, area.Release())
	require.NoDirExists(t, area.Dir())
	require.NoError(t, area.Release(), "release must be idempotent")
}

func TestStage_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong scheme", func(t *testing.T) {
		stager := quietStager(t, &fakeS3{})
		_, err := stager.Stage(ctx, "https://bkt/data")
		require.ErrorContains(t, err, "expected s3 URL")
	})

	t.Run("download failure releases the area", func(t *testing.T) {
		fake := &fakeS3{
			objects: map[string][]byte{
				"data/run/a.grn": []byte("alpha"),
				"data/run/b.grn": []byte("bravo"),
			},
			failKeys: map[string]bool{"data/run/b.grn": true},
		}
		base := t.TempDir()
		stager, err := New(fake,
			WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
			WithBaseDir(base))
		require.NoError(t, err)

		_, err = stager.Stage(ctx, "s3://bkt/data/run")
		require.ErrorContains(t, err, "injected failure")

		entries, err := os.ReadDir(base)
		require.NoError(t, err)
		require.Empty(t, entries, "failed staging must remove its area")
	})

	t.Run("escaping key is rejected", func(t *testing.T) {
		fake := &fakeS3{
			objects: map[string][]byte{"data/../evil": []byte("boom")},
		}
		base := t.TempDir()
		stager, err := New(fake,
			WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
			WithBaseDir(base))
		require.NoError(t, err)

		_, err = stager.Stage(ctx, "s3://bkt/data")
		require.ErrorContains(t, err, "escapes the staging area")

		entries, err := os.ReadDir(base)
		require.NoError(t, err)
		require.Empty(t, entries)
	})
}

func TestStage_PaginatesFullListing(t *testing.T) {
	ctx := context.Background()
	objects := make(map[string][]byte)
	for i := range 7 {
		objects[fmt.Sprintf("in/run/g%02d.grn", i)] = []byte{byte(i)}
	}
	fake := &fakeS3{objects: objects, pageLen: 3}

	stager := quietStager(t, fake)
	area, err := stager.Stage(ctx, "s3://bkt/in/run")
	require.NoError(t, err)
	t.Cleanup(func() { _ = area.Release() })

	entries, err := os.ReadDir(filepath.Join(area.Dir(), "run"))
	require.NoError(t, err)
	require.Len(t, entries, 7)
}

func TestNew_RejectsBadParallelism(t *testing.T) {
	_, err := New(&fakeS3{}, WithParallelism(0))
	require.Error(t, err)
}

func TestReleaseSet(t *testing.T) {
	dirA, err := os.MkdirTemp(t.TempDir(), "area-*")
	require.NoError(t, err)
	dirB, err := os.MkdirTemp(t.TempDir(), "area-*")
	require.NoError(t, err)

	var set ReleaseSet
	set.Add(&Area{dir: dirA})
	set.Add(&Area{dir: dirB})

	require.NoError(t, set.ReleaseAll())
	require.NoDirExists(t, dirA)
	require.NoDirExists(t, dirB)
	require.NoError(t, set.ReleaseAll(), "teardown must be idempotent")
}
