package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/wikipack/blobstore"
)

type MockS3Client struct {
	mock.Mock
}

func (m *MockS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.HeadObjectOutput)
	return out, args.Error(1)
}

func (m *MockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func (m *MockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *MockS3Client) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

func (m *MockS3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.ListObjectsV2Output)
	return out, args.Error(1)
}

func (m *MockS3Client) UploadPart(ctx context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.UploadPartOutput)
	return out, args.Error(1)
}

func (m *MockS3Client) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.CreateMultipartUploadOutput)
	return out, args.Error(1)
}

func (m *MockS3Client) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.CompleteMultipartUploadOutput)
	return out, args.Error(1)
}

func (m *MockS3Client) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.AbortMultipartUploadOutput)
	return out, args.Error(1)
}

func keyIs(key string) func(*s3.HeadObjectInput) bool {
	return func(in *s3.HeadObjectInput) bool { return aws.ToString(in.Key) == key }
}

func TestStore_OpenNotFound(t *testing.T) {
	client := new(MockS3Client)
	client.On("HeadObject", mock.Anything, mock.MatchedBy(keyIs("pfx/missing"))).
		Return(nil, &types.NotFound{})

	store := NewStore(client, "bucket", WithPrefix("pfx"))
	_, err := store.Open(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, blobstore.ErrNotFound))
	client.AssertExpectations(t)
}

func TestStore_OpenAndReadAt(t *testing.T) {
	ctx := context.Background()
	client := new(MockS3Client)
	client.On("HeadObject", mock.Anything, mock.MatchedBy(keyIs("pfx/blob"))).
		Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(11)}, nil)
	for range 2 {
		client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
			return aws.ToString(in.Range) == "bytes=6-10"
		})).Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("world")))}, nil).Once()
	}

	store := NewStore(client, "bucket", WithPrefix("pfx"))
	b, err := store.Open(ctx, "blob")
	require.NoError(t, err)
	assert.Equal(t, int64(11), b.Size())

	buf := make([]byte, 5)
	n, err := b.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "world", string(buf))

	// A read past the end is clipped and reports io.EOF.
	buf = make([]byte, 10)
	n, err = b.ReadAt(ctx, buf, 6)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 5, n)

	_, err = b.ReadAt(ctx, buf, 11)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, b.Close())
	client.AssertExpectations(t)
}

func TestStore_PutSetsChecksum(t *testing.T) {
	data := []byte("manifest")
	client := new(MockS3Client)
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Key) == "pfx/index/manifest.json" &&
			aws.ToString(in.ChecksumCRC32C) == crc32cBase64(data) &&
			aws.ToInt64(in.ContentLength) == int64(len(data))
	})).Return(&s3.PutObjectOutput{}, nil)

	store := NewStore(client, "bucket", WithPrefix("pfx"))
	require.NoError(t, store.Put(context.Background(), "index/manifest.json", data))
	client.AssertExpectations(t)
}

func TestStore_PutWithoutChecksum(t *testing.T) {
	client := new(MockS3Client)
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return in.ChecksumCRC32C == nil
	})).Return(&s3.PutObjectOutput{}, nil)

	cfg := DefaultUploadConfig()
	cfg.EnableChecksum = false
	store := NewStore(client, "bucket", WithUploadConfig(cfg))
	require.NoError(t, store.Put(context.Background(), "a", []byte("x")))
	client.AssertExpectations(t)
}

func TestStore_DeleteMissing(t *testing.T) {
	client := new(MockS3Client)
	client.On("DeleteObject", mock.Anything, mock.Anything).Return(nil, &types.NoSuchKey{})

	store := NewStore(client, "bucket")
	assert.NoError(t, store.Delete(context.Background(), "gone"))
}

func TestStore_List(t *testing.T) {
	client := new(MockS3Client)
	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.ToString(in.Prefix) == "pfx/articles/"
	})).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{
			{Key: aws.String("pfx/articles/00000001.cdp")},
			{Key: aws.String("pfx/articles/00000000.cdp")},
		},
		IsTruncated: aws.Bool(false),
	}, nil)

	store := NewStore(client, "bucket", WithPrefix("pfx"))
	names, err := store.List(context.Background(), "articles/")
	require.NoError(t, err)
	assert.Equal(t, []string{"articles/00000000.cdp", "articles/00000001.cdp"}, names)
}

func TestStore_CreateUploadsOnClose(t *testing.T) {
	var uploaded []byte
	client := new(MockS3Client)
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Key) == "index/compindex.key"
	})).Run(func(args mock.Arguments) {
		in := args.Get(1).(*s3.PutObjectInput)
		uploaded, _ = io.ReadAll(in.Body)
	}).Return(&s3.PutObjectOutput{}, nil)

	store := NewStore(client, "bucket")
	w, err := store.Create(context.Background(), "index/compindex.key")
	require.NoError(t, err)
	_, err = w.Write([]byte("WPIX"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	assert.Equal(t, "WPIX", string(uploaded))
	_, err = w.Write([]byte("late"))
	assert.Error(t, err)
}

// TestStore_Integration runs against a real bucket when S3_BUCKET is set.
func TestStore_Integration(t *testing.T) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		t.Skip("S3_BUCKET not set")
	}
	ctx := context.Background()

	store, err := New(ctx, bucket, WithPrefix("wikipack-test/"))
	require.NoError(t, err)

	data := []byte("hello s3")
	require.NoError(t, store.Put(ctx, "hello.txt", data))
	t.Cleanup(func() { _ = store.Delete(ctx, "hello.txt") })

	got, err := blobstore.ReadAll(ctx, store, "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "hello.txt")
}
