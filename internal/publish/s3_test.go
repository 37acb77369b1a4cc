package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	objects      map[string][]byte
	contentTypes map[string]string
	err          error
}

func (f *fakeClient) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(params.Bucket) + "/" + aws.ToString(params.Key)
	f.objects[key] = body
	f.contentTypes[key] = aws.ToString(params.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func newFake() *fakeClient {
	return &fakeClient{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func TestUpload(t *testing.T) {
	dir := t.TempDir()
	daily := filepath.Join(dir, "eu_daily.parquet")
	annual := filepath.Join(dir, "eu_annual.csv")
	require.NoError(t, os.WriteFile(daily, []byte("PAR1"), 0o600))
	require.NoError(t, os.WriteFile(annual, []byte("country,year\n"), 0o600))

	client := newFake()
	uploader := newWithClient(Config{Bucket: "series", Prefix: "/eu/membership/"}, client)

	keys, err := uploader.Upload(context.Background(), []string{daily, annual})
	require.NoError(t, err)
	assert.Equal(t, []string{"eu/membership/eu_daily.parquet", "eu/membership/eu_annual.csv"}, keys)
	assert.Equal(t, []byte("PAR1"), client.objects["series/eu/membership/eu_daily.parquet"])
	assert.Equal(t, "text/csv", client.contentTypes["series/eu/membership/eu_annual.csv"])
}

func TestUploadWithoutPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	keys, err := newWithClient(Config{Bucket: "b"}, newFake()).Upload(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, []string{"x.json"}, keys)
}

func TestUploadErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	client := newFake()
	client.err = errors.New("denied")
	_, err := newWithClient(Config{Bucket: "b"}, client).Upload(context.Background(), []string{path})
	assert.ErrorContains(t, err, "denied")

	_, err = newWithClient(Config{Bucket: "b"}, newFake()).Upload(context.Background(), []string{path + ".missing"})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}
