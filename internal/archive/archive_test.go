package archive

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	puts    []s3.PutObjectInput
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.puts = append(f.puts, *in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	prefix := aws.ToString(in.Prefix)
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
		}
	}
	return out, nil
}

func TestPut_KeyLayout(t *testing.T) {
	fake := newFakeS3()
	a := NewWithClient(fake, "insights-archive", "/uploads/")
	a.now = func() time.Time { return time.Date(2024, 3, 31, 12, 30, 0, 0, time.UTC) }

	key, err := a.Put(context.Background(), "ds-1", "campaigns", "march.csv", strings.NewReader("id,subject\n"))
	require.NoError(t, err)
	assert.Equal(t, "uploads/ds-1/campaigns/20240331T123000Z-march.csv", key)

	require.Len(t, fake.puts, 1)
	assert.Equal(t, "insights-archive", aws.ToString(fake.puts[0].Bucket))
	assert.Equal(t, "text/csv", aws.ToString(fake.puts[0].ContentType))
}

func TestPut_StripsDirectoryFromFilename(t *testing.T) {
	a := NewWithClient(newFakeS3(), "b", "uploads")
	a.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	key, err := a.Put(context.Background(), "ds-1", "flows", "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "uploads/ds-1/flows/20240101T000000Z-passwd", key)
}

func TestGet_RoundTrip(t *testing.T) {
	a := NewWithClient(newFakeS3(), "b", "uploads")
	a.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	key, err := a.Put(context.Background(), "ds-1", "campaigns", "a.csv", strings.NewReader("hello"))
	require.NoError(t, err)

	rc, err := a.Get(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestList_ScopedToDataset(t *testing.T) {
	a := NewWithClient(newFakeS3(), "b", "uploads")
	a.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	_, err := a.Put(context.Background(), "ds-1", "campaigns", "a.csv", strings.NewReader("x"))
	require.NoError(t, err)
	_, err = a.Put(context.Background(), "ds-2", "campaigns", "b.csv", strings.NewReader("y"))
	require.NoError(t, err)

	keys, err := a.List(context.Background(), "ds-1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "ds-1/")
}

func TestNilArchiveIsDisabled(t *testing.T) {
	var a *Archive

	key, err := a.Put(context.Background(), "ds-1", "campaigns", "a.csv", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Empty(t, key)

	keys, err := a.List(context.Background(), "ds-1")
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = a.Get(context.Background(), "any")
	assert.Error(t, err)
}
