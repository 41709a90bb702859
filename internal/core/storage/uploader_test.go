package storage

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"chart-exporter/internal/infrastructure/config"
	"chart-exporter/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Name() string { return "mock" }

func (m *mockStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	return m.Called(key, data, contentType).Error(0)
}

func (m *mockStore) SignURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(key, ttl)
	return args.String(0), args.Error(1)
}

func (m *mockStore) Check(context.Context) error {
	return m.Called().Error(0)
}

func TestObjectKey(t *testing.T) {
	day := time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{name: "with prefix", prefix: "charts", want: "charts/2024-03-09/id.png"},
		{name: "nested prefix", prefix: "a/b", want: "a/b/2024-03-09/id.png"},
		{name: "slashes trimmed", prefix: "/charts/", want: "charts/2024-03-09/id.png"},
		{name: "empty prefix", prefix: "", want: "2024-03-09/id.png"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ObjectKey(tc.prefix, day, "id"))
		})
	}
}

func TestUploader_UploadUsesUTCDate(t *testing.T) {
	store, err := NewMemoryStore("http://localhost/objects", "s")
	require.NoError(t, err)

	u := NewUploader(store, "charts", time.Hour)
	taipei := time.FixedZone("UTC+8", 8*60*60)
	// 當地 5 月 2 日 04:00，UTC 仍是 5 月 1 日
	u.now = func() time.Time { return time.Date(2024, 5, 2, 4, 0, 0, 0, taipei) }
	u.newID = func() string { return "id" }

	res, err := u.Upload(context.Background(), []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "charts/2024-05-01/id.png", res.ObjectKey)
	assert.Equal(t, "charts/2024-05-01/id.png", ObjectKey("charts", time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC).In(taipei), "id"))
}

func TestUploader_Upload(t *testing.T) {
	store, err := NewMemoryStore("http://localhost/objects", "s")
	require.NoError(t, err)

	u := NewUploader(store, "charts", 0)
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	u.now = func() time.Time { return now }

	res, err := u.Upload(context.Background(), []byte("png"))
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^charts/2024-05-01/[0-9a-f-]{36}\.png$`), res.ObjectKey)
	assert.Equal(t, now.Add(DefaultSignedURLTTL), res.ExpiresAt)
	assert.Contains(t, res.URL, res.ObjectKey)
	assert.Contains(t, res.URL, "Expires=")

	data, contentType, ok := store.Get(res.ObjectKey)
	require.True(t, ok)
	assert.Equal(t, []byte("png"), data)
	assert.Equal(t, "image/png", contentType)
}

func TestUploader_ConcurrentKeysAreUnique(t *testing.T) {
	store, err := NewMemoryStore("http://localhost/objects", "s")
	require.NoError(t, err)
	u := NewUploader(store, "charts", time.Hour)

	const n = 50
	keys := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := u.Upload(context.Background(), []byte("png"))
			if err == nil {
				keys[i] = res.ObjectKey
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, k := range keys {
		require.NotEmpty(t, k)
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
	assert.Equal(t, n, store.Len())
}

func TestUploader_Failures(t *testing.T) {
	t.Run("put fails", func(t *testing.T) {
		store := &mockStore{}
		store.On("Put", mock.Anything, mock.Anything, "image/png").Return(errors.New("access denied"))

		_, err := NewUploader(store, "", time.Hour).Upload(context.Background(), []byte("png"))
		var uploadErr *common.UploadError
		require.True(t, errors.As(err, &uploadErr))
		assert.Contains(t, err.Error(), "access denied")
		store.AssertNotCalled(t, "SignURL", mock.Anything, mock.Anything)
	})

	t.Run("sign fails", func(t *testing.T) {
		store := &mockStore{}
		store.On("Put", mock.Anything, mock.Anything, "image/png").Return(nil)
		store.On("SignURL", mock.Anything, time.Hour).Return("", errors.New("no signer"))

		_, err := NewUploader(store, "", time.Hour).Upload(context.Background(), []byte("png"))
		var uploadErr *common.UploadError
		assert.True(t, errors.As(err, &uploadErr))
	})
}

func TestUploader_MisconfiguredBackendsFailAtUpload(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StorageConfig
	}{
		{name: "oss without region", cfg: config.StorageConfig{Backend: "oss", Bucket: "b"}},
		{name: "oss without bucket", cfg: config.StorageConfig{Backend: "oss", Region: "oss-cn-hangzhou"}},
		{name: "s3 without bucket", cfg: config.StorageConfig{Backend: "s3", Region: "us-east-1"}},
		{name: "minio without endpoint", cfg: config.StorageConfig{Backend: "minio", Bucket: "b"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, err := NewStore(tc.cfg)
			require.NoError(t, err)

			_, err = NewUploader(store, "", time.Hour).Upload(context.Background(), []byte("png"))
			var uploadErr *common.UploadError
			assert.True(t, errors.As(err, &uploadErr))
		})
	}
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		backend string
		want    string
		wantErr bool
	}{
		{backend: "", want: "oss"},
		{backend: "oss", want: "oss"},
		{backend: "s3", want: "s3"},
		{backend: "minio", want: "minio"},
		{backend: "memory", want: "memory"},
		{backend: "ftp", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.backend, func(t *testing.T) {
			store, err := NewStore(config.StorageConfig{Backend: tc.backend})
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, store.Name())
		})
	}
}

func TestOSSStore_Endpoint(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StorageConfig
		want    string
		wantErr bool
	}{
		{name: "region", cfg: config.StorageConfig{Region: "oss-cn-hangzhou"}, want: "https://oss-cn-hangzhou.aliyuncs.com"},
		{name: "bare region", cfg: config.StorageConfig{Region: "cn-shanghai"}, want: "https://oss-cn-shanghai.aliyuncs.com"},
		{name: "override", cfg: config.StorageConfig{Region: "oss-cn-hangzhou", Endpoint: "http://127.0.0.1:9000"}, want: "http://127.0.0.1:9000"},
		{name: "missing", cfg: config.StorageConfig{}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewOSSStore(tc.cfg).Endpoint()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHostEndpoint(t *testing.T) {
	host, secure, err := hostEndpoint("https://minio.local:9000")
	require.NoError(t, err)
	assert.Equal(t, "minio.local:9000", host)
	assert.True(t, secure)

	host, secure, err = hostEndpoint("localhost:9000")
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", host)
	assert.False(t, secure)
}
