package storage

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"chart-exporter/internal/pkg/common"
)

var (
	ErrObjectNotFound    = errors.New("object not found")
	ErrSignatureMismatch = errors.New("signature does not match")
	ErrURLExpired        = errors.New("signed url has expired")
)

// MemoryStore 行程內儲存，本機開發與測試使用
// 簽名網址格式：<base>/<key>?Expires=<unix>&Signature=<hex hmac-sha256>
type MemoryStore struct {
	baseURL string
	secret  []byte
	now     func() time.Time

	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
	createdAt   time.Time
}

// NewMemoryStore 創建記憶體儲存，secret 為空時隨機產生
func NewMemoryStore(baseURL, secret string) (*MemoryStore, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate signing secret: %w", err)
		}
	}

	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  key,
		now:     time.Now,
		objects: make(map[string]memoryObject),
	}, nil
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return errors.New("object key is required")
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{data: buf, contentType: contentType, createdAt: s.now()}
	return nil
}

func (s *MemoryStore) SignURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	_, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}

	expires := s.now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("Expires", strconv.FormatInt(expires, 10))
	q.Set("Signature", s.sign(key, expires))
	return fmt.Sprintf("%s/%s?%s", s.baseURL, escapeKey(key), q.Encode()), nil
}

func (s *MemoryStore) Check(context.Context) error { return nil }

// Get 直接取得物件（測試用）
func (s *MemoryStore) Get(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, "", false
	}
	return obj.data, obj.contentType, true
}

// Len 物件數量
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Open 驗證簽名與期限後取得物件
func (s *MemoryStore) Open(key, expires, signature string) ([]byte, string, error) {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return nil, "", ErrSignatureMismatch
	}

	expected := s.sign(key, exp)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, "", ErrSignatureMismatch
	}
	if s.now().Unix() > exp {
		return nil, "", ErrURLExpired
	}

	data, contentType, ok := s.Get(key)
	if !ok {
		return nil, "", ErrObjectNotFound
	}
	return data, contentType, nil
}

// ServeHTTP 以簽名網址下載物件，路徑為物件鍵
func (s *MemoryStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		common.WriteErrorResponse(w, http.StatusMethodNotAllowed, common.ErrCodeInvalidRequest, "method not allowed")
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/")
	q := r.URL.Query()

	data, contentType, err := s.Open(key, q.Get("Expires"), q.Get("Signature"))
	switch {
	case errors.Is(err, ErrObjectNotFound):
		common.WriteErrorResponse(w, http.StatusNotFound, common.ErrCodeNotFound, err.Error())
		return
	case err != nil:
		common.WriteErrorResponse(w, http.StatusForbidden, common.ErrCodeForbidden, err.Error())
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(data)
	}
}

func (s *MemoryStore) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
