package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"audiodrop/internal/fileutil"
)

const metaSuffix = ".meta.json"

var (
	// ErrLinkExpired is returned by Verify for links past their expiry.
	ErrLinkExpired = errors.New("link expired")
	// ErrBadSignature is returned by Verify for tampered or foreign links.
	ErrBadSignature = errors.New("invalid link signature")
)

// Info describes a stored artifact.
type Info struct {
	ContentType string            `json:"contentType"`
	Metadata    map[string]string `json:"metadata"`
	Size        int64             `json:"size"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// FileStore keeps artifacts in a local directory.
type FileStore struct {
	dir     string
	baseURL string
	secret  []byte
	now     func() time.Time
}

// NewFileStore creates dir if needed. baseURL is the public origin of the
// intake server that serves /files/{key}.
func NewFileStore(dir, baseURL, secret string) (*FileStore, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("filesystem store requires a signing secret")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &FileStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  []byte(secret),
		now:     time.Now,
	}, nil
}

func (s *FileStore) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.HasSuffix(key, metaSuffix) {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.dir, key), nil
}

func (s *FileStore) Exists(_ context.Context, key string) (bool, error) {
	path, err := s.path(key)
	if err != nil {
		return false, opError("exists", key, err)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, opError("exists", key, err)
	}
	return true, nil
}

func (s *FileStore) Read(_ context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, opError("read", key, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, opError("read", key, ErrNotFound)
		}
		return nil, opError("read", key, err)
	}
	return data, nil
}

// Write replaces the sidecar and then the artifact through temp files and
// renames. Exists only reports true once the artifact rename, the last step,
// has succeeded.
func (s *FileStore) Write(_ context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	path, err := s.path(key)
	if err != nil {
		return opError("write", key, err)
	}
	info := Info{
		ContentType: contentType,
		Metadata:    metadata,
		Size:        int64(len(data)),
		UpdatedAt:   s.now().UTC(),
	}
	sidecar, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return opError("write", key, fmt.Errorf("encode metadata: %w", err))
	}
	if err := fileutil.WriteAtomic(path+metaSuffix, sidecar, 0o644); err != nil {
		return opError("write", key, err)
	}
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return opError("write", key, err)
	}
	return nil
}

// Stat returns the sidecar metadata of an artifact.
func (s *FileStore) Stat(_ context.Context, key string) (Info, error) {
	path, err := s.path(key)
	if err != nil {
		return Info{}, opError("stat", key, err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, opError("stat", key, ErrNotFound)
		}
		return Info{}, opError("stat", key, err)
	}
	info := Info{Size: fi.Size(), UpdatedAt: fi.ModTime().UTC()}
	raw, err := os.ReadFile(path + metaSuffix)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &info); err != nil {
			return Info{}, opError("stat", key, fmt.Errorf("decode metadata: %w", err))
		}
	case !errors.Is(err, fs.ErrNotExist):
		return Info{}, opError("stat", key, err)
	}
	return info, nil
}

// Open returns a handle for serving the artifact. Callers close the file.
func (s *FileStore) Open(key string) (*os.File, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, opError("open", key, err)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, opError("open", key, ErrNotFound)
		}
		return nil, opError("open", key, err)
	}
	return f, nil
}

func (s *FileStore) SignedLink(_ context.Context, key string, ttl time.Duration) (string, error) {
	if _, err := s.path(key); err != nil {
		return "", opError("sign", key, err)
	}
	expires := strconv.FormatInt(s.now().Add(ttl).Unix(), 10)
	query := url.Values{}
	query.Set("expires", expires)
	query.Set("signature", s.sign(key, expires))
	return s.baseURL + "/files/" + url.PathEscape(key) + "?" + query.Encode(), nil
}

// Verify checks a link issued by SignedLink.
func (s *FileStore) Verify(key, expires, signature string) error {
	expected := s.sign(key, expires)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return ErrBadSignature
	}
	unix, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	if !s.now().Before(time.Unix(unix, 0)) {
		return ErrLinkExpired
	}
	return nil
}

func (s *FileStore) sign(key, expires string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(expires))
	return hex.EncodeToString(mac.Sum(nil))
}
