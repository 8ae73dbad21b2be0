package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"realtors/storage"
)

const maxImageSize = 20 * 1024 * 1024 // 20MB

// MediaService puts listing images into the blob store and returns their
// public URLs.
type MediaService struct {
	blobs      storage.BlobStore
	httpClient *http.Client
}

func NewMediaService(blobs storage.BlobStore) *MediaService {
	return &MediaService{
		blobs: blobs,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// UploadFile stores a local image under prefix, keeping its file name.
func (s *MediaService) UploadFile(ctx context.Context, prefix, file string) (string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageSize {
		return "", fmt.Errorf("image %s is larger than %d bytes", file, maxImageSize)
	}

	name := filepath.Base(file)
	key := path.Join(prefix, name)
	if err := s.blobs.Upload(ctx, key, bytes.NewReader(data), contentTypeFor(name, data)); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return s.blobs.PublicURL(key), nil
}

// Mirror downloads a remote image and stores it under prefix, named by its
// content hash.
func (s *MediaService) Mirror(ctx context.Context, prefix, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("download status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	hash := sha256.Sum256(data)
	contentHash := hex.EncodeToString(hash[:])
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	key := path.Join(prefix, contentHash[:16]+guessExtension(url, contentType))
	if err := s.blobs.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return s.blobs.PublicURL(key), nil
}

// guessExtension determines file extension from URL or content-type
func guessExtension(url, contentType string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	ext := strings.ToLower(path.Ext(url))
	if ext != "" && isImageExt(ext) {
		return ext
	}

	switch strings.TrimSpace(strings.Split(contentType, ";")[0]) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff":
		return true
	}
	return false
}

func contentTypeFor(name string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
