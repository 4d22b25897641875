package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const storageAPIVersion = "2021-08-06"

// UploadResult describes a stored blob.
type UploadResult struct {
	BlobName string `json:"blob_name"`
	BlobURL  string `json:"blob_url"`
	FileSize int    `json:"file_size"`
}

// StorageService uploads resume PDFs and interview recordings to Azure
// Blob Storage using the REST API with Shared Key auth.
type StorageService struct {
	cfg        StorageConfig
	httpClient *http.Client
}

func NewStorageService(cfg StorageConfig) *StorageService {
	return &StorageService{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Enabled reports whether blob storage is configured. Uploads are
// skipped when it is not, keeping local development DB-only.
func (s *StorageService) Enabled() bool {
	return s.cfg.AccountName != "" && s.cfg.AccountKey != ""
}

// UploadResume stores a resume under resumes/user_{id}/.
func (s *StorageService) UploadResume(ctx context.Context, fileBytes []byte, originalFilename, userID string) (*UploadResult, error) {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	contentType := "application/pdf"
	if ext == ".txt" {
		contentType = "text/plain"
	}
	blobName := fmt.Sprintf("resumes/user_%s/%s%s", userID, blobID(), ext)
	return s.upload(ctx, blobName, contentType, fileBytes)
}

// UploadRecording stores an interview recording under recordings/{session}/.
func (s *StorageService) UploadRecording(ctx context.Context, fileBytes []byte, sessionID string) (*UploadResult, error) {
	blobName := fmt.Sprintf("recordings/%s/%s.webm", sessionID, blobID())
	return s.upload(ctx, blobName, "video/webm", fileBytes)
}

func (s *StorageService) upload(ctx context.Context, blobName, contentType string, data []byte) (*UploadResult, error) {
	if !s.Enabled() {
		return nil, upstreamErr("storage", "upload", fmt.Errorf("blob storage not configured"))
	}

	url := fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s", s.cfg.AccountName, s.cfg.ContainerName, blobName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return nil, upstreamErr("storage", "upload", err)
	}

	now := time.Now().UTC().Format(http.TimeFormat)
	req.Header.Set("x-ms-date", now)
	req.Header.Set("x-ms-version", storageAPIVersion)
	req.Header.Set("x-ms-blob-type", "BlockBlob")
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))

	auth, err := s.sharedKeySignature(http.MethodPut, blobName, contentType, len(data), now)
	if err != nil {
		return nil, upstreamErr("storage", "sign request", err)
	}
	req.Header.Set("Authorization", auth)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, upstreamErr("storage", "upload", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, upstreamErr("storage", "upload", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	slog.Info("Blob uploaded", "blob_name", blobName, "size", len(data))
	return &UploadResult{
		BlobName: blobName,
		BlobURL:  url,
		FileSize: len(data),
	}, nil
}

// DeleteBlob removes a blob by name. A blob that is already gone is
// not an error.
func (s *StorageService) DeleteBlob(ctx context.Context, blobName string) error {
	if !s.Enabled() {
		return nil
	}

	url := fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s", s.cfg.AccountName, s.cfg.ContainerName, blobName)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return upstreamErr("storage", "delete", err)
	}

	now := time.Now().UTC().Format(http.TimeFormat)
	req.Header.Set("x-ms-date", now)
	req.Header.Set("x-ms-version", storageAPIVersion)

	auth, err := s.sharedKeySignature(http.MethodDelete, blobName, "", 0, now)
	if err != nil {
		return upstreamErr("storage", "sign request", err)
	}
	req.Header.Set("Authorization", auth)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return upstreamErr("storage", "delete", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusNotFound {
		return upstreamErr("storage", "delete", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	slog.Info("Blob deleted", "blob_name", blobName)
	return nil
}

// BlobNameFromURL extracts the blob name from a URL produced by this
// service. Returns "" for URLs outside the configured container.
func (s *StorageService) BlobNameFromURL(blobURL string) string {
	prefix := fmt.Sprintf("https://%s.blob.core.windows.net/%s/", s.cfg.AccountName, s.cfg.ContainerName)
	if !strings.HasPrefix(blobURL, prefix) {
		return ""
	}
	return strings.TrimPrefix(blobURL, prefix)
}

// sharedKeySignature builds the SharedKey authorization header for a
// blob request.
func (s *StorageService) sharedKeySignature(verb, blobName, contentType string, contentLength int, date string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(s.cfg.AccountKey)
	if err != nil {
		return "", fmt.Errorf("invalid account key: %w", err)
	}

	lengthStr := ""
	if contentLength > 0 {
		lengthStr = fmt.Sprintf("%d", contentLength)
	}

	canonicalHeaders := fmt.Sprintf("x-ms-date:%s\nx-ms-version:%s", date, storageAPIVersion)
	if verb == http.MethodPut {
		canonicalHeaders = "x-ms-blob-type:BlockBlob\n" + canonicalHeaders
	}
	canonicalResource := fmt.Sprintf("/%s/%s/%s", s.cfg.AccountName, s.cfg.ContainerName, blobName)

	stringToSign := strings.Join([]string{
		verb,
		"",           // Content-Encoding
		"",           // Content-Language
		lengthStr,    // Content-Length
		"",           // Content-MD5
		contentType,  // Content-Type
		"",           // Date (x-ms-date is used instead)
		"", "", "", "", "", // If-* and Range
		canonicalHeaders,
		canonicalResource,
	}, "\n")

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("SharedKey %s:%s", s.cfg.AccountName, signature), nil
}

func blobID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
