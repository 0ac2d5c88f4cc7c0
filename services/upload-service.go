package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"task-manager/logging"
	"task-manager/utils"

	"github.com/sony/gobreaker"
)

// UploadService stores profile and attachment images. Files land in a local
// directory by default; when a remote image store is configured, uploads are
// forwarded there behind a circuit breaker and the store's public URL is
// returned instead.
type UploadService struct {
	uploadDir     string
	imageStoreURL string
	httpClient    *http.Client
	storeBreaker  *gobreaker.CircuitBreaker
}

func NewUploadService(uploadDir, imageStoreURL string, httpClient *http.Client, storeBreaker *gobreaker.CircuitBreaker) *UploadService {
	return &UploadService{
		uploadDir:     uploadDir,
		imageStoreURL: imageStoreURL,
		httpClient:    httpClient,
		storeBreaker:  storeBreaker,
	}
}

// SaveImage persists an image payload and returns its public URL. baseURL is
// the scheme+host serving this API, used to build local upload URLs.
func (s *UploadService) SaveImage(data []byte, ext, contentType, baseURL string) (string, error) {
	if s.imageStoreURL != "" {
		return s.saveRemote(data, contentType)
	}
	return s.saveLocal(data, ext, baseURL)
}

func (s *UploadService) saveLocal(data []byte, ext, baseURL string) (string, error) {
	if _, err := os.Stat(s.uploadDir); os.IsNotExist(err) {
		if err := os.MkdirAll(s.uploadDir, 0700); err != nil {
			return "", fmt.Errorf("failed to create upload directory: %v", err)
		}
	}

	name := utils.GenerateUploadName(ext)
	if err := os.WriteFile(filepath.Join(s.uploadDir, name), data, 0600); err != nil {
		return "", fmt.Errorf("failed to store image: %v", err)
	}

	logging.Logger.Infof("Event ID: IMAGE_STORED, Description: Image stored locally as %s (%d bytes)", name, len(data))
	return fmt.Sprintf("%s/uploads/%s", baseURL, name), nil
}

func (s *UploadService) saveRemote(data []byte, contentType string) (string, error) {
	result, err := s.storeBreaker.Execute(func() (interface{}, error) {
		resp, err := s.httpClient.Post(s.imageStoreURL, contentType, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return nil, fmt.Errorf("image store returned status %d", resp.StatusCode)
		}

		var body struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("failed to decode image store response: %v", err)
		}
		return body.URL, nil
	})
	if err != nil {
		return "", fmt.Errorf("image store upload failed: %v", err)
	}

	url := result.(string)
	logging.Logger.Infof("Event ID: IMAGE_STORED, Description: Image stored remotely at %s", url)
	return url, nil
}
