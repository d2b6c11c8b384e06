// Package media uploads product images to a third-party host and
// returns the public URL the product document should store.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

type Uploader struct {
	uploadURL string
	apiKey    string
	http      *http.Client
}

func NewUploader(uploadURL, apiKey string, httpClient *http.Client) *Uploader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Uploader{uploadURL: uploadURL, apiKey: apiKey, http: httpClient}
}

// Upload posts the image as multipart form data and returns the public
// URL from the host's response.
func (u *Uploader) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if u.apiKey != "" {
		if err := mw.WriteField("key", u.apiKey); err != nil {
			return "", fmt.Errorf("write key field: %w", err)
		}
	}

	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, content); err != nil {
		return "", fmt.Errorf("copy image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.uploadURL, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media host returned %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if body.Data.URL == "" {
		return "", fmt.Errorf("upload response missing url")
	}
	return body.Data.URL, nil
}
