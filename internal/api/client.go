package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "KEEPSAKE_HTTP_TIMEOUT"
)

// Client is a simple HTTP client for the keepsake API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Counts fetches the dashboard summary.
func (c *Client) Counts(ctx context.Context) (CountsResponse, error) {
	var resp CountsResponse
	err := c.do(ctx, http.MethodPost, "/counts/list", struct{}{}, &resp)
	return resp, err
}

// ListVideos fetches one page of video metadata.
func (c *Client) ListVideos(ctx context.Context, req VideoListRequest) (VideoListResponse, error) {
	var resp VideoListResponse
	err := c.do(ctx, http.MethodPost, "/videos/list", req, &resp)
	return resp, err
}

// DeleteVideo removes one video.
func (c *Client) DeleteVideo(ctx context.Context, id string) (MessageResponse, error) {
	var resp MessageResponse
	err := c.do(ctx, http.MethodPost, "/videos/delete", IDRequest{ID: id}, &resp)
	return resp, err
}

// UploadVideo streams content as the multipart "video" field of /videos/create.
func (c *Client) UploadVideo(ctx context.Context, filename, contentType string, content io.Reader) (VideoResponse, error) {
	var resp VideoResponse

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeVideoPart(mw, filename, contentType, content))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/videos/create", pr)
	if err != nil {
		pr.Close()
		return resp, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	// Uploads are bounded by the context, not the client timeout.
	httpClient := *c.http
	httpClient.Timeout = 0
	httpResp, err := httpClient.Do(req)
	if err != nil {
		return resp, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

func writeVideoPart(mw *multipart.Writer, filename, contentType string, content io.Reader) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="video"; filename=%q`, filename))
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return mw.Close()
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	endpoint := c.baseURL + path

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}

// StreamURL returns the absolute streaming URL for a video id.
func (c *Client) StreamURL(id string) string {
	return c.baseURL + "/videos/stream/" + url.PathEscape(id)
}
