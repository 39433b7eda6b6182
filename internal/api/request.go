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
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const (
	contentType = "application/json"
)

// request is kept as plain data so it can be replayed after a token refresh.
type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	auth        bool
}

type response struct {
	status int
	data   any
	raw    []byte
}

func jsonRequest(method, path string, payload any, auth bool) (*request, error) {
	r := &request{method: method, path: path, auth: auth}
	if payload == nil {
		return r, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s %s payload: %w", method, path, err)
	}
	r.body = body
	r.contentType = contentType

	return r, nil
}

// do executes r and decodes a 2xx JSON body into target. An authenticated
// request rejected with 401 is retried exactly once after a token refresh.
func (c *Client) do(ctx context.Context, r *request, target any) error {
	token := ""
	if r.auth {
		token = c.accessToken()
	}

	resp, err := c.send(ctx, r, token)
	if err != nil {
		return err
	}

	if resp.status == http.StatusUnauthorized && r.auth && c.Auth != nil {
		c.logger.Debug("access token rejected, refreshing", zap.String("path", r.path))

		fresh, err := c.Auth.Refresh(ctx, token)
		if err != nil {
			c.logger.Debug("token refresh failed", zap.String("path", r.path), zap.Error(err))
			apiErr := newStatusError(r.method, r.path, resp.status, resp.data)
			apiErr.Err = err
			return apiErr
		}

		resp, err = c.send(ctx, r, fresh)
		if err != nil {
			return err
		}
	}

	if resp.status < 200 || resp.status >= 300 {
		return newStatusError(r.method, r.path, resp.status, resp.data)
	}

	if target == nil || len(bytes.TrimSpace(resp.raw)) == 0 {
		return nil
	}

	if err := json.Unmarshal(resp.raw, target); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", r.method, r.path, err)
	}

	return nil
}

// list fetches a JSON array. Paginated envelopes ({"results": [...]}) are
// unwrapped so both server configurations decode the same way.
func (c *Client) list(ctx context.Context, path string, target any) error {
	var data any
	if err := c.do(ctx, &request{method: http.MethodGet, path: path, auth: true}, &data); err != nil {
		return err
	}

	var items []Item
	switch v := data.(type) {
	case nil:
	case []any:
		items = v
	case map[string]any:
		results, ok := v["results"].([]any)
		if !ok {
			return fmt.Errorf("GET %s: unexpected response shape", path)
		}
		items = results
	default:
		return fmt.Errorf("GET %s: unexpected response shape", path)
	}

	c.logger.Debug("got list from backend", zap.String("path", path), zap.Int("items", len(items)))

	cfg := &mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   target,
		TagName:  "json",
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}

	if items == nil {
		items = []Item{}
	}

	return decoder.Decode(items)
}

// Item is a single loosely typed list entry before decoding.
type Item = any

func (c *Client) send(ctx context.Context, r *request, token string) (*response, error) {
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.APIURL+r.path, body)
	if err != nil {
		return nil, err
	}

	if r.query != nil {
		req.URL.RawQuery = r.query.Encode()
	}

	c.setHeaders(req, token)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	c.logger.Debug("make request", zap.String("method", r.method), zap.String("url", req.URL.String()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, newTransportError(r.method, r.path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError(r.method, r.path, err)
	}

	return &response{
		status: resp.StatusCode,
		data:   parseBody(raw),
		raw:    raw,
	}, nil
}

func (c *Client) setHeaders(req *http.Request, token string) {
	req.Header.Set("Accept", contentType)
	req.Header.Set("User-Agent", c.UserAgent)
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}
}

// parseBody returns decoded JSON, the raw text when it is not JSON, or nil
// for an empty body.
func parseBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return string(raw)
	}

	return data
}

// multipartBody encodes fields and an optional file part. The file is read
// up front so the body can be replayed.
func multipartBody(fields map[string]string, fileField, filePath string) ([]byte, string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	for key, val := range fields {
		field, err := w.CreateFormField(key)
		if err != nil {
			return nil, "", err
		}

		if _, err = io.Copy(field, strings.NewReader(val)); err != nil {
			return nil, "", err
		}
	}

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, "", fmt.Errorf("reading %s: %w", fileField, err)
		}

		filename := filepath.Base(filePath)
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, filename))
		header.Set("Content-Type", imageType(filename))

		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", err
		}

		if _, err = part.Write(data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return b.Bytes(), w.FormDataContentType(), nil
}

func imageType(filename string) string {
	if strings.EqualFold(filepath.Ext(filename), ".png") {
		return "image/png"
	}
	return "image/jpeg"
}
