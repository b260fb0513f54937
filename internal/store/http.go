package store

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
	"strings"

	"billed/internal/models"
)

// HTTPClient talks to the remote store over JSON and multipart HTTP.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewHTTPClient creates a client for the API rooted at baseURL. A non-empty
// token is sent as a bearer credential. Calls are bounded only by the
// caller's context.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{},
	}
}

// Bills returns the handle on the bills collection.
func (c *HTTPClient) Bills() Resource {
	return &httpResource{client: c, name: "bills"}
}

type httpResource struct {
	client *HTTPClient
	name   string
}

func (r *httpResource) List(ctx context.Context, q ListQuery) ([]models.Bill, error) {
	path := r.name
	if q.Email != "" {
		path += "?" + url.Values{"email": {q.Email}}.Encode()
	}
	var bills []models.Bill
	if err := r.client.do(ctx, http.MethodGet, path, nil, "", &bills); err != nil {
		return nil, err
	}
	return bills, nil
}

func (r *httpResource) Create(ctx context.Context, req CreateRequest) (*UploadResult, error) {
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, req.FileName))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, req.File); err != nil {
		return nil, fmt.Errorf("read proof file: %w", err)
	}
	if err := mw.WriteField("email", req.Email); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var result UploadResult
	if err := r.client.do(ctx, http.MethodPost, r.name, body, mw.FormDataContentType(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *httpResource) Update(ctx context.Context, req UpdateRequest) (*models.Bill, error) {
	path := r.name + "/" + url.PathEscape(req.Selector)
	var bill models.Bill
	if err := r.client.do(ctx, http.MethodPatch, path, strings.NewReader(req.Data), "application/json", &bill); err != nil {
		return nil, err
	}
	return &bill, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return responseError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// responseError turns a failed response into an *Error. The message comes
// from a JSON {"message": ...} body, then a plain text body, then the status.
func responseError(resp *http.Response) *Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := ""
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Message != "" {
		msg = payload.Message
	} else if text := strings.TrimSpace(string(raw)); text != "" && !strings.HasPrefix(text, "{") {
		msg = text
	}
	if msg == "" {
		msg = fmt.Sprintf("Erreur %d", resp.StatusCode)
	}
	return &Error{Status: resp.StatusCode, Message: msg}
}
