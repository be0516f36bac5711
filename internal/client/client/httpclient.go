package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/netx"
)

type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu    sync.Mutex
	token string
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// do sends the request and returns the response when it is 2xx. The caller
// closes the body.
func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.Token(); token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if h := resp.Header.Get(common.AuthorizationHeaderName); strings.HasPrefix(h, common.BearerPrefix) {
		c.SetToken(strings.TrimPrefix(h, common.BearerPrefix))
	}

	if err := netx.CheckResponse(resp); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// doJSON encodes in (when non-nil) and decodes the response into out (when
// non-nil).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	resp, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse covers both the session and the pending second factor
// shapes.
type loginResponse struct {
	Session
	SecondFactorRequired bool `json:"second_factor_required"`
}

func (c *HTTPClient) session(ctx context.Context, path string, in any) (*Session, error) {
	var s Session
	if err := c.doJSON(ctx, http.MethodPost, path, in, &s); err != nil {
		return nil, err
	}
	c.SetToken(s.Token)
	return &s, nil
}

func (c *HTTPClient) Register(ctx context.Context, username, password string) (*Session, error) {
	return c.session(ctx, "/api/auth/register", credentials{Username: username, Password: password})
}

func (c *HTTPClient) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var resp loginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", credentials{Username: username, Password: password}, &resp); err != nil {
		return nil, err
	}
	if resp.SecondFactorRequired {
		return &LoginResult{PendingPrincipalID: resp.PrincipalID}, nil
	}
	if resp.Token == "" {
		return nil, ErrUnexpectedResponse
	}
	c.SetToken(resp.Token)
	return &LoginResult{Session: &resp.Session}, nil
}

func (c *HTTPClient) VerifySecondFactor(ctx context.Context, principalID, code string) (*Session, error) {
	return c.session(ctx, "/api/mfa/verify", map[string]string{"principal_id": principalID, "code": code})
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	c.SetToken("")
	return err
}

func (c *HTTPClient) Verify(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/verify", nil, &s); err != nil {
		return nil, err
	}
	s.Token = c.Token()
	return &s, nil
}

func (c *HTTPClient) EnableSecondFactor(ctx context.Context) (*Enrollment, error) {
	var e Enrollment
	if err := c.doJSON(ctx, http.MethodPost, "/api/mfa/enable", nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *HTTPClient) DisableSecondFactor(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/mfa/disable", nil, nil)
}

func (c *HTTPClient) SecondFactorStatus(ctx context.Context) (bool, error) {
	var s struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/mfa/status", nil, &s); err != nil {
		return false, err
	}
	return s.Enabled, nil
}

func (c *HTTPClient) Upload(ctx context.Context, name string, data []byte, opts UploadOptions) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, v := range map[string]string{"title": opts.Title, "description": opts.Description, "visibility": opts.Visibility} {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/files/upload", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return &out, nil
}

func (c *HTTPClient) list(ctx context.Context, path string) ([]Object, error) {
	var out []Object
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListPublic(ctx context.Context) ([]Object, error) {
	return c.list(ctx, "/api/files/")
}

func (c *HTTPClient) ListUploaded(ctx context.Context) ([]Object, error) {
	return c.list(ctx, "/api/files/uploaded")
}

func (c *HTTPClient) ListDownloaded(ctx context.Context) ([]Object, error) {
	return c.list(ctx, "/api/files/downloaded")
}

func (c *HTTPClient) Download(ctx context.Context, id string) (*Download, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/files/"+url.PathEscape(id), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	d := &Download{Name: id, Data: data}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		d.Name = params["filename"]
	}
	d.Version, _ = strconv.Atoi(resp.Header.Get("X-Object-Version"))
	d.DownloadCount, _ = strconv.ParseInt(resp.Header.Get("X-Download-Count"), 10, 64)
	return d, nil
}

func (c *HTTPClient) Update(ctx context.Context, id string, patch Patch) (*Object, error) {
	var o Object
	if err := c.doJSON(ctx, http.MethodPut, "/api/files/"+url.PathEscape(id), patch, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *HTTPClient) Delete(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/files/"+url.PathEscape(id), nil, nil)
}
