package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/auth"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophvault/internal/server/services"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testAPI struct {
	handler http.Handler
}

func testConfig() *config.Config {
	return &config.Config{
		HTTPAddr:                    "127.0.0.1:0",
		SecretKey:                   "k",
		AccessTokenValidityDuration: time.Hour,
		RenewalThreshold:            5 * time.Minute,
		MaxUploadSize:               1 << 20,
		CORSOrigins:                 []string{"*"},
	}
}

func newTestAPI(t *testing.T, cfg *config.Config) *testAPI {
	t.Helper()

	rm, err := repomanager.NewBoltRepositoryManager(filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	require.NoError(t, rm.RunMigrations(context.Background()))
	t.Cleanup(func() { _ = rm.Close() })

	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	cipher, err := cryptox.NewCipherBoxFromSecret("test")
	require.NoError(t, err)

	ledger := services.NewAuditLedger(rm.Audit(), logging.Nop{}, 16)
	t.Cleanup(ledger.Close)

	factor := auth.NewTOTP("gophvault-test", auth.DefaultSkew)
	ss := services.NewSessionService(rm.Principals(), hasher, factor, ledger, logging.Nop{}, cfg)
	objs := services.NewObjectService(rm.Objects(), rm.Principals(), cipher, nil, ledger, logging.Nop{})

	return &testAPI{handler: NewServer(cfg, logging.Nop{}, ss, objs).Handler()}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) doJSON(t *testing.T, method, path, token string, v any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if v != nil {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	return a.do(t, method, path, token, body, "application/json")
}

// register creates a principal and returns its id and token.
func (a *testAPI) register(t *testing.T, username string) (string, string) {
	t.Helper()
	rec := a.doJSON(t, http.MethodPost, "/api/auth/register", "", credentialsRequest{Username: username, Password: "pw"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.PrincipalID, resp.Token
}

func (a *testAPI) upload(t *testing.T, token, filename string, payload []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return a.do(t, http.MethodPost, "/api/files/upload", token, &buf, mw.FormDataContentType())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
