package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/netx"
	"github.com/dmitrijs2005/gophvault/internal/server/auth"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/httpapi"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophvault/internal/server/services"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	url string
}

// newTestServer runs the real API on a bolt store.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		SecretKey:                   "k",
		AccessTokenValidityDuration: time.Hour,
		RenewalThreshold:            5 * time.Minute,
		MaxUploadSize:               1 << 20,
		CORSOrigins:                 []string{"*"},
	}

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

	ts := httptest.NewServer(httpapi.NewServer(cfg, logging.Nop{}, ss, objs).Handler())
	t.Cleanup(ts.Close)

	return &testServer{url: ts.URL}
}

func TestHTTPClient_EndToEnd(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	alice := NewHTTPClient(srv.url+"/", 5*time.Second)
	s, err := alice.Register(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, s.Token, alice.Token())

	bob := NewHTTPClient(srv.url, 5*time.Second)
	_, err = bob.Register(ctx, "bob", "pw")
	require.NoError(t, err)

	up, err := alice.Upload(ctx, "notes.txt", []byte("v1"), UploadOptions{Title: "Notes", Visibility: "public"})
	require.NoError(t, err)
	assert.False(t, up.IsNewVersion)
	assert.Equal(t, "Notes", up.Object.Title)

	up2, err := alice.Upload(ctx, "notes.txt", []byte("v2"), UploadOptions{})
	require.NoError(t, err)
	assert.True(t, up2.IsNewVersion)
	assert.Equal(t, []string{up.Object.ID}, up2.Object.PreviousVersions)

	anon := NewHTTPClient(srv.url, 5*time.Second)
	d, err := anon.Download(ctx, up2.Object.ID)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", d.Name)
	assert.Equal(t, []byte("v2"), d.Data)
	assert.Equal(t, 2, d.Version)
	assert.Equal(t, int64(1), d.DownloadCount)

	_, err = bob.Download(ctx, up.Object.ID)
	require.NoError(t, err)
	downloaded, err := bob.ListDownloaded(ctx)
	require.NoError(t, err)
	require.Len(t, downloaded, 1)

	public, err := anon.ListPublic(ctx)
	require.NoError(t, err)
	require.Len(t, public, 2)
	for _, o := range public {
		assert.Equal(t, o.ID == up.Object.ID, o.Superseded, "object %s", o.ID)
	}

	priv, err := alice.Upload(ctx, "secret.txt", []byte("x"), UploadOptions{})
	require.NoError(t, err)
	_, err = bob.Download(ctx, priv.Object.ID)
	assert.ErrorIs(t, err, common.ErrorForbidden)
	_, err = anon.Download(ctx, priv.Object.ID)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	title := "Secret"
	o, err := alice.Update(ctx, priv.Object.ID, Patch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Secret", o.Title)

	mine, err := alice.ListUploaded(ctx)
	require.NoError(t, err)
	assert.Len(t, mine, 3)

	require.NoError(t, alice.Delete(ctx, priv.Object.ID))
	_, err = alice.Download(ctx, priv.Object.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	v, err := alice.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.PrincipalID, v.PrincipalID)

	require.NoError(t, alice.Logout(ctx))
	assert.Empty(t, alice.Token())
	_, err = alice.Verify(ctx)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestHTTPClient_SecondFactor(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	c := NewHTTPClient(srv.url, 5*time.Second)
	_, err := c.Register(ctx, "alice", "pw")
	require.NoError(t, err)

	e, err := c.EnableSecondFactor(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, e.Secret)

	enabled, err := c.SecondFactorStatus(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)

	fresh := NewHTTPClient(srv.url, 5*time.Second)
	res, err := fresh.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	require.Nil(t, res.Session)
	require.NotEmpty(t, res.PendingPrincipalID)
	assert.Empty(t, fresh.Token())

	_, err = fresh.VerifySecondFactor(ctx, res.PendingPrincipalID, "000000x")
	assert.ErrorIs(t, err, common.ErrorValidation)

	code, err := totp.GenerateCode(e.Secret, time.Now())
	require.NoError(t, err)
	s, err := fresh.VerifySecondFactor(ctx, res.PendingPrincipalID, code)
	require.NoError(t, err)
	assert.Equal(t, s.Token, fresh.Token())

	require.NoError(t, fresh.DisableSecondFactor(ctx))
	res, err = NewHTTPClient(srv.url, 5*time.Second).Login(ctx, "alice", "pw")
	require.NoError(t, err)
	require.NotNil(t, res.Session)
}

func TestHTTPClient_LoginErrors(t *testing.T) {
	srv := newTestServer(t)

	_, err := NewHTTPClient(srv.url, 5*time.Second).Login(context.Background(), "nobody", "pw")
	var se *netx.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
}

func TestHTTPClient_PicksUpRenewedToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer old", r.Header.Get("Authorization"))
		w.Header().Set("Authorization", "Bearer new")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"enabled":false}`))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, time.Second)
	c.SetToken("old")

	_, err := c.SecondFactorStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", c.Token())
}

func TestHTTPClient_Unavailable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()

	_, err := NewHTTPClient(ts.URL, time.Second).ListPublic(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPClient_MalformedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer ts.Close()

	_, err := NewHTTPClient(ts.URL, time.Second).ListPublic(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}
