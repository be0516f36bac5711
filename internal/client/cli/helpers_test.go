package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/auth"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/httpapi"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophvault/internal/server/services"
	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	color.NoColor = true
	isTerminal = func(int) bool { return false }
}

type testEnv struct {
	url     string
	session string
	dir     string
}

// newTestEnv runs the real API on a bolt store and gives the CLI its own
// session file.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		SecretKey:                   "k",
		AccessTokenValidityDuration: time.Hour,
		RenewalThreshold:            5 * time.Minute,
		MaxUploadSize:               1 << 20,
		CORSOrigins:                 []string{"*"},
	}

	dir := t.TempDir()
	rm, err := repomanager.NewBoltRepositoryManager(filepath.Join(dir, "vault.db"))
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

	return &testEnv{
		url:     ts.URL,
		session: filepath.Join(dir, "session.json"),
		dir:     dir,
	}
}

// run executes one CLI invocation with stdin piped from input.
func (e *testEnv) run(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	return e.runAs(t, e.session, input, args...)
}

func (e *testEnv) runAs(t *testing.T, sessionFile, input string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	a := NewApp(strings.NewReader(input), &out)
	full := append([]string{"--server", e.url, "--session", sessionFile}, args...)
	err := a.Execute(context.Background(), full)
	return out.String(), err
}

// idFrom extracts the id printed in parentheses by put.
func idFrom(t *testing.T, out string) string {
	t.Helper()
	open := strings.LastIndex(out, "(")
	closing := strings.LastIndex(out, ")")
	require.True(t, open >= 0 && closing > open, "no id in %q", out)
	return out[open+1 : closing]
}
