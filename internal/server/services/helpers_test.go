package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/auth"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- helpers ---

type recordingAuditor struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func (a *recordingAuditor) Append(ctx context.Context, principalID, action, objectID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, models.AuditEntry{PrincipalID: principalID, Action: action, ObjectID: objectID})
}

func (a *recordingAuditor) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type memoryPayloads struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryPayloads() *memoryPayloads {
	return &memoryPayloads{data: map[string][]byte{}}
}

func (m *memoryPayloads) Put(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *memoryPayloads) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return d, nil
}

func (m *memoryPayloads) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func newBoltManager(t *testing.T) repomanager.RepositoryManager {
	t.Helper()
	m, err := repomanager.NewBoltRepositoryManager(filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	require.NoError(t, m.RunMigrations(context.Background()))
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                   "k",
		AccessTokenValidityDuration: time.Hour,
		RenewalThreshold:            5 * time.Minute,
	}
}

type sessionFixture struct {
	svc     *SessionService
	rm      repomanager.RepositoryManager
	auditor *recordingAuditor
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	rm := newBoltManager(t)
	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	factor := auth.NewTOTP("gophvault-test", auth.DefaultSkew)
	auditor := &recordingAuditor{}

	svc := NewSessionService(rm.Principals(), hasher, factor, auditor, logging.Nop{}, testConfig())
	return &sessionFixture{svc: svc, rm: rm, auditor: auditor}
}

type objectFixture struct {
	svc     *ObjectService
	rm      repomanager.RepositoryManager
	auditor *recordingAuditor
	alice   string
	bob     string
}

func newObjectFixture(t *testing.T, store *memoryPayloads) *objectFixture {
	t.Helper()
	rm := newBoltManager(t)
	cipher, err := cryptox.NewCipherBoxFromSecret("test-secret")
	require.NoError(t, err)
	auditor := &recordingAuditor{}

	var svc *ObjectService
	if store != nil {
		svc = NewObjectService(rm.Objects(), rm.Principals(), cipher, store, auditor, logging.Nop{})
	} else {
		svc = NewObjectService(rm.Objects(), rm.Principals(), cipher, nil, auditor, logging.Nop{})
	}

	ctx := context.Background()
	for _, p := range []*models.Principal{{ID: "alice-id", Username: "alice"}, {ID: "bob-id", Username: "bob"}} {
		_, err := rm.Principals().Create(ctx, p)
		require.NoError(t, err)
	}

	return &objectFixture{svc: svc, rm: rm, auditor: auditor, alice: "alice-id", bob: "bob-id"}
}

func ptr[T any](v T) *T { return &v }

// fakePrincipalsBase satisfies principals.Repository with no-op methods;
// tests embed it and override what they need.
type fakePrincipalsBase struct{}

func (fakePrincipalsBase) Create(_ context.Context, p *models.Principal) (*models.Principal, error) {
	return p, nil
}
func (fakePrincipalsBase) FindByUsername(context.Context, string) (*models.Principal, error) {
	return nil, common.ErrorNotFound
}
func (fakePrincipalsBase) FindByID(context.Context, string) (*models.Principal, error) {
	return nil, common.ErrorNotFound
}
func (fakePrincipalsBase) SetSecondFactorSecret(context.Context, string, string) error { return nil }
func (fakePrincipalsBase) AddOwnedObject(context.Context, string, string) error        { return nil }
func (fakePrincipalsBase) RemoveOwnedObject(context.Context, string, string) error     { return nil }
func (fakePrincipalsBase) AddDownloadedObject(context.Context, string, string) (bool, error) {
	return true, nil
}
