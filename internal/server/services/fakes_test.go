package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/estatematch/internal/common"
	"github.com/dmitrijs2005/estatematch/internal/cryptox"
	"github.com/dmitrijs2005/estatematch/internal/dbx"
	"github.com/dmitrijs2005/estatematch/internal/logging"
	"github.com/dmitrijs2005/estatematch/internal/server/config"
	"github.com/dmitrijs2005/estatematch/internal/server/models"
	"github.com/dmitrijs2005/estatematch/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/estatematch/internal/server/repositories/catalog"
)

// fakeAccounts is an in-memory accounts.Repository.
type fakeAccounts struct {
	mu        sync.Mutex
	byID      map[string]*models.Account
	resetHash map[string]string
	resetExp  map[string]time.Time
	seq       int

	listErr   error
	updateErr error
	updated   []string
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		byID:      map[string]*models.Account{},
		resetHash: map[string]string{},
		resetExp:  map[string]time.Time{},
	}
}

func (f *fakeAccounts) find(pred func(*models.Account) bool) (*models.Account, error) {
	for _, a := range f.byID {
		if pred(a) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAccounts) Create(_ context.Context, a *models.Account) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.find(func(x *models.Account) bool { return x.Email == a.Email }); err == nil {
		return nil, common.ErrConflict
	}
	f.seq++
	cp := *a
	cp.ID = "acc-" + string(rune('0'+f.seq))
	cp.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeAccounts) GetByID(_ context.Context, id string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(func(a *models.Account) bool { return a.ID == id })
}

func (f *fakeAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(func(a *models.Account) bool { return a.Email == email })
}

func (f *fakeAccounts) GetByAPIKeyHash(_ context.Context, h string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(func(a *models.Account) bool { return a.APIKeyHash.Valid && a.APIKeyHash.String == h })
}

func (f *fakeAccounts) SetAPIKey(_ context.Context, id, keyHash, sealed string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	a.APIKeyHash = sql.NullString{String: keyHash, Valid: true}
	a.TenantDSN = sql.NullString{String: sealed, Valid: true}
	return nil
}

func (f *fakeAccounts) ClearAPIKey(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	a.APIKeyHash = sql.NullString{}
	a.TenantDSN = sql.NullString{}
	return nil
}

func (f *fakeAccounts) SetResetCode(_ context.Context, email, codeHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, a := range f.byID {
		if a.Email == email {
			f.resetHash[id] = codeHash
			f.resetExp[id] = expiresAt
			a.ResetVerified = false
			return nil
		}
	}
	return common.ErrorNotFound
}

func (f *fakeAccounts) VerifyResetCode(_ context.Context, email, codeHash string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, a := range f.byID {
		if a.Email == email && f.resetHash[id] == codeHash && codeHash != "" && f.resetExp[id].After(now) {
			a.ResetVerified = true
			return nil
		}
	}
	return common.ErrorNotFound
}

func (f *fakeAccounts) ResetPassword(_ context.Context, id, hash string, changedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok || !a.ResetVerified {
		return common.ErrorNotFound
	}
	a.PasswordHash = hash
	a.PasswordChangedAt = changedAt
	a.ResetVerified = false
	delete(f.resetHash, id)
	delete(f.resetExp, id)
	return nil
}

func (f *fakeAccounts) ListSealedDSNs(context.Context) ([]accounts.SealedDSN, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []accounts.SealedDSN
	for id, a := range f.byID {
		if a.HasTenantDB() {
			out = append(out, accounts.SealedDSN{AccountID: id, Sealed: a.TenantDSN.String})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (f *fakeAccounts) UpdateSealedDSN(_ context.Context, id, sealed string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	a, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	a.TenantDSN = sql.NullString{String: sealed, Valid: true}
	f.updated = append(f.updated, id)
	return nil
}

// fakeRepoManager hands out the same fakes for every handle.
type fakeRepoManager struct {
	accounts *fakeAccounts
	catalog  catalog.Repository

	gotRole    models.Role
	gotAgentID string
	tenantUsed bool
	tenant     func(db dbx.Queryer) catalog.Repository
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *fakeRepoManager) Accounts(_ dbx.DBTX, role models.Role) accounts.Repository {
	m.gotRole = role
	return m.accounts
}

func (m *fakeRepoManager) AgentCatalog(_ dbx.Queryer, agentID string) catalog.Repository {
	m.gotAgentID = agentID
	return m.catalog
}

func (m *fakeRepoManager) TenantCatalog(db dbx.Queryer) catalog.Repository {
	m.tenantUsed = true
	if m.tenant != nil {
		return m.tenant(db)
	}
	return m.catalog
}

type fakeSender struct {
	to, code string
	err      error
}

func (s *fakeSender) SendResetCode(_ context.Context, to, code string) error {
	s.to, s.code = to, code
	return s.err
}

func testKeyring(t *testing.T, specs ...string) *cryptox.Keyring {
	t.Helper()
	if len(specs) == 0 {
		specs = []string{"k1:first-secret"}
	}
	k, err := cryptox.NewKeyring(specs)
	if err != nil {
		t.Fatalf("NewKeyring: %v", err)
	}
	return k
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                 "test-secret",
		SessionValidityDuration:   time.Hour,
		ResetCodeValidityDuration: 10 * time.Minute,
		MaxResults:                20,
	}
}

func nopLog() logging.Logger { return logging.Nop() }
