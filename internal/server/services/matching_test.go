package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/estatematch/internal/common"
	"github.com/dmitrijs2005/estatematch/internal/interpret"
	"github.com/dmitrijs2005/estatematch/internal/rag"
	"github.com/dmitrijs2005/estatematch/internal/report"
	"github.com/dmitrijs2005/estatematch/internal/server/models"
	"github.com/dmitrijs2005/estatematch/internal/server/repositories/repomanager"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type fakeModel struct {
	out     string
	err     error
	prompts []string
}

func (m *fakeModel) Invoke(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.out, m.err
}

type fakeCatalog struct {
	properties []models.Property
	contacts   []models.Contact
	err        error
}

func (c *fakeCatalog) GetProperty(_ context.Context, id string) (*models.Property, error) {
	if c.err != nil {
		return nil, c.err
	}
	for _, p := range c.properties {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (c *fakeCatalog) GetProperties(_ context.Context, ids []string) ([]models.Property, error) {
	var out []models.Property
	for _, id := range ids {
		for _, p := range c.properties {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	if len(out) == 0 {
		return nil, common.ErrorNotFound
	}
	return out, nil
}

func (c *fakeCatalog) ListAvailableProperties(context.Context) ([]models.Property, error) {
	return c.properties, c.err
}

func (c *fakeCatalog) ListContacts(context.Context) ([]models.Contact, error) {
	return c.contacts, c.err
}

func (c *fakeCatalog) GetContactByUser(_ context.Context, userID string) (*models.Contact, error) {
	for _, ct := range c.contacts {
		if ct.UserID.String == userID {
			cp := ct
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

type fakeArchive struct {
	url    string
	err    error
	stored []byte
}

func (a *fakeArchive) Store(_ context.Context, pdf []byte) (string, error) {
	a.stored = pdf
	return a.url, a.err
}

type stubTenants struct {
	dsn string
	ok  bool
	err error
}

func (s stubTenants) TenantDSN(*models.Account) (string, bool, error) { return s.dsn, s.ok, s.err }

func newMatching(rm repomanager.RepositoryManager, tenants TenantResolver, model *fakeModel, archive Archiver) *MatchingService {
	interp := interpret.New(nopLog())
	return NewMatchingService(MatchingDeps{
		Repomanager: rm,
		Tenants:     tenants,
		Model:       model,
		Interpreter: interp,
		Renderer:    report.NewRenderer(interp),
		Archive:     archive,
		MaxResults:  20,
		Log:         nopLog(),
	})
}

func dec(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func sampleCatalog() *fakeCatalog {
	return &fakeCatalog{
		properties: []models.Property{
			{ID: "p1", Title: "Sea View Flat", Price: dec("150000")},
			{ID: "p2", Title: "Old Villa", Price: dec("300000")},
		},
		contacts: []models.Contact{
			{ID: "c1", FullName: "Amina", UserID: sql.NullString{String: aminaUserID, Valid: true}, BudgetMin: dec("100000"), BudgetMax: dec("200000")},
		},
	}
}

func TestMatchProperty_AgentScopeAndLenientResult(t *testing.T) {
	rm := &fakeRepoManager{catalog: sampleCatalog()}
	model := &fakeModel{out: "```json\n{\"recommendations\":[]}\n```"}
	s := newMatching(rm, stubTenants{}, model, nil)

	data, err := s.MatchProperty(context.Background(), &models.Account{ID: "agent-1"}, "p1", 500)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"recommendations": []any{}}, data)
	assert.Equal(t, "agent-1", rm.gotAgentID)
	assert.False(t, rm.tenantUsed)

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "Recommend the most 20 relevant clients")
	assert.Contains(t, model.prompts[0], "PROPERTY TO MATCH:\nTitle: Sea View Flat")
}

func TestMatchProperty_RawFallback(t *testing.T) {
	model := &fakeModel{out: "no json here"}
	s := newMatching(&fakeRepoManager{catalog: sampleCatalog()}, stubTenants{}, model, nil)

	data, err := s.MatchProperty(context.Background(), &models.Account{ID: "a"}, "p1", 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{interpret.RawResponseKey: "no json here"}, data)
	assert.Contains(t, model.prompts[0], "Recommend the most 5 relevant clients")
}

func TestMatchProperty_Errors(t *testing.T) {
	ctx := context.Background()
	acc := &models.Account{ID: "a"}

	s := newMatching(&fakeRepoManager{catalog: sampleCatalog()}, stubTenants{}, &fakeModel{out: "{}"}, nil)
	_, err := s.MatchProperty(ctx, acc, "missing", 5)
	assert.True(t, errors.Is(err, common.ErrorNotFound))
	assert.Equal(t, MsgPropertyNotFound, common.Message(err))

	empty := sampleCatalog()
	empty.contacts = nil
	s = newMatching(&fakeRepoManager{catalog: empty}, stubTenants{}, &fakeModel{out: "{}"}, nil)
	_, err = s.MatchProperty(ctx, acc, "p1", 5)
	assert.True(t, errors.Is(err, common.ErrEmptyDataset))

	model := &fakeModel{err: common.ErrUpstream}
	s = newMatching(&fakeRepoManager{catalog: sampleCatalog()}, stubTenants{}, model, nil)
	_, err = s.MatchProperty(ctx, acc, "p1", 5)
	assert.True(t, errors.Is(err, common.ErrUpstream))

	s = newMatching(&fakeRepoManager{catalog: sampleCatalog()}, stubTenants{err: errors.New("bad key")}, model, nil)
	_, err = s.MatchProperty(ctx, acc, "p1", 5)
	assert.ErrorContains(t, err, "bad key")

	s = newMatching(&fakeRepoManager{catalog: sampleCatalog()}, stubTenants{dsn: "mysql://nope", ok: true}, model, nil)
	_, err = s.MatchProperty(ctx, acc, "p1", 5)
	assert.True(t, errors.Is(err, common.ErrUpstream))
	assert.Equal(t, MsgTenantDB, common.Message(err))
}

func TestMatchProperties_OrderAndValidation(t *testing.T) {
	model := &fakeModel{out: `{"recommendations":[]}`}
	s := newMatching(&fakeRepoManager{catalog: sampleCatalog()}, stubTenants{}, model, nil)
	ctx := context.Background()

	_, err := s.MatchProperties(ctx, &models.Account{ID: "a"}, nil, 5)
	assert.True(t, errors.Is(err, common.ErrValidation))
	assert.Equal(t, MsgPropertyIDsRequired, common.Message(err))

	_, err = s.MatchProperties(ctx, &models.Account{ID: "a"}, []string{"p2", "nope", "p1"}, 3)
	require.NoError(t, err)
	p := model.prompts[0]
	assert.Contains(t, p, "Recommend the top 3 most relevant clients")
	assert.Less(t, strings.Index(p, "PROPERTY: Old Villa"), strings.Index(p, "PROPERTY: Sea View Flat"))
}

const aminaUserID = "6f1c2a53-1f52-4b0e-9d6e-5a0b8f3a1c11"

func TestRecommend(t *testing.T) {
	model := &fakeModel{out: `{"summary":"ok"}`}
	s := newMatching(&fakeRepoManager{catalog: sampleCatalog()}, stubTenants{}, model, nil)
	ctx := context.Background()

	data, err := s.Recommend(ctx, &models.Account{ID: "a"}, aminaUserID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"summary": "ok"}, data)
	assert.Contains(t, model.prompts[0], "USER PREFERENCES:\nName: Amina")
	assert.Contains(t, model.prompts[0], "AVAILABLE PROPERTY 2:\nTitle: Old Villa")

	_, err = s.Recommend(ctx, &models.Account{ID: "a"}, "")
	assert.Equal(t, MsgClientIDRequired, common.Message(err))

	_, err = s.Recommend(ctx, &models.Account{ID: "a"}, "0b6e9c1e-8d0a-4f37-9a55-3c2f4e7d9b01")
	assert.True(t, errors.Is(err, common.ErrorNotFound))

	calls := len(model.prompts)
	_, err = s.Recommend(ctx, &models.Account{ID: "a"}, "u1")
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))
	assert.Equal(t, MsgInvalidUserID+": u1", common.Message(err))
	assert.Len(t, model.prompts, calls, "malformed id must not reach the model")
}

func TestMatchDocument_RejectsEmptyInput(t *testing.T) {
	s := newMatching(&fakeRepoManager{}, stubTenants{}, &fakeModel{}, nil)
	_, err := s.MatchDocument(context.Background(), nil, rag.Listing{}, 5)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	_, err = s.MatchDocumentBulk(context.Background(), []byte("%PDF"), nil, 5)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

const comparisonAnswer = `{
  "client": {"name": "Amina", "email": "a@example.com", "phone": "0555"},
  "comparisonSummary": {
    "propertyA": {"location": "Algiers", "price": 250000, "type": "Apartment", "area": 90, "rooms": 3, "strengths": ["View"], "weaknesses": []},
    "propertyB": {"location": "Oran", "price": 300000, "type": "Villa", "area": 200, "rooms": 5, "strengths": [], "weaknesses": ["Far"]},
    "recommendedProperty": "A",
    "justification": "Cheaper"
  },
  "finalQuote": {"basePrice": 250000, "discount": 0, "agentCommission": 5000, "totalPrice": 255000, "currency": "DZD"}
}`

func TestCompare(t *testing.T) {
	model := &fakeModel{out: comparisonAnswer}
	archive := &fakeArchive{url: "https://s3.local/reports/x.pdf"}
	s := newMatching(&fakeRepoManager{}, stubTenants{}, model, archive)

	a := rag.ComparisonProperty{Address: "Algiers", Price: "250000", PropertyType: "Apartment"}
	b := rag.ComparisonProperty{Address: "Oran", Price: "300000", PropertyType: "Villa"}
	out, err := s.Compare(context.Background(), a, b, rag.ClientInfo{FullName: "Amina"}, "5% discount")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(out.PDF), "%PDF-"))
	assert.Equal(t, archive.url, out.URL)
	assert.Equal(t, out.PDF, archive.stored)
	assert.Contains(t, model.prompts[0], "AGENT REMARKS:\n5% discount")

	archive.err = errors.New("bucket gone")
	out, err = s.Compare(context.Background(), a, b, rag.ClientInfo{}, "")
	require.NoError(t, err)
	assert.Empty(t, out.URL)
}

func TestCompare_MalformedAnswer(t *testing.T) {
	model := &fakeModel{out: `{"client":{},"comparisonSummary":{"propertyA":{},"propertyB":{}}}`}
	s := newMatching(&fakeRepoManager{}, stubTenants{}, model, nil)

	_, err := s.Compare(context.Background(), rag.ComparisonProperty{}, rag.ComparisonProperty{}, rag.ClientInfo{}, "")
	assert.True(t, errors.Is(err, common.ErrMalformedInput))
}

const tenantSchema = `
CREATE TABLE locations (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE properties (
    id TEXT PRIMARY KEY, title TEXT NOT NULL, location_id INTEGER, price NUMERIC, area REAL,
    property_type TEXT, rooms INTEGER, agent_id TEXT, availability_status TEXT, amenities TEXT, condition TEXT
);
CREATE TABLE contacts (
    id TEXT PRIMARY KEY, user_id TEXT, full_name TEXT NOT NULL, preferred_location_id INTEGER,
    budget_min NUMERIC, budget_max NUMERIC, property_types TEXT, desired_area_min REAL, desired_area_max REAL,
    rooms_min INTEGER, rooms_max INTEGER, amenities TEXT, priority_level TEXT, preferred_contact_method TEXT
);
INSERT INTO locations (id, name) VALUES (1, 'Algiers');
INSERT INTO properties VALUES
    ('p1', 'Sea View Flat', 1, 150000, NULL, 'Apartment', 3, 'someone-else', 'Available', NULL, NULL);
INSERT INTO contacts VALUES
    ('c1', '6f1c2a53-1f52-4b0e-9d6e-5a0b8f3a1c11', 'Amina', 1, 100000, 200000, '["Apartment"]', NULL, NULL, 2, 4, NULL, 'High', 'Email');
`

func newTenantDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenant.db")
	db, err := sqlx.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(tenantSchema)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	_, err = os.Stat(path)
	require.NoError(t, err)
	return "sqlite://" + path
}

func TestMatchProperty_TenantDatabaseEndToEnd(t *testing.T) {
	keyring := testKeyring(t)
	repo := newFakeAccounts()
	creds := NewCredentialManager(models.RoleAgent, nil, &fakeRepoManager{accounts: repo}, testConfig(), keyring, &fakeSender{}, nopLog())

	ctx := context.Background()
	acc, err := creds.Register(ctx, "Agent", "agent@example.com", "pw", "pw")
	require.NoError(t, err)
	key, err := creds.IssueAPIKey(ctx, acc.ID, newTenantDB(t))
	require.NoError(t, err)
	caller, err := creds.AuthorizeAPIKey(ctx, key)
	require.NoError(t, err)

	model := &fakeModel{out: "```json\n" + `{"property":{"price":150000},"recommendations":[{"clientName":"Amina","matchScore":95,"reasons":["Within budget"]}]}` + "\n```"}
	s := newMatching(repomanager.NewPostgresRepositoryManager(), creds, model, nil)

	data, err := s.MatchProperty(ctx, caller, "p1", 5)
	require.NoError(t, err)

	prompt := model.prompts[0]
	assert.Contains(t, prompt, "Price: 150000\n")
	assert.Contains(t, prompt, "Area: Unknown m²")
	assert.Contains(t, prompt, "CLIENT: Amina\nPreferred Location: Algiers\nBudget: 100000 - 200000\n")

	recs := data.(map[string]any)["recommendations"].([]any)
	first := recs[0].(map[string]any)
	assert.Equal(t, "Amina", first["clientName"])
	assert.Equal(t, json.Number("95"), first["matchScore"])
}
