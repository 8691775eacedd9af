package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/estatematch/internal/common"
	"github.com/dmitrijs2005/estatematch/internal/rag"
	"github.com/dmitrijs2005/estatematch/internal/server/models"
	"github.com/dmitrijs2005/estatematch/internal/server/services"
	"github.com/stretchr/testify/require"
)

type fakeCreds struct {
	role    models.Role
	account *models.Account
	token   string
	apiKey  string

	registerErr error
	loginErr    error
	resetErr    error

	gotDBURI   string
	revoked    bool
	resetEmail string
}

func newFakeCreds(role models.Role) *fakeCreds {
	return &fakeCreds{
		role:    role,
		account: &models.Account{ID: "acc-1", Name: "Ann", Email: "ann@example.com", Role: role},
		token:   "session-token",
		apiKey:  "key-123",
	}
}

func (f *fakeCreds) Role() models.Role              { return f.role }
func (f *fakeCreds) SessionValidity() time.Duration { return time.Hour }

func (f *fakeCreds) Register(_ context.Context, name, email, _, _ string) (*models.Account, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &models.Account{ID: "new", Name: name, Email: email, Role: f.role}, nil
}

func (f *fakeCreds) Authenticate(_ context.Context, _, _ string) (string, *models.Account, error) {
	if f.loginErr != nil {
		return "", nil, f.loginErr
	}
	return f.token, f.account, nil
}

func (f *fakeCreds) Authorize(_ context.Context, token string) (*models.Account, error) {
	if token != f.token {
		return nil, common.NewError(common.ErrorUnauthorized, "You are not logged in")
	}
	return f.account, nil
}

func (f *fakeCreds) IssueAPIKey(_ context.Context, _ string, dbURI string) (string, error) {
	f.gotDBURI = dbURI
	return f.apiKey, nil
}

func (f *fakeCreds) RevokeAPIKey(context.Context, string) error {
	f.revoked = true
	return nil
}

func (f *fakeCreds) AuthorizeAPIKey(_ context.Context, key string) (*models.Account, error) {
	if key == "" {
		return nil, common.NewError(common.ErrorUnauthorized, "API key required")
	}
	if key != f.apiKey {
		return nil, common.NewError(common.ErrForbidden, "Invalid API key")
	}
	return f.account, nil
}

func (f *fakeCreds) SendResetCode(_ context.Context, email string) error {
	f.resetEmail = email
	return f.resetErr
}

func (f *fakeCreds) VerifyResetCode(context.Context, string, string) error { return f.resetErr }

func (f *fakeCreds) ResetPassword(context.Context, string, string, string) (*models.Account, error) {
	if f.resetErr != nil {
		return nil, f.resetErr
	}
	return f.account, nil
}

type fakeMatcher struct {
	err error

	gotPDF      []byte
	gotListing  rag.Listing
	gotListings []rag.Listing
	gotN        int
	gotIDs      []string
	gotID       string
	gotAccount  *models.Account
	gotClientID string
	gotA, gotB  rag.ComparisonProperty
	gotClient   rag.ClientInfo
	gotRemarks  string

	report *services.ComparisonReport
}

func (f *fakeMatcher) MatchDocument(_ context.Context, pdf []byte, l rag.Listing, n int) (string, error) {
	f.gotPDF, f.gotListing, f.gotN = pdf, l, n
	return "ranked", f.err
}

func (f *fakeMatcher) MatchDocumentBulk(_ context.Context, pdf []byte, ls []rag.Listing, n int) (string, error) {
	f.gotPDF, f.gotListings, f.gotN = pdf, ls, n
	return "ranked bulk", f.err
}

func (f *fakeMatcher) MatchProperty(_ context.Context, a *models.Account, id string, n int) (any, error) {
	f.gotAccount, f.gotID, f.gotN = a, id, n
	return map[string]any{"matches": []any{}}, f.err
}

func (f *fakeMatcher) MatchProperties(_ context.Context, a *models.Account, ids []string, n int) (any, error) {
	f.gotAccount, f.gotIDs, f.gotN = a, ids, n
	return []any{}, f.err
}

func (f *fakeMatcher) Recommend(_ context.Context, a *models.Account, clientID string) (any, error) {
	f.gotAccount, f.gotClientID = a, clientID
	return map[string]any{"recommendations": []any{}}, f.err
}

func (f *fakeMatcher) Compare(_ context.Context, a, b rag.ComparisonProperty, c rag.ClientInfo, remarks string) (*services.ComparisonReport, error) {
	f.gotA, f.gotB, f.gotClient, f.gotRemarks = a, b, c, remarks
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

type testAPI struct {
	agents  *fakeCreds
	clients *fakeCreds
	matcher *fakeMatcher
	handler http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	api := &testAPI{
		agents:  newFakeCreds(models.RoleAgent),
		clients: newFakeCreds(models.RoleClient),
		matcher: &fakeMatcher{report: &services.ComparisonReport{PDF: []byte("%PDF-1.3 test")}},
	}
	api.handler = NewRouter(Deps{
		Agents:         api.agents,
		Clients:        api.clients,
		Matching:       api.matcher,
		MaxResults:     20,
		AllowedOrigins: []string{"http://app.example"},
	})
	return api
}

func (a *testAPI) do(t *testing.T, method, path string, body any, setup ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, fn := range setup {
		fn(req)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func withAPIKey(key string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set(common.APIKeyHeaderName, key) }
}

func withSession(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: common.SessionCookieName, Value: token})
	}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
