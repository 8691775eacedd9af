package httpapi

import (
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/estatematch/internal/common"
	"github.com/dmitrijs2005/estatematch/internal/rag"
	"github.com/dmitrijs2005/estatematch/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var encodedPDF = base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 listing"))

func TestRecommendationRoutesRequireAPIKey(t *testing.T) {
	api := newTestAPI(t)

	paths := []string{
		"/api/v1/recommendations/with-pdf",
		"/api/v1/recommendations/with-pdf-bulk",
		"/api/v1/recommendations/property/p1",
		"/api/v1/recommendations/property-bulk",
		"/api/v1/recommendations/property-recommendations",
	}
	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, p, map[string]any{})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "API key required", decodeEnvelope(t, rec)["message"])

			rec = api.do(t, http.MethodPost, p, map[string]any{}, withAPIKey("wrong"))
			assert.Equal(t, http.StatusForbidden, rec.Code)
		})
	}
}

func TestWithPDF(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/recommendations/with-pdf", map[string]any{
		"number":    3,
		"proprety":  `{"location":"Riga","price":150000,"rooms":3}`,
		"pdfBuffer": encodedPDF,
	}, withAPIKey("key-123"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeEnvelope(t, rec)
	assert.Equal(t, "ranked", body["result"])
	assert.Equal(t, 3, api.matcher.gotN)
	assert.Equal(t, []byte("%PDF-1.4 listing"), api.matcher.gotPDF)
	assert.Equal(t, rag.Listing{Location: "Riga", Price: "150000", Rooms: "3"}, api.matcher.gotListing)
}

func TestWithPDFInputErrors(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		body map[string]any
		msg  string
	}{
		{"missing pdf", map[string]any{"proprety": map[string]any{}}, rag.MsgMissingPDF},
		{"bad base64", map[string]any{"proprety": map[string]any{}, "pdfBuffer": "%%%"}, rag.MsgBadPDF},
		{"bad property json", map[string]any{"proprety": "{oops", "pdfBuffer": encodedPDF}, msgInvalidPropertyJSON},
		{"property not object", map[string]any{"proprety": 7, "pdfBuffer": encodedPDF}, "property must be an object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/v1/recommendations/with-pdf", tt.body, withAPIKey("key-123"))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.msg, decodeEnvelope(t, rec)["message"])
		})
	}
}

func TestWithPDFBulk(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/recommendations/with-pdf-bulk", map[string]any{
		"number":    "100",
		"proprety":  []any{map[string]any{"location": "A"}, map[string]any{"location": "B"}},
		"pdfBuffer": encodedPDF,
	}, withAPIKey("key-123"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "ranked bulk", decodeEnvelope(t, rec)["result"])
	assert.Equal(t, 20, api.matcher.gotN)
	require.Len(t, api.matcher.gotListings, 2)
	assert.Equal(t, "B", api.matcher.gotListings[1].Location)

	rec = api.do(t, http.MethodPost, "/api/v1/recommendations/with-pdf-bulk", map[string]any{
		"proprety":  map[string]any{"location": "A"},
		"pdfBuffer": encodedPDF,
	}, withAPIKey("key-123"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPropertyMatch(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/recommendations/property/prop-9", nil, withAPIKey("key-123"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "prop-9", api.matcher.gotID)
	assert.Equal(t, rag.DefaultResults, api.matcher.gotN)
	assert.Equal(t, "acc-1", api.matcher.gotAccount.ID)
	assert.Contains(t, decodeEnvelope(t, rec), "data")

	api.matcher.err = common.NewError(common.ErrorNotFound, "Property not found")
	rec = api.do(t, http.MethodPost, "/api/v1/recommendations/property/missing", nil, withAPIKey("key-123"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Property not found", decodeEnvelope(t, rec)["message"])
}

func TestPropertyBulk(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/recommendations/property-bulk", map[string]any{
		"number":      2,
		"propertyIds": []any{"b", 7, "a"},
	}, withAPIKey("key-123"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"b", "7", "a"}, api.matcher.gotIDs)
	assert.Equal(t, 2, api.matcher.gotN)

	rec = api.do(t, http.MethodPost, "/api/v1/recommendations/property-bulk", map[string]any{"propertyIds": "x"}, withAPIKey("key-123"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, api.matcher.gotIDs)
}

func TestPropertyRecommendations(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/recommendations/property-recommendations", map[string]any{"clientId": "c-1"}, withAPIKey("key-123"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c-1", api.matcher.gotClientID)

	api.matcher.err = common.NewError(common.ErrUpstream, "model down")
	rec = api.do(t, http.MethodPost, "/api/v1/recommendations/property-recommendations", map[string]any{"clientId": "c-1"}, withAPIKey("key-123"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, msgUpstream, decodeEnvelope(t, rec)["message"])
}

func TestPropertyRecommendationsInvalidClientID(t *testing.T) {
	api := newTestAPI(t)
	api.matcher.err = common.NewError(common.ErrInvalidArgument, "Invalid user ID format: c-1")

	rec := api.do(t, http.MethodPost, "/api/v1/recommendations/property-recommendations", map[string]any{"clientId": "c-1"}, withAPIKey("key-123"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "fail", env["status"])
	assert.Equal(t, "Invalid user ID format: c-1", env["message"])
}

func comparisonBody() map[string]any {
	return map[string]any{
		"propertyA":      map[string]any{"address": "Main 1", "price": 100000, "property_type": "flat"},
		"propertyB":      map[string]any{"address": "Main 2", "price": "120000", "property_type": "house", "amenities": []any{"garden"}},
		"clientInfoJson": `{"full_name":"Ann Lee","email":"ann@example.com"}`,
		"agentRemarks":   "prefers quiet streets",
	}
}

func TestPropertyComparison(t *testing.T) {
	api := newTestAPI(t)
	api.matcher.report.URL = "https://s3.example/reports/x.pdf"

	rec := api.do(t, http.MethodPost, "/api/v1/recommendations/property-comparison", comparisonBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, report.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename="property-comparison-report.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "13", rec.Header().Get("Content-Length"))
	assert.Equal(t, "https://s3.example/reports/x.pdf", rec.Header().Get(reportURLHeader))
	assert.Equal(t, "%PDF-1.3 test", rec.Body.String())

	assert.Equal(t, "100000", api.matcher.gotA.Price)
	assert.Equal(t, "house", api.matcher.gotB.PropertyType)
	assert.Equal(t, "Ann Lee", api.matcher.gotClient.FullName)
	assert.Equal(t, "prefers quiet streets", api.matcher.gotRemarks)
}

func TestPropertyComparisonValidation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name   string
		mutate func(map[string]any)
		msg    string
	}{
		{"missing side", func(b map[string]any) { delete(b, "propertyB") }, msgComparisonMissing},
		{"zero price", func(b map[string]any) { b["propertyA"].(map[string]any)["price"] = 0 }, msgComparisonFields},
		{"empty address", func(b map[string]any) { b["propertyB"].(map[string]any)["address"] = "" }, msgComparisonFields},
		{"no client", func(b map[string]any) { delete(b, "clientInfoJson") }, msgClientInfoRequired},
		{"bad client json", func(b map[string]any) { b["clientInfoJson"] = "{" }, msgInvalidClientJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := comparisonBody()
			tt.mutate(body)
			rec := api.do(t, http.MethodPost, "/api/v1/recommendations/property-comparison", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.msg, decodeEnvelope(t, rec)["message"])
		})
	}
}

func TestPropertyComparisonMalformedModelOutput(t *testing.T) {
	api := newTestAPI(t)
	api.matcher.err = common.NewError(common.ErrMalformedInput, "model response is missing finalQuote")

	rec := api.do(t, http.MethodPost, "/api/v1/recommendations/property-comparison", comparisonBody())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "model response is missing finalQuote", body["message"])
}
