package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/estatematch/internal/common"
	"github.com/dmitrijs2005/estatematch/internal/logging"
	"github.com/dmitrijs2005/estatematch/internal/rag"
	"github.com/dmitrijs2005/estatematch/internal/report"
	"github.com/dmitrijs2005/estatematch/internal/server/models"
	"github.com/dmitrijs2005/estatematch/internal/server/services"
	"github.com/go-chi/chi/v5"
)

const (
	msgInvalidPropertyJSON = "Invalid property JSON"
	msgInvalidClientJSON   = "Invalid clientInfoJson"
	msgComparisonMissing   = "Both propertyA and propertyB are required"
	msgComparisonFields    = "Both properties must have address, price, and property_type"
	msgClientInfoRequired  = "clientInfoJson is required"

	reportURLHeader = "X-Report-URL"
)

// Matcher runs the matching pipelines.
type Matcher interface {
	MatchDocument(ctx context.Context, pdf []byte, listing rag.Listing, n int) (string, error)
	MatchDocumentBulk(ctx context.Context, pdf []byte, listings []rag.Listing, n int) (string, error)
	MatchProperty(ctx context.Context, account *models.Account, propertyID string, n int) (any, error)
	MatchProperties(ctx context.Context, account *models.Account, ids []string, n int) (any, error)
	Recommend(ctx context.Context, account *models.Account, clientUserID string) (any, error)
	Compare(ctx context.Context, a, b rag.ComparisonProperty, client rag.ClientInfo, remarks string) (*services.ComparisonReport, error)
}

type recommendationHandler struct {
	matcher    Matcher
	creds      Credentials
	maxResults int
	log        logging.Logger
}

func (h *recommendationHandler) routes(r chi.Router) {
	r.Post("/property-comparison", h.compare)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAPIKey)
		r.Post("/with-pdf", h.withPDF)
		r.Post("/with-pdf-bulk", h.withPDFBulk)
		r.Post("/property/{id}", h.property)
		r.Post("/property-bulk", h.propertyBulk)
		r.Post("/property-recommendations", h.recommend)
	})
}

// requireAPIKey is the API key guard.
func (h *recommendationHandler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, err := h.creds.AuthorizeAPIKey(r.Context(), r.Header.Get(common.APIKeyHeaderName))
		if err != nil {
			Error(w, r, h.log, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), account)))
	})
}

// jsonValue unwraps a value that may arrive either as JSON or as a string
// holding JSON.
func jsonValue(v any, msg string) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, common.NewError(common.ErrInvalidInput, msg)
	}
	return out, nil
}

func decodePDF(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, common.NewError(common.ErrInvalidInput, rag.MsgMissingPDF)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, common.NewError(common.ErrInvalidInput, rag.MsgBadPDF)
	}
	return b, nil
}

type documentRequest struct {
	Number   any    `json:"number"`
	Proprety any    `json:"proprety"`
	Property any    `json:"property"`
	PDF      string `json:"pdfBuffer"`
}

// listing returns the uploaded listing payload, which older clients send
// under the misspelt key.
func (req *documentRequest) listing() (any, error) {
	v := req.Proprety
	if v == nil {
		v = req.Property
	}
	return jsonValue(v, msgInvalidPropertyJSON)
}

func (h *recommendationHandler) readDocumentRequest(r *http.Request) (*documentRequest, []byte, any, error) {
	var req documentRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, nil, nil, err
	}
	pdf, err := decodePDF(req.PDF)
	if err != nil {
		return nil, nil, nil, err
	}
	listing, err := req.listing()
	if err != nil {
		return nil, nil, nil, err
	}
	return &req, pdf, listing, nil
}

func (h *recommendationHandler) withPDF(w http.ResponseWriter, r *http.Request) {
	req, pdf, raw, err := h.readDocumentRequest(r)
	if err != nil {
		Error(w, r, h.log, err)
		return
	}
	listing, err := rag.DecodeListing(raw)
	if err != nil {
		Error(w, r, h.log, err)
		return
	}

	result, err := h.matcher.MatchDocument(r.Context(), pdf, listing, rag.ParseResults(req.Number, h.maxResults))
	if err != nil {
		Error(w, r, h.log, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "result": result})
}

func (h *recommendationHandler) withPDFBulk(w http.ResponseWriter, r *http.Request) {
	req, pdf, raw, err := h.readDocumentRequest(r)
	if err != nil {
		Error(w, r, h.log, err)
		return
	}
	listings, err := rag.DecodeListings(raw)
	if err != nil {
		Error(w, r, h.log, err)
		return
	}

	result, err := h.matcher.MatchDocumentBulk(r.Context(), pdf, listings, rag.ParseResults(req.Number, h.maxResults))
	if err != nil {
		Error(w, r, h.log, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "result": result})
}

type numberRequest struct {
	Number      any `json:"number"`
	PropertyIDs any `json:"propertyIds"`
}

func (h *recommendationHandler) property(w http.ResponseWriter, r *http.Request) {
	var req numberRequest
	if err := decodeBody(r, &req); err != nil {
		Error(w, r, h.log, err)
		return
	}
	account, _ := AccountFrom(r.Context())

	data, err := h.matcher.MatchProperty(r.Context(), account, chi.URLParam(r, "id"), rag.ParseResults(req.Number, h.maxResults))
	if err != nil {
		Error(w, r, h.log, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "data": data})
}

// idList accepts an array of ids. Numeric ids are rendered as text; any
// other shape yields nil.
func idList(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		switch x := item.(type) {
		case string:
			out = append(out, x)
		case float64:
			out = append(out, strconv.FormatFloat(x, 'f', -1, 64))
		}
	}
	return out
}

func (h *recommendationHandler) propertyBulk(w http.ResponseWriter, r *http.Request) {
	var req numberRequest
	if err := decodeBody(r, &req); err != nil {
		Error(w, r, h.log, err)
		return
	}
	account, _ := AccountFrom(r.Context())

	data, err := h.matcher.MatchProperties(r.Context(), account, idList(req.PropertyIDs), rag.ParseResults(req.Number, h.maxResults))
	if err != nil {
		Error(w, r, h.log, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "data": data})
}

type recommendRequest struct {
	ClientID string `json:"clientId"`
}

func (h *recommendationHandler) recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := decodeBody(r, &req); err != nil {
		Error(w, r, h.log, err)
		return
	}
	account, _ := AccountFrom(r.Context())

	data, err := h.matcher.Recommend(r.Context(), account, req.ClientID)
	if err != nil {
		Error(w, r, h.log, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "data": data})
}

type comparisonRequest struct {
	PropertyA    any    `json:"propertyA"`
	PropertyB    any    `json:"propertyB"`
	ClientInfo   any    `json:"clientInfoJson"`
	AgentRemarks string `json:"agentRemarks"`
}

// truthy follows loose JSON truthiness: empty strings, zero, false and
// null are all missing.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case float64:
		return x != 0
	case bool:
		return x
	}
	return true
}

func hasComparisonFields(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	return truthy(m["address"]) && truthy(m["price"]) && truthy(m["property_type"])
}

func (h *recommendationHandler) parseComparison(r *http.Request) (a, b rag.ComparisonProperty, client rag.ClientInfo, remarks string, err error) {
	var req comparisonRequest
	if err = decodeBody(r, &req); err != nil {
		return
	}
	if !truthy(req.PropertyA) || !truthy(req.PropertyB) {
		err = common.NewError(common.ErrInvalidInput, msgComparisonMissing)
		return
	}
	if !hasComparisonFields(req.PropertyA) || !hasComparisonFields(req.PropertyB) {
		err = common.NewError(common.ErrInvalidInput, msgComparisonFields)
		return
	}
	if !truthy(req.ClientInfo) {
		err = common.NewError(common.ErrInvalidInput, msgClientInfoRequired)
		return
	}
	info, err := jsonValue(req.ClientInfo, msgInvalidClientJSON)
	if err != nil {
		return
	}

	if a, err = rag.DecodeComparisonProperty(req.PropertyA); err != nil {
		return
	}
	if b, err = rag.DecodeComparisonProperty(req.PropertyB); err != nil {
		return
	}
	if client, err = rag.DecodeClientInfo(info); err != nil {
		return
	}
	return a, b, client, req.AgentRemarks, nil
}

func (h *recommendationHandler) compare(w http.ResponseWriter, r *http.Request) {
	a, b, client, remarks, err := h.parseComparison(r)
	if err != nil {
		Error(w, r, h.log, err)
		return
	}

	out, err := h.matcher.Compare(r.Context(), a, b, client, remarks)
	if err != nil {
		Error(w, r, h.log, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `inline; filename="`+report.FileName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(out.PDF)))
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Pragma", "no-cache")
	if out.URL != "" {
		w.Header().Set(reportURLHeader, out.URL)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.PDF)
}
