package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/estatematch/internal/common"
	"github.com/dmitrijs2005/estatematch/internal/dbx"
	"github.com/dmitrijs2005/estatematch/internal/interpret"
	"github.com/dmitrijs2005/estatematch/internal/llm"
	"github.com/dmitrijs2005/estatematch/internal/logging"
	"github.com/dmitrijs2005/estatematch/internal/rag"
	"github.com/dmitrijs2005/estatematch/internal/report"
	"github.com/dmitrijs2005/estatematch/internal/server/models"
	"github.com/dmitrijs2005/estatematch/internal/server/repositories/catalog"
	"github.com/dmitrijs2005/estatematch/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	MsgPropertyIDsRequired = "Property IDs array is required"
	MsgClientIDRequired    = "clientId is required"
	MsgPropertyNotFound    = "Property not found"
	MsgNoContacts          = "No contacts found"
	MsgClientNotFound      = "User contact information not found"
	MsgInvalidUserID       = "Invalid user ID format"
	MsgTenantDB            = "Failed to fetch data from client DB"
)

// TenantResolver reveals an account's external database, if any.
type TenantResolver interface {
	TenantDSN(account *models.Account) (string, bool, error)
}

// Archiver keeps a copy of a rendered report and returns a link to it.
type Archiver interface {
	Store(ctx context.Context, pdf []byte) (string, error)
}

// ComparisonReport is a rendered comparison and, when archived, its link.
type ComparisonReport struct {
	PDF []byte
	URL string
}

// MatchingService runs the retrieve, prompt, invoke and interpret pipeline.
// Each call builds its own context document.
type MatchingService struct {
	db          *sqlx.DB
	repomanager repomanager.RepositoryManager
	tenants     TenantResolver
	model       llm.Client
	interp      *interpret.Interpreter
	renderer    *report.Renderer
	archive     Archiver
	maxResults  int
	log         logging.Logger
}

type MatchingDeps struct {
	DB          *sqlx.DB
	Repomanager repomanager.RepositoryManager
	Tenants     TenantResolver
	Model       llm.Client
	Interpreter *interpret.Interpreter
	Renderer    *report.Renderer
	Archive     Archiver
	MaxResults  int
	Log         logging.Logger
}

func NewMatchingService(d MatchingDeps) *MatchingService {
	return &MatchingService{
		db:          d.DB,
		repomanager: d.Repomanager,
		tenants:     d.Tenants,
		model:       d.Model,
		interp:      d.Interpreter,
		renderer:    d.Renderer,
		archive:     d.Archive,
		maxResults:  d.MaxResults,
		log:         d.Log,
	}
}

// withCatalog runs fn against the account's tenant database when one is
// configured, otherwise against the service database scoped to the agent.
// Tenant connections are closed before withCatalog returns.
func (s *MatchingService) withCatalog(ctx context.Context, account *models.Account, fn func(ctx context.Context, repo catalog.Repository) error) error {
	uri, ok, err := s.tenants.TenantDSN(account)
	if err != nil {
		return err
	}
	if !ok {
		return fn(ctx, s.repomanager.AgentCatalog(s.db, account.ID))
	}

	var fnErr error
	err = dbx.WithDB(ctx, uri, func(ctx context.Context, db *sqlx.DB) error {
		fnErr = fn(ctx, s.repomanager.TenantCatalog(db))
		return fnErr
	})
	if err != nil && fnErr == nil {
		s.log.Error(ctx, "tenant database unavailable", "account", account.ID, "error", err)
		return common.NewError(fmt.Errorf("%w: %v", common.ErrUpstream, err), MsgTenantDB)
	}
	return err
}

func (s *MatchingService) ask(ctx context.Context, kind rag.Kind, doc rag.Document, n int) (string, error) {
	prompt, err := rag.Build(kind, doc, rag.ClampResults(n, s.maxResults))
	if err != nil {
		return "", err
	}
	s.log.Info(ctx, "invoking model", "kind", kind.String(), "blocks", doc.Len(), "prompt_len", len(prompt))
	return s.model.Invoke(ctx, prompt)
}

// MatchDocument ranks the clients described in pdf against one listing and
// returns the model text unparsed.
func (s *MatchingService) MatchDocument(ctx context.Context, pdf []byte, listing rag.Listing, n int) (string, error) {
	chunks, err := rag.ExtractChunks(ctx, pdf)
	if err != nil {
		return "", err
	}
	return s.ask(ctx, rag.KindSingleMatch, rag.ListingDocument(listing, chunks), n)
}

// MatchDocumentBulk is MatchDocument for several listings.
func (s *MatchingService) MatchDocumentBulk(ctx context.Context, pdf []byte, listings []rag.Listing, n int) (string, error) {
	if len(listings) == 0 {
		return "", common.NewError(common.ErrInvalidInput, "property must be a non-empty array for bulk processing")
	}
	chunks, err := rag.ExtractChunks(ctx, pdf)
	if err != nil {
		return "", err
	}
	return s.ask(ctx, rag.KindBulkPropertyMatch, rag.ListingsDocument(listings, chunks), n)
}

func loadContacts(ctx context.Context, repo catalog.Repository) ([]models.Contact, error) {
	contacts, err := repo.ListContacts(ctx)
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, common.NewError(common.ErrEmptyDataset, MsgNoContacts)
	}
	return contacts, nil
}

// MatchProperty ranks the stored contacts against one stored property.
func (s *MatchingService) MatchProperty(ctx context.Context, account *models.Account, propertyID string, n int) (any, error) {
	var doc rag.Document
	err := s.withCatalog(ctx, account, func(ctx context.Context, repo catalog.Repository) error {
		p, err := repo.GetProperty(ctx, propertyID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.NewError(common.ErrorNotFound, MsgPropertyNotFound)
			}
			return err
		}
		contacts, err := loadContacts(ctx, repo)
		if err != nil {
			return err
		}
		doc = rag.PropertyMatchDocument(*p, contacts)
		return nil
	})
	if err != nil {
		return nil, err
	}

	raw, err := s.ask(ctx, rag.KindBulkMatch, doc, n)
	if err != nil {
		return nil, err
	}
	return s.interp.Parse(ctx, raw, false)
}

// MatchProperties ranks the stored contacts against each of the given
// properties. Unknown ids are skipped; order follows ids.
func (s *MatchingService) MatchProperties(ctx context.Context, account *models.Account, ids []string, n int) (any, error) {
	if len(ids) == 0 {
		return nil, common.NewError(common.ErrValidation, MsgPropertyIDsRequired)
	}

	var doc rag.Document
	err := s.withCatalog(ctx, account, func(ctx context.Context, repo catalog.Repository) error {
		props, err := repo.GetProperties(ctx, ids)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.NewError(common.ErrorNotFound, MsgPropertyNotFound)
			}
			return err
		}
		contacts, err := loadContacts(ctx, repo)
		if err != nil {
			return err
		}
		doc = rag.PropertiesMatchDocument(props, contacts)
		return nil
	})
	if err != nil {
		return nil, err
	}

	raw, err := s.ask(ctx, rag.KindBulkPropertyMatch, doc, n)
	if err != nil {
		return nil, err
	}
	return s.interp.Parse(ctx, raw, false)
}

// Recommend suggests available properties to the contact linked to
// clientUserID.
func (s *MatchingService) Recommend(ctx context.Context, account *models.Account, clientUserID string) (any, error) {
	if clientUserID == "" {
		return nil, common.NewError(common.ErrValidation, MsgClientIDRequired)
	}
	if _, err := uuid.Parse(clientUserID); err != nil {
		return nil, common.NewError(common.ErrInvalidArgument, fmt.Sprintf("%s: %s", MsgInvalidUserID, clientUserID))
	}

	var doc rag.Document
	err := s.withCatalog(ctx, account, func(ctx context.Context, repo catalog.Repository) error {
		contact, err := repo.GetContactByUser(ctx, clientUserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.NewError(common.ErrorNotFound, MsgClientNotFound)
			}
			return err
		}
		available, err := repo.ListAvailableProperties(ctx)
		if err != nil {
			return err
		}
		doc = rag.RecommendationDocument(*contact, available)
		return nil
	})
	if err != nil {
		return nil, err
	}

	raw, err := s.ask(ctx, rag.KindRecommendation, doc, rag.DefaultResults)
	if err != nil {
		return nil, err
	}
	return s.interp.Parse(ctx, raw, false)
}

// Compare asks the model to compare two properties and renders the answer
// as a PDF. Archiving is best effort.
func (s *MatchingService) Compare(ctx context.Context, a, b rag.ComparisonProperty, client rag.ClientInfo, remarks string) (*ComparisonReport, error) {
	raw, err := s.ask(ctx, rag.KindComparison, rag.ComparisonDocument(a, b, client, remarks), rag.DefaultResults)
	if err != nil {
		return nil, err
	}

	pdf, err := s.renderer.Render(ctx, raw)
	if err != nil {
		s.log.Error(ctx, "comparison report not rendered", "error", err, "response", common.TruncateForLog(raw, 200))
		return nil, err
	}

	out := &ComparisonReport{PDF: pdf}
	if s.archive != nil {
		url, err := s.archive.Store(ctx, pdf)
		if err != nil {
			s.log.Warn(ctx, "comparison report not archived", "error", err)
		} else {
			out.URL = url
		}
	}
	return out, nil
}
