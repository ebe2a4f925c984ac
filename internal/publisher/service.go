// Package publisher reconciles metadata records with the catalog: it creates
// or updates items, skips unchanged ones, links related items and deletes
// item trees.
package publisher

import (
	"log/slog"

	"github.com/starford/mdpub/internal/catalog"
	"github.com/starford/mdpub/internal/identifier"
	"github.com/starford/mdpub/internal/linker"
	"github.com/starford/mdpub/internal/locator"
	"github.com/starford/mdpub/internal/models"
	"github.com/starford/mdpub/internal/translator"
)

// BrowseCategoryProject is added to every project item.
const BrowseCategoryProject = "Project"

// MIME types of the attached metadata files.
const (
	MIMEMdJSON = "application/json"
	MIMEISO1   = "application/vnd.iso.19139-1+xml"
	MIMEISO2   = "application/vnd.iso.19139-2+xml"
)

// Event kinds reported to the Notifier.
const (
	EventCreated   = "item.created"
	EventUpdated   = "item.updated"
	EventUnchanged = "item.unchanged"
	EventDeleted   = "item.deleted"
)

// Config holds the catalog locations and defaults the service works with.
type Config struct {
	// CommunityID is the root of the authorized subtree.
	CommunityID string
	// OrphanProjectsID and OrphanProductsID receive items with no derivable parent.
	OrphanProjectsID string
	OrphanProductsID string
	// ForceUpdate disables the unchanged check unless a request says otherwise.
	ForceUpdate bool

	MetadataFile string
	ISO1File     string
	ISO2File     string
}

// Notifier receives item mutations.
type Notifier interface {
	ItemEvent(kind, itemID, title string)
}

// Service publishes records into a catalog.
type Service struct {
	catalog    catalog.Catalog
	translator translator.Translator
	locator    *locator.Locator
	linker     *linker.Linker
	notifier   Notifier
	logger     *slog.Logger
	cfg        Config
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithLinker shares a linker (and its link-type vocabulary) with the service.
func WithLinker(l *linker.Linker) Option {
	return func(s *Service) { s.linker = l }
}

// WithNotifier reports item mutations to n.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// New creates a Service.
func New(c catalog.Catalog, t translator.Translator, cfg Config, opts ...Option) *Service {
	s := &Service{
		catalog:    c,
		translator: t,
		logger:     slog.Default(),
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.locator = locator.New(c, s.logger)
	if s.linker == nil {
		s.linker = linker.New(c, s.locator, s.logger)
	}
	if s.cfg.OrphanProjectsID == "" {
		s.cfg.OrphanProjectsID = s.cfg.CommunityID
	}
	if s.cfg.OrphanProductsID == "" {
		s.cfg.OrphanProductsID = s.cfg.CommunityID
	}
	return s
}

// params are the per-request settings of a publish.
type params struct {
	itemID         string
	parentID       string
	community      string
	orphanProjects string
	orphanProducts string
	force          bool
}

// paramsFor resolves request overrides against the configured defaults.
// The community is the request's community, else its parent, else the
// configured root.
func (s *Service) paramsFor(req *models.PublishRequest, itemID string) params {
	p := params{
		itemID:         itemID,
		community:      s.cfg.CommunityID,
		orphanProjects: s.cfg.OrphanProjectsID,
		orphanProducts: s.cfg.OrphanProductsID,
		force:          s.cfg.ForceUpdate,
	}
	if id, ok := identifier.ValidateCatalogID(req.ParentID); ok {
		p.parentID = id
	}
	switch {
	case req.CommunityID != "":
		p.community = req.CommunityID
	case p.parentID != "":
		p.community = p.parentID
	}
	if req.ProjectsParentID != "" {
		p.orphanProjects = req.ProjectsParentID
	}
	if req.ProductsParentID != "" {
		p.orphanProducts = req.ProductsParentID
	}
	if req.ForceUpdate != nil {
		p.force = *req.ForceUpdate
	}
	return p
}

func (s *Service) notify(kind string, item *models.Item) {
	if s.notifier == nil || item == nil {
		return
	}
	s.notifier.ItemEvent(kind, item.ID, item.Title)
}
