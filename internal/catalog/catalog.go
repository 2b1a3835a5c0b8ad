// Package catalog builds the autocomplete option lists for the location,
// service and insurance search inputs and ranks them with the fuzzy scorer.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"dentaldir/internal/logging"
	"dentaldir/internal/search"
	"dentaldir/internal/services"
	"dentaldir/internal/store"
	"dentaldir/internal/textutil"
)

// Kind selects an option list.
type Kind string

const (
	KindLocation  Kind = "location"
	KindService   Kind = "service"
	KindInsurance Kind = "insurance"
)

// ParseKind normalizes a kind name. "treatment" is accepted for services.
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "location", "locations":
		return KindLocation, nil
	case "service", "services", "treatment", "treatments":
		return KindService, nil
	case "insurance":
		return KindInsurance, nil
	default:
		return "", services.Wrap(services.ErrValidation, "catalog", "parse kind",
			fmt.Sprintf("unknown search kind %q (use location, service or insurance)", value), nil)
	}
}

// PageLister is the slice of the page store the catalog reads.
type PageLister interface {
	ListPages(ctx context.Context) ([]*store.Page, error)
}

// Catalog derives options from page slugs and configured insurers.
type Catalog struct {
	pages     PageLister
	insurance []string
	policy    search.Policy
	logger    *slog.Logger
}

// New constructs a Catalog.
func New(pages PageLister, insurance []string, policy search.Policy, logger *slog.Logger) *Catalog {
	return &Catalog{
		pages:     pages,
		insurance: append([]string(nil), insurance...),
		policy:    policy,
		logger:    logging.NewComponentLogger(logger, "catalog"),
	}
}

// Locations returns one option per distinct state/city pair, labelled
// "City, State", in slug order.
func (c *Catalog) Locations(ctx context.Context) ([]search.Option, error) {
	slugs, err := c.slugs(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var options []search.Option
	for _, slug := range slugs {
		key := slug.State + "/" + slug.City
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		options = append(options, search.Option{
			Value:     key,
			Label:     slug.LocationLabel(),
			Slug:      slug.City,
			StateSlug: slug.State,
		})
	}
	return options, nil
}

// Services returns one option per distinct service segment, sorted by label.
func (c *Catalog) Services(ctx context.Context) ([]search.Option, error) {
	slugs, err := c.slugs(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var options []search.Option
	for _, slug := range slugs {
		if slug.Service == "" {
			continue
		}
		if _, ok := seen[slug.Service]; ok {
			continue
		}
		seen[slug.Service] = struct{}{}
		options = append(options, search.Option{
			Value: slug.Service,
			Label: textutil.TitleFromSlug(slug.Service),
			Slug:  slug.Service,
		})
	}
	slices.SortStableFunc(options, func(a, b search.Option) int {
		return strings.Compare(a.Label, b.Label)
	})
	return options, nil
}

// Insurance returns the configured providers in configuration order.
func (c *Catalog) Insurance() []search.Option {
	options := make([]search.Option, 0, len(c.insurance))
	for _, name := range c.insurance {
		options = append(options, search.Option{
			Value: textutil.Slugify(name),
			Label: name,
			Slug:  textutil.Slugify(name),
		})
	}
	return options
}

// Options returns the unranked list for kind.
func (c *Catalog) Options(ctx context.Context, kind Kind) ([]search.Option, error) {
	switch kind {
	case KindLocation:
		return c.Locations(ctx)
	case KindService:
		return c.Services(ctx)
	case KindInsurance:
		return c.Insurance(), nil
	default:
		return nil, services.Wrap(services.ErrValidation, "catalog", "options",
			fmt.Sprintf("unknown search kind %q", kind), nil)
	}
}

// Search ranks the options of kind against query.
func (c *Catalog) Search(ctx context.Context, kind Kind, query string) ([]search.ScoredOption, error) {
	options, err := c.Options(ctx, kind)
	if err != nil {
		return nil, err
	}
	ranked := search.Rank(query, options, c.policy)
	c.logger.Debug("catalog search",
		logging.String("kind", string(kind)),
		logging.String("query", query),
		logging.Int("candidates", len(options)),
		logging.Int("results", len(ranked)),
	)
	return ranked, nil
}

func (c *Catalog) slugs(ctx context.Context) ([]textutil.Slug, error) {
	if c.pages == nil {
		return nil, nil
	}
	pages, err := c.pages.ListPages(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "list pages", "Failed to read pages", err)
	}
	slugs := make([]textutil.Slug, 0, len(pages))
	for _, page := range pages {
		slug, err := textutil.ParseSlug(page.Slug)
		if err != nil {
			c.logger.Debug("skipping page with unparseable slug",
				logging.String(logging.FieldPageID, page.ID),
				logging.String("slug", page.Slug),
			)
			continue
		}
		slugs = append(slugs, slug)
	}
	return slugs, nil
}
