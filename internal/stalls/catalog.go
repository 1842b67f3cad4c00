package stalls

import (
	"context"

	"stallbook/internal/shared/constants"
	"stallbook/pkg/cache"

	"github.com/google/uuid"
)

// Catalog looks stalls up for the booking core.
type Catalog interface {
	FindByCode(ctx context.Context, code string) (*Stall, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Stall, error)
	List(ctx context.Context, zone string) ([]Stall, error)
	// Save writes the stall and drops cached catalog entries.
	Save(ctx context.Context, stall *Stall) error
	// Invalidate drops cached catalog entries after the stall table changes.
	Invalidate(ctx context.Context) error
}

type catalog struct {
	repo         Repository
	cacheService cache.Service
}

// NewCatalog wraps repo with a Redis read-through cache. cacheService may be nil.
func NewCatalog(repo Repository, cacheService cache.Service) Catalog {
	return &catalog{repo: repo, cacheService: cacheService}
}

func (c *catalog) FindByCode(ctx context.Context, code string) (*Stall, error) {
	if c.cacheService == nil {
		return c.repo.FindByCode(ctx, code)
	}
	var stall Stall
	err := c.cacheService.GetOrSet(ctx, constants.BuildStallByCodeKey(code), constants.TTL_STALL_DETAIL, func() (interface{}, error) {
		return c.repo.FindByCode(ctx, code)
	}, &stall)
	if err != nil {
		return nil, err
	}
	return &stall, nil
}

func (c *catalog) FindByID(ctx context.Context, id uuid.UUID) (*Stall, error) {
	if c.cacheService == nil {
		return c.repo.FindByID(ctx, id)
	}
	var stall Stall
	err := c.cacheService.GetOrSet(ctx, constants.BuildStallByIDKey(id.String()), constants.TTL_STALL_DETAIL, func() (interface{}, error) {
		return c.repo.FindByID(ctx, id)
	}, &stall)
	if err != nil {
		return nil, err
	}
	return &stall, nil
}

func (c *catalog) List(ctx context.Context, zone string) ([]Stall, error) {
	if c.cacheService == nil {
		return c.repo.List(ctx, zone)
	}
	var out []Stall
	err := c.cacheService.GetOrSet(ctx, constants.BuildStallZoneListKey(zone), constants.TTL_STALL_LIST, func() (interface{}, error) {
		return c.repo.List(ctx, zone)
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *catalog) Save(ctx context.Context, stall *Stall) error {
	if err := c.repo.Upsert(ctx, stall); err != nil {
		return err
	}
	return c.Invalidate(ctx)
}

func (c *catalog) Invalidate(ctx context.Context) error {
	if c.cacheService == nil {
		return nil
	}
	return c.cacheService.DeletePattern(ctx, constants.PATTERN_INVALIDATE_STALLS)
}
