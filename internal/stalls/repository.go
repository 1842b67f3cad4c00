package stalls

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"stallbook/internal/shared/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the stall catalog's source of truth.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Stall, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Stall, error)
	// List returns stalls ordered by code; an empty zone means all zones.
	List(ctx context.Context, zone string) ([]Stall, error)
	Upsert(ctx context.Context, stall *Stall) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func classify(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(op, "stall not found")
	}
	return apperr.Unavailable(op, err)
}

func (r *repository) FindByCode(ctx context.Context, code string) (*Stall, error) {
	var stall Stall
	if err := r.db.WithContext(ctx).First(&stall, "code = ?", strings.ToUpper(code)).Error; err != nil {
		return nil, classify("stalls.find", err)
	}
	return &stall, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*Stall, error) {
	var stall Stall
	if err := r.db.WithContext(ctx).First(&stall, "id = ?", id).Error; err != nil {
		return nil, classify("stalls.find", err)
	}
	return &stall, nil
}

func (r *repository) List(ctx context.Context, zone string) ([]Stall, error) {
	var out []Stall
	query := r.db.WithContext(ctx).Model(&Stall{})
	if zone != "" {
		query = query.Where("zone = ?", zone)
	}
	if err := query.Order("code ASC").Find(&out).Error; err != nil {
		return nil, apperr.Unavailable("stalls.list", err)
	}
	return out, nil
}

func (r *repository) Upsert(ctx context.Context, stall *Stall) error {
	stall.Code = strings.ToUpper(stall.Code)
	err := r.db.WithContext(ctx).
		Where(Stall{Code: stall.Code}).
		Assign(Stall{Zone: stall.Zone, Size: stall.Size, PricePerDay: stall.PricePerDay, Status: stall.Status}).
		FirstOrCreate(stall).Error
	if err != nil {
		return apperr.Unavailable("stalls.upsert", err)
	}
	return nil
}

// MemoryRepository is an in-process catalog used by tests and the
// database-less development mode.
type MemoryRepository struct {
	mu     sync.RWMutex
	byCode map[string]Stall
}

func NewMemoryRepository(stalls ...Stall) *MemoryRepository {
	m := &MemoryRepository{byCode: make(map[string]Stall)}
	for i := range stalls {
		_ = m.Upsert(context.Background(), &stalls[i])
	}
	return m
}

func (m *MemoryRepository) FindByCode(_ context.Context, code string) (*Stall, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byCode[strings.ToUpper(code)]
	if !ok {
		return nil, apperr.NotFound("stalls.find", "stall %s not found", code)
	}
	return &s, nil
}

func (m *MemoryRepository) FindByID(_ context.Context, id uuid.UUID) (*Stall, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.byCode {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, apperr.NotFound("stalls.find", "stall %s not found", id)
}

func (m *MemoryRepository) List(_ context.Context, zone string) ([]Stall, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Stall, 0, len(m.byCode))
	for _, s := range m.byCode {
		if zone == "" || s.Zone == zone {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MemoryRepository) Upsert(_ context.Context, stall *Stall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stall.Code = strings.ToUpper(stall.Code)
	if existing, ok := m.byCode[stall.Code]; ok {
		stall.ID = existing.ID
	}
	if stall.ID == uuid.Nil {
		stall.ID = uuid.New()
	}
	if stall.Status == "" {
		stall.Status = StallActive
	}
	m.byCode[stall.Code] = *stall
	return nil
}
