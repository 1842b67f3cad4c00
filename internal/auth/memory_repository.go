package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps accounts in process memory when no database is configured.
type MemoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]*Account // by lowercased email
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{accounts: make(map[string]*Account)}
}

func (r *MemoryRepository) Create(ctx context.Context, account *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(account.Email)
	if _, ok := r.accounts[key]; ok {
		return ErrAccountExists
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := time.Now()
	account.CreatedAt, account.UpdatedAt = now, now

	stored := *account
	r.accounts[key] = &stored
	return nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[strings.ToLower(email)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	out := *a
	return &out, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if a.ID.String() == id {
			out := *a
			return &out, nil
		}
	}
	return nil, ErrAccountNotFound
}
