// Package testutil provides in-memory implementations of the repository ports.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kevin07696/smilepay-service/internal/domain"
	"github.com/kevin07696/smilepay-service/internal/domain/ports"
)

// MemoryTransactionRepository is a concurrency-safe in-memory TransactionRepository
type MemoryTransactionRepository struct {
	mu   sync.Mutex
	byID map[string]*domain.Transaction
}

// NewMemoryTransactionRepository creates an empty repository
func NewMemoryTransactionRepository() *MemoryTransactionRepository {
	return &MemoryTransactionRepository{byID: make(map[string]*domain.Transaction)}
}

func (r *MemoryTransactionRepository) Create(ctx context.Context, txn *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	for _, existing := range r.byID {
		if existing.Reference == txn.Reference && existing.ProviderCode == txn.ProviderCode {
			return domain.ErrTxnAlreadyExists
		}
	}
	now := time.Now()
	txn.CreatedAt, txn.UpdatedAt = now, now
	r.byID[txn.ID] = cloneTransaction(txn)
	return nil
}

// Insert stores txn without uniqueness checks, for integrity-violation scenarios
func (r *MemoryTransactionRepository) Insert(txn *domain.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	r.byID[txn.ID] = cloneTransaction(txn)
}

func (r *MemoryTransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	if txn := r.Get(id); txn != nil {
		return txn, nil
	}
	return nil, domain.ErrTxnNotFound
}

func (r *MemoryTransactionRepository) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, txn := range r.byID {
		if txn.Reference == reference {
			return cloneTransaction(txn), nil
		}
	}
	return nil, domain.ErrTxnNotFound
}

func (r *MemoryTransactionRepository) FindByReference(ctx context.Context, providerCode, reference string) ([]*domain.Transaction, error) {
	return r.find(func(txn *domain.Transaction) bool {
		return txn.ProviderCode == providerCode && txn.Reference == reference
	}), nil
}

func (r *MemoryTransactionRepository) FindByProviderReference(ctx context.Context, providerCode, providerRef string) ([]*domain.Transaction, error) {
	return r.find(func(txn *domain.Transaction) bool {
		return txn.ProviderCode == providerCode && providerRef != "" && txn.ProviderReference() == providerRef
	}), nil
}

func (r *MemoryTransactionRepository) find(match func(*domain.Transaction) bool) []*domain.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Transaction
	for _, txn := range r.byID {
		if match(txn) {
			out = append(out, cloneTransaction(txn))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *MemoryTransactionRepository) SaveInstruction(ctx context.Context, id string, data *domain.GatewayData) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	txn, ok := r.byID[id]
	if !ok {
		return false, domain.ErrTxnNotFound
	}
	if txn.State != domain.StateDraft {
		return false, nil
	}
	gw := *data
	txn.Gateway = &gw
	txn.State = domain.StateAwaitingPayment
	txn.UpdatedAt = time.Now()
	return true, nil
}

func (r *MemoryTransactionRepository) CompareAndSetState(ctx context.Context, id string, from, to domain.TransactionState) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	txn, ok := r.byID[id]
	if !ok {
		return false, domain.ErrTxnNotFound
	}
	if txn.State != from {
		return false, nil
	}
	txn.State = to
	txn.UpdatedAt = time.Now()
	return true, nil
}

// Get returns a copy of the stored transaction, or nil
func (r *MemoryTransactionRepository) Get(id string) *domain.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	if txn, ok := r.byID[id]; ok {
		return cloneTransaction(txn)
	}
	return nil
}

func cloneTransaction(txn *domain.Transaction) *domain.Transaction {
	c := *txn
	if txn.Gateway != nil {
		gw := *txn.Gateway
		c.Gateway = &gw
	}
	return &c
}

// MemoryProviderRepository is an in-memory ProviderRepository. It consults the
// transaction repository to enforce the variant lock.
type MemoryProviderRepository struct {
	mu           sync.Mutex
	byID         map[string]*domain.Provider
	transactions *MemoryTransactionRepository
}

// NewMemoryProviderRepository creates an empty repository
func NewMemoryProviderRepository(transactions *MemoryTransactionRepository) *MemoryProviderRepository {
	return &MemoryProviderRepository{
		byID:         make(map[string]*domain.Provider),
		transactions: transactions,
	}
}

func (r *MemoryProviderRepository) Create(ctx context.Context, provider *domain.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if provider.ID == "" {
		provider.ID = uuid.NewString()
	}
	c := *provider
	r.byID[provider.ID] = &c
	return nil
}

func (r *MemoryProviderRepository) Get(ctx context.Context, id string) (*domain.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	c := *p
	return &c, nil
}

func (r *MemoryProviderRepository) UpdateMethodVariant(ctx context.Context, id string, variant domain.MethodVariant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return domain.ErrProviderNotFound
	}
	if r.transactions != nil {
		used := r.transactions.find(func(txn *domain.Transaction) bool { return txn.ProviderID == id })
		if len(used) > 0 && p.MethodVariant != variant {
			return domain.ErrProviderVariantLocked
		}
	}
	p.MethodVariant = variant
	return nil
}

// MemoryNotificationLog records notification log entries in memory
type MemoryNotificationLog struct {
	mu      sync.Mutex
	entries []*domain.NotificationLogEntry
}

// NewMemoryNotificationLog creates an empty log
func NewMemoryNotificationLog() *MemoryNotificationLog {
	return &MemoryNotificationLog{}
}

func (l *MemoryNotificationLog) Record(ctx context.Context, entry *domain.NotificationLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	c := *entry
	l.entries = append(l.entries, &c)
	return nil
}

func (l *MemoryNotificationLog) ListByReference(ctx context.Context, reference string, limit int32) ([]*domain.NotificationLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*domain.NotificationLogEntry
	for i := len(l.entries) - 1; i >= 0 && (limit <= 0 || int32(len(out)) < limit); i-- {
		if l.entries[i].Reference == reference {
			c := *l.entries[i]
			out = append(out, &c)
		}
	}
	return out, nil
}

// Entries returns every recorded entry in insertion order
func (l *MemoryNotificationLog) Entries() []*domain.NotificationLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*domain.NotificationLogEntry(nil), l.entries...)
}

var (
	_ ports.TransactionRepository     = (*MemoryTransactionRepository)(nil)
	_ ports.ProviderRepository        = (*MemoryProviderRepository)(nil)
	_ ports.NotificationLogRepository = (*MemoryNotificationLog)(nil)
)
