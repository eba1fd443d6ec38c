package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"club-directory-be/internal/entity"
	"club-directory-be/internal/repository/contract"
	"club-directory-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

type storeData struct {
	users         map[uuid.UUID]entity.User
	memberships   map[uuid.UUID]entity.Membership
	payments      map[uuid.UUID]entity.Payment
	webhookEvents map[string]entity.WebhookEvent
}

func newStoreData() storeData {
	return storeData{
		users:         make(map[uuid.UUID]entity.User),
		memberships:   make(map[uuid.UUID]entity.Membership),
		payments:      make(map[uuid.UUID]entity.Payment),
		webhookEvents: make(map[string]entity.WebhookEvent),
	}
}

func (d storeData) clone() storeData {
	c := newStoreData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.memberships {
		c.memberships[k] = v
	}
	for k, v := range d.payments {
		c.payments[k] = v
	}
	for k, v := range d.webhookEvents {
		c.webhookEvents[k] = v
	}
	return c
}

// Store is an in-process billing store used by tests and by local runs
// without a database.
type Store struct {
	mu   sync.RWMutex
	data storeData
}

func NewStore() *Store {
	return &Store{data: newStoreData()}
}

// SeedUser inserts or replaces a user record.
func (s *Store) SeedUser(u entity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.users[u.Id] = u
}

// User returns a copy of the stored user.
func (s *Store) User(id uuid.UUID) (entity.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.data.users[id]
	return u, ok
}

// Payments returns every payment row, oldest first.
func (s *Store) Payments() []entity.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Payment, 0, len(s.data.payments))
	for _, p := range s.data.payments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Factory implements unitofwork.RepositoryFactory over a Store.
type Factory struct {
	store *Store
}

func NewRepositoryFactory(store *Store) unitofwork.RepositoryFactory {
	return &Factory{store: store}
}

func (f *Factory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &unitOfWork{store: f.store}
}

type unitOfWork struct {
	store    *Store
	snapshot *storeData
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.snapshot != nil {
		return fmt.Errorf("transaction already started")
	}
	u.store.mu.RLock()
	snap := u.store.data.clone()
	u.store.mu.RUnlock()
	u.snapshot = &snap
	return nil
}

func (u *unitOfWork) Commit() error {
	if u.snapshot == nil {
		return fmt.Errorf("no transaction to commit")
	}
	u.snapshot = nil
	return nil
}

func (u *unitOfWork) Rollback() error {
	if u.snapshot == nil {
		return fmt.Errorf("no transaction to rollback")
	}
	u.store.mu.Lock()
	u.store.data = *u.snapshot
	u.store.mu.Unlock()
	u.snapshot = nil
	return nil
}

func (u *unitOfWork) UserRepository() contract.UserRepository {
	return &userRepository{store: u.store}
}

func (u *unitOfWork) MembershipRepository() contract.MembershipRepository {
	return &membershipRepository{store: u.store}
}

func (u *unitOfWork) PaymentRepository() contract.PaymentRepository {
	return &paymentRepository{store: u.store}
}

func (u *unitOfWork) WebhookEventRepository() contract.WebhookEventRepository {
	return &webhookEventRepository{store: u.store}
}

type userRepository struct {
	store *Store
}

func (r *userRepository) FindById(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	u, ok := r.store.data.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *userRepository) UpdateMembershipStatus(ctx context.Context, id uuid.UUID, status entity.UserMembershipStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.data.users[id]
	if !ok {
		return fmt.Errorf("user %s not found", id)
	}
	u.MembershipStatus = status
	u.UpdatedAt = time.Now()
	r.store.data.users[id] = u
	return nil
}

type membershipRepository struct {
	store *Store
}

func (r *membershipRepository) Create(ctx context.Context, membership *entity.Membership) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if membership.Id == uuid.Nil {
		membership.Id = uuid.New()
	}
	now := time.Now()
	membership.CreatedAt = now
	membership.UpdatedAt = now
	r.store.data.memberships[membership.Id] = *membership
	return nil
}

func (r *membershipRepository) Update(ctx context.Context, membership *entity.Membership) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.data.memberships[membership.Id]; !ok {
		return fmt.Errorf("membership %s not found", membership.Id)
	}
	membership.UpdatedAt = time.Now()
	r.store.data.memberships[membership.Id] = *membership
	return nil
}

func (r *membershipRepository) FindById(ctx context.Context, id uuid.UUID) (*entity.Membership, error) {
	return r.find(func(m entity.Membership) bool { return m.Id == id }), nil
}

func (r *membershipRepository) FindByUserId(ctx context.Context, userId uuid.UUID) (*entity.Membership, error) {
	return r.find(func(m entity.Membership) bool { return m.UserId == userId }), nil
}

func (r *membershipRepository) FindBySubscriptionId(ctx context.Context, subscriptionId string) (*entity.Membership, error) {
	if subscriptionId == "" {
		return nil, nil
	}
	return r.find(func(m entity.Membership) bool { return m.StripeSubscriptionId == subscriptionId }), nil
}

func (r *membershipRepository) FindByChargeId(ctx context.Context, chargeId string) (*entity.Membership, error) {
	if chargeId == "" {
		return nil, nil
	}
	return r.find(func(m entity.Membership) bool {
		return m.StripeChargeId != nil && *m.StripeChargeId == chargeId
	}), nil
}

// find returns the most recently updated match, mirroring the SQL ordering.
func (r *membershipRepository) find(match func(entity.Membership) bool) *entity.Membership {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var found *entity.Membership
	for _, m := range r.store.data.memberships {
		if !match(m) {
			continue
		}
		if found == nil || m.UpdatedAt.After(found.UpdatedAt) {
			c := m
			found = &c
		}
	}
	return found
}

type paymentRepository struct {
	store *Store
}

func (r *paymentRepository) Append(ctx context.Context, payment *entity.Payment) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, p := range r.store.data.payments {
		if p.StripeInvoiceId == payment.StripeInvoiceId && p.Status == payment.Status {
			return false, nil
		}
	}
	if payment.Id == uuid.Nil {
		payment.Id = uuid.New()
	}
	payment.CreatedAt = time.Now()
	r.store.data.payments[payment.Id] = *payment
	return true, nil
}

func (r *paymentRepository) FindAllByMembershipId(ctx context.Context, membershipId uuid.UUID, limit, offset int) ([]*entity.Payment, error) {
	r.store.mu.RLock()
	var rows []*entity.Payment
	for _, p := range r.store.data.payments {
		if p.MembershipId == membershipId {
			c := p
			rows = append(rows, &c)
		}
	}
	r.store.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].PaymentDate.After(rows[j].PaymentDate) })
	if offset >= len(rows) {
		return []*entity.Payment{}, nil
	}
	end := len(rows)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return rows[offset:end], nil
}

type webhookEventRepository struct {
	store *Store
}

func webhookKey(provider, eventId string) string {
	return provider + ":" + eventId
}

func (r *webhookEventRepository) FindByProviderEventId(ctx context.Context, provider, providerEventId string) (*entity.WebhookEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	e, ok := r.store.data.webhookEvents[webhookKey(provider, providerEventId)]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r *webhookEventRepository) Save(ctx context.Context, event *entity.WebhookEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := webhookKey(event.Provider, event.ProviderEventId)
	now := time.Now()
	if existing, ok := r.store.data.webhookEvents[key]; ok {
		event.Id = existing.Id
		event.CreatedAt = existing.CreatedAt
	} else {
		if event.Id == uuid.Nil {
			event.Id = uuid.New()
		}
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	r.store.data.webhookEvents[key] = *event
	return nil
}
