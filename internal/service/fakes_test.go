package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"club-directory-be/internal/entity"
	"club-directory-be/internal/pkg/clock"
	"club-directory-be/internal/pkg/logger"
	"club-directory-be/internal/repository/contract"
	"club-directory-be/internal/repository/memory"
	"club-directory-be/internal/repository/unitofwork"
	"club-directory-be/pkg/payment"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
)

const validSignature = "t=1,v1=valid"

type refundCall struct {
	ChargeId       string
	Amount         int64
	IdempotencyKey string
}

type fakeProvider struct {
	mu           sync.Mutex
	calls        []string
	cancelAt     time.Time
	invoice      *stripe.Invoice
	invoiceErr   error
	invoices     map[string]*stripe.Invoice
	actionErr    error
	refundErr    error
	refunds      []refundCall
	onRefund     func()
	customers    map[string]*stripe.Customer
	customersErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{customers: map[string]*stripe.Customer{}, invoices: map[string]*stripe.Invoice{}}
}

func (p *fakeProvider) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *fakeProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakeProvider) ScheduleCancelAt(ctx context.Context, id string, at time.Time) (*stripe.Subscription, error) {
	p.record("ScheduleCancelAt")
	if p.actionErr != nil {
		return nil, p.actionErr
	}
	p.cancelAt = at
	return &stripe.Subscription{ID: id, CancelAt: at.Unix()}, nil
}

func (p *fakeProvider) ScheduleCancelAtPeriodEnd(ctx context.Context, id string) (*stripe.Subscription, error) {
	p.record("ScheduleCancelAtPeriodEnd")
	if p.actionErr != nil {
		return nil, p.actionErr
	}
	return &stripe.Subscription{ID: id, CancelAtPeriodEnd: true}, nil
}

func (p *fakeProvider) CancelNow(ctx context.Context, id string) (*stripe.Subscription, error) {
	p.record("CancelNow")
	if p.actionErr != nil {
		return nil, p.actionErr
	}
	return &stripe.Subscription{ID: id, Status: stripe.SubscriptionStatusCanceled}, nil
}

func (p *fakeProvider) LatestInvoice(ctx context.Context, id string) (*stripe.Invoice, error) {
	p.record("LatestInvoice")
	if p.invoiceErr != nil {
		return nil, p.invoiceErr
	}
	if p.invoice == nil {
		return nil, payment.ErrNoInvoice
	}
	return p.invoice, nil
}

func (p *fakeProvider) GetInvoice(ctx context.Context, id string) (*stripe.Invoice, error) {
	p.record("GetInvoice")
	inv, ok := p.invoices[id]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: 404}
	}
	return inv, nil
}

func (p *fakeProvider) CreateRefund(ctx context.Context, chargeId string, amount int64, key string) (*stripe.Refund, error) {
	p.record("CreateRefund")
	if p.refundErr != nil {
		return nil, p.refundErr
	}
	p.mu.Lock()
	p.refunds = append(p.refunds, refundCall{ChargeId: chargeId, Amount: amount, IdempotencyKey: key})
	p.mu.Unlock()
	// charge.refunded can arrive before CreateRefund returns.
	if p.onRefund != nil {
		p.onRefund()
	}
	return &stripe.Refund{ID: "re_1", Amount: amount}, nil
}

func (p *fakeProvider) GetCustomer(ctx context.Context, id string) (*stripe.Customer, error) {
	p.record("GetCustomer")
	if p.customersErr != nil {
		return nil, p.customersErr
	}
	c, ok := p.customers[id]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: 404}
	}
	return c, nil
}

// ConstructEvent accepts only validSignature and parses the payload as an event.
func (p *fakeProvider) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	if signature != validSignature {
		return stripe.Event{}, payment.ErrInvalidSignature
	}
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return stripe.Event{}, err
	}
	return event, nil
}

type queuedEmail struct {
	To      string
	Subject string
	Amount  float64
}

type fakeMailQueue struct {
	mu     sync.Mutex
	delay  time.Duration
	emails []queuedEmail
}

func (q *fakeMailQueue) Emails() []queuedEmail {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queuedEmail(nil), q.emails...)
}

func (q *fakeMailQueue) EnqueueRefundEmail(ctx context.Context, to, subject string, amount float64) error {
	time.Sleep(q.delay)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.emails = append(q.emails, queuedEmail{To: to, Subject: subject, Amount: amount})
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) add(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, name)
}

func (p *fakePublisher) PublishActivated(ctx context.Context, m *entity.Membership) {
	p.add("activated")
}

func (p *fakePublisher) PublishRenewed(ctx context.Context, m *entity.Membership, invoiceId string) {
	p.add("renewed")
}

func (p *fakePublisher) PublishPastDue(ctx context.Context, m *entity.Membership, invoiceId string) {
	p.add("past_due")
}

func (p *fakePublisher) PublishCanceled(ctx context.Context, m *entity.Membership, d *entity.CancellationDecision, reason string) {
	p.add("canceled")
}

func (p *fakePublisher) PublishRefunded(ctx context.Context, m *entity.Membership, amount float64, full bool) {
	p.add("refunded")
}

// Store failure injection.

type brokenFactory struct {
	inner unitofwork.RepositoryFactory
}

func (f brokenFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return brokenUnitOfWork{f.inner.NewUnitOfWork(ctx)}
}

type brokenUnitOfWork struct {
	unitofwork.UnitOfWork
}

func (u brokenUnitOfWork) MembershipRepository() contract.MembershipRepository {
	return brokenMembershipRepository{u.UnitOfWork.MembershipRepository()}
}

type brokenMembershipRepository struct {
	contract.MembershipRepository
}

func (brokenMembershipRepository) Update(ctx context.Context, m *entity.Membership) error {
	return errors.New("connection reset")
}

type harness struct {
	store     *memory.Store
	factory   unitofwork.RepositoryFactory
	provider  *fakeProvider
	mails     *fakeMailQueue
	publisher *fakePublisher
	clock     *clock.Fixed
	log       logger.ILogger
	svc       ISubscriptionEventService
}

func newHarness(now time.Time) *harness {
	h := &harness{
		store:     memory.NewStore(),
		provider:  newFakeProvider(),
		mails:     &fakeMailQueue{},
		publisher: &fakePublisher{},
		clock:     clock.NewFixed(now),
		log:       logger.NewNopLogger(),
	}
	h.factory = memory.NewRepositoryFactory(h.store)
	h.svc = h.newEventService(h.factory, false)
	return h
}

func (h *harness) newEventService(factory unitofwork.RepositoryFactory, testMode bool) ISubscriptionEventService {
	return NewSubscriptionEventService(
		factory,
		h.provider,
		NewUserStatusService(h.log),
		h.mails,
		h.publisher,
		h.clock,
		testMode,
		h.log,
	)
}

func (h *harness) seedUser(status entity.UserMembershipStatus) uuid.UUID {
	id := uuid.New()
	h.store.SeedUser(entity.User{
		Id:               id,
		Email:            "member@example.com",
		FullName:         "Club Member",
		Role:             entity.UserRoleMember,
		MembershipStatus: status,
	})
	return id
}

func (h *harness) seedMembership(t *testing.T, m entity.Membership) *entity.Membership {
	t.Helper()
	if m.Id == uuid.Nil {
		m.Id = uuid.New()
	}
	require.NoError(t, h.factory.NewUnitOfWork(context.Background()).MembershipRepository().Create(context.Background(), &m))
	return &m
}

func (h *harness) membership(t *testing.T, id uuid.UUID) *entity.Membership {
	t.Helper()
	m, err := h.factory.NewUnitOfWork(context.Background()).MembershipRepository().FindById(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, m)
	return m
}

func (h *harness) userStatus(t *testing.T, id uuid.UUID) entity.UserMembershipStatus {
	t.Helper()
	u, ok := h.store.User(id)
	require.True(t, ok)
	return u.MembershipStatus
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
