package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"tempinbox/backend/internal/config"
	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/events"
	"tempinbox/backend/internal/storage/memory"
)

var baseTime = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: baseTime}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recorder 记录发布的事件
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(evt events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) Types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]events.Type, 0, len(r.events))
	for _, evt := range r.events {
		types = append(types, evt.Type)
	}
	return types
}

type fixture struct {
	store    *memory.Store
	clock    *fakeClock
	events   *recorder
	plans    *PlanService
	domains  *DomainService
	emails   *EmailService
	messages *MessageService
	quota    *QuotaTracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:  memory.NewStore(),
		clock:  newFakeClock(),
		events: &recorder{},
	}
	f.plans = NewPlanService(f.store, domain.DefaultPlans(), nil)
	f.plans.now = f.clock.Now
	f.domains = NewDomainService(f.store, []string{"tempinbox.dev", "mailbox.test"}, nil, 0, nil)
	f.domains.now = f.clock.Now
	t.Cleanup(f.domains.Close)

	f.emails = NewEmailService(f.store, f.domains, config.MailboxConfig{GenerateAttempts: 5, GeneratedLength: 10}, nil)
	f.emails.SetClock(f.clock.Now)
	f.emails.SetPublisher(f.events)

	f.messages = NewMessageService(f.store, f.emails, f.plans, nil)
	f.messages.SetClock(f.clock.Now)
	f.messages.SetPublisher(f.events)

	f.quota = NewQuotaTracker(f.emails, nil)
	return f
}

func (f *fixture) plan(name domain.PlanName) domain.Plan {
	plan, _ := f.plans.Plan(name)
	return plan
}

func (f *fixture) create(t *testing.T, owner domain.Identity, plan domain.PlanName, localPart string) *domain.TemporaryEmail {
	t.Helper()
	email, err := f.emails.Create(context.Background(), CreateEmailInput{
		Owner:     owner,
		Plan:      f.plan(plan),
		LocalPart: localPart,
		Domain:    "tempinbox.dev",
	})
	if err != nil {
		t.Fatalf("create %q: %v", localPart, err)
	}
	return email
}
