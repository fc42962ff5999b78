package usecase

import (
	"context"
	"errors"
	"sync"
)

// In-memory fakes for the engine's ports. They enforce the same
// idempotency semantics the MySQL adapters do, so the use-case tests
// exercise convergence under duplicate delivery for real.

type fakeOrderRepo struct {
	mu   sync.Mutex
	byID map[string]*OrderRecord
}

func newFakeOrderRepo(orders ...*OrderRecord) *fakeOrderRepo {
	r := &fakeOrderRepo{byID: map[string]*OrderRecord{}}
	for _, o := range orders {
		cp := *o
		r.byID[o.ID] = &cp
	}
	return r
}

func (r *fakeOrderRepo) Create(_ context.Context, o *OrderRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.byID[o.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id string) (*OrderRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.byID[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeOrderRepo) GetByProviderRef(_ context.Context, provider, ref string) (*OrderRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.byID {
		if o.Provider == provider && o.ProviderRef == ref {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeOrderRepo) SetProviderRef(_ context.Context, id, provider, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.byID[id]; ok && o.ProviderRef == "" {
		o.Provider = provider
		o.ProviderRef = ref
	}
	return nil
}

func (r *fakeOrderRepo) UpdateStatusIf(_ context.Context, id, from, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.byID[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (r *fakeOrderRepo) status(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.byID[id]; ok {
		return o.Status
	}
	return ""
}

type fakePaymentRepo struct {
	mu        sync.Mutex
	rows      map[string]*PaymentRecord // keyed provider|ref
	insertErr error
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{rows: map[string]*PaymentRecord{}}
}

func (r *fakePaymentRepo) InsertIfAbsent(_ context.Context, p *PaymentRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return false, r.insertErr
	}
	key := p.Provider + "|" + p.ProviderRef
	if _, ok := r.rows[key]; ok {
		return false, nil
	}
	cp := *p
	r.rows[key] = &cp
	return true, nil
}

func (r *fakePaymentRepo) GetByProviderRef(_ context.Context, provider, ref string) (*PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.rows[provider+"|"+ref]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *fakePaymentRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type fakeEffectRepo struct {
	mu      sync.Mutex
	applied map[string]bool
	err     error
}

func newFakeEffectRepo() *fakeEffectRepo {
	return &fakeEffectRepo{applied: map[string]bool{}}
}

func (r *fakeEffectRepo) MarkApplied(_ context.Context, orderID, effect string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	key := orderID + "|" + effect
	if r.applied[key] {
		return false, nil
	}
	r.applied[key] = true
	return true, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (a *fakeAudit) Record(_ context.Context, e AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *fakeAudit) byAction(action string) []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []AuditEntry
	for _, e := range a.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type fakeCache struct {
	mu       sync.Mutex
	statuses map[string]string
}

func newFakeCache() *fakeCache { return &fakeCache{statuses: map[string]string{}} }

func (c *fakeCache) SetStatus(_ context.Context, orderID, status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[orderID] = status
	return nil
}

func (c *fakeCache) GetStatus(_ context.Context, orderID string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.statuses[orderID]
	return s, ok, nil
}

type nopSealer struct{}

func (nopSealer) Seal(p []byte) ([]byte, error) { return append([]byte(nil), p...), nil }
func (nopSealer) Open(p []byte) ([]byte, error) { return append([]byte(nil), p...), nil }

type grant struct {
	subjectType, subjectID, orderID string
	quantity                        int64
}

type fakeBalance struct {
	mu     sync.Mutex
	grants []grant
	err    error
	panics bool
}

func (b *fakeBalance) GrantCredits(_ context.Context, subjectType, subjectID, orderID string, quantity int64) error {
	if b.panics {
		panic("balance collaborator exploded")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.grants = append(b.grants, grant{subjectType, subjectID, orderID, quantity})
	return nil
}

func (b *fakeBalance) total() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var sum int64
	for _, g := range b.grants {
		sum += g.quantity
	}
	return sum
}

type fakeRequests struct {
	mu         sync.Mutex
	approved   []string
	approveErr error
	prices     map[string]struct {
		amount   int64
		currency string
	}
}

func newFakeRequests() *fakeRequests {
	return &fakeRequests{prices: map[string]struct {
		amount   int64
		currency string
	}{}}
}

func (r *fakeRequests) LockedPrice(_ context.Context, requestID string) (int64, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prices[requestID]
	if !ok {
		return 0, "", errors.New("request not found")
	}
	return p.amount, p.currency, nil
}

func (r *fakeRequests) Approve(_ context.Context, requestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.approveErr != nil {
		return r.approveErr
	}
	r.approved = append(r.approved, requestID)
	return nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []HandlerNoticeMsg
	retries []EffectRetryMsg
	err     error
}

func (n *fakeNotifier) PublishHandlerNotice(_ context.Context, msg HandlerNoticeMsg) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.notices = append(n.notices, msg)
	return nil
}

func (n *fakeNotifier) PublishEffectRetry(_ context.Context, msg EffectRetryMsg) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.retries = append(n.retries, msg)
	return nil
}

type fakeIdem struct {
	mu    sync.Mutex
	locks map[string]bool
	mem   map[string]string
}

func newFakeIdem() *fakeIdem {
	return &fakeIdem{locks: map[string]bool{}, mem: map[string]string{}}
}

func (s *fakeIdem) TryLock(_ context.Context, scope, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scope + "|" + key
	if s.locks[k] {
		return false, nil
	}
	s.locks[k] = true
	return true, nil
}

func (s *fakeIdem) Remember(_ context.Context, scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mem[scope+"|"+key] = value
	return nil
}

func (s *fakeIdem) Recall(_ context.Context, scope, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.mem[scope+"|"+key]
	return v, ok, nil
}

type fakeRates struct {
	mu    sync.Mutex
	quote RateQuote
	ok    bool
	err   error
}

func (r *fakeRates) Rate(_ context.Context, _ string) (RateQuote, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quote, r.ok, r.err
}

func (r *fakeRates) set(q RateQuote, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quote, r.ok = q, ok
}
