package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/quickdash/order-api/internal/cart"
	domain "github.com/quickdash/order-api/internal/entity"
)

var errDBDown = errors.New("db down")

// memOrderRepo implements OrderRepo in memory with injectable failures.
type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*OrderRecord
	lines  map[string][]LineRecord

	createErr      error
	insertLinesErr error
	setRefErr      error
	confirmCalls   int
	confirmErrs    int
	cancelCalls    int
	getErr         error
	updateMiss     bool
	statsResult    *DailyStats
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{
		orders: make(map[string]*OrderRecord),
		lines:  make(map[string][]LineRecord),
	}
}

func (m *memOrderRepo) Create(_ context.Context, o *OrderRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memOrderRepo) InsertLines(_ context.Context, lines []LineRecord) error {
	if m.insertLinesErr != nil {
		return m.insertLinesErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ln := range lines {
		m.lines[ln.OrderID] = append(m.lines[ln.OrderID], ln)
	}
	return nil
}

func (m *memOrderRepo) GetByID(_ context.Context, id string) (*OrderRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memOrderRepo) GetLines(_ context.Context, orderID string) ([]LineRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lines[orderID], nil
}

func (m *memOrderRepo) SetPaymentReference(_ context.Context, id, reference string) error {
	if m.setRefErr != nil {
		return m.setRefErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.orders[id]; ok {
		rec.PaymentReference = reference
	}
	return nil
}

func (m *memOrderRepo) UpdateStatusIf(_ context.Context, id, fromStatus, toStatus string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateMiss {
		return false, nil
	}
	rec, ok := m.orders[id]
	if !ok || rec.Status != fromStatus {
		return false, nil
	}
	rec.Status = toStatus
	return true, nil
}

func (m *memOrderRepo) ConfirmPaymentIf(_ context.Context, id, reference string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmCalls++
	if m.confirmErrs > 0 {
		m.confirmErrs--
		return false, errDBDown
	}
	rec, ok := m.orders[id]
	if !ok || rec.PaymentStatus != string(domain.PaymentUnconfirmed) {
		return false, nil
	}
	rec.PaymentStatus = string(domain.PaymentConfirmed)
	rec.PaymentReference = reference
	rec.Status = string(domain.StatusNew)
	return true, nil
}

func (m *memOrderRepo) Cancel(_ context.Context, id, cancelledBy, reasonID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelCalls++
	rec, ok := m.orders[id]
	if !ok || domain.Status(rec.Status).Terminal() {
		return false, nil
	}
	rec.Status = string(domain.StatusCancelled)
	rec.CancelledBy = cancelledBy
	rec.CancelReasonID = reasonID
	return true, nil
}

func (m *memOrderRepo) ListActiveByStore(_ context.Context, storeID string) ([]*OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*OrderRecord
	for _, rec := range m.orders {
		if rec.StoreID == storeID && domain.Status(rec.Status).Active() {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memOrderRepo) DailyStats(_ context.Context, _, _ string) (*DailyStats, error) {
	return m.statsResult, nil
}

// memIdem implements IdempotencyStore; TryLock succeeds once per key.
type memIdem struct {
	mu      sync.Mutex
	locked  map[string]bool
	values  map[string]string
	lockErr error
}

func newMemIdem() *memIdem {
	return &memIdem{locked: make(map[string]bool), values: make(map[string]string)}
}

func (m *memIdem) TryLock(_ context.Context, scope, key string) (bool, error) {
	if m.lockErr != nil {
		return false, m.lockErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := scope + ":" + key
	if m.locked[k] {
		return false, nil
	}
	m.locked[k] = true
	return true, nil
}

func (m *memIdem) Unlock(_ context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locked, scope+":"+key)
	return nil
}

func (m *memIdem) Remember(_ context.Context, scope, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[scope+":"+key] = value
	return nil
}

func (m *memIdem) Recall(_ context.Context, scope, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[scope+":"+key]
	return v, ok, nil
}

// mockGateway scripts Initialize/Verify responses and counts refunds.
type mockGateway struct {
	mu          sync.Mutex
	initResult  *ChargeResult
	initErr     error
	verifySeq   []VerifyResult
	verifyErr   error
	verifyCalls int
	refunds     []RefundMsg
	refundErr   error
}

func (g *mockGateway) Initialize(_ context.Context, _ ChargeRequest) (*ChargeResult, error) {
	return g.initResult, g.initErr
}

func (g *mockGateway) Verify(_ context.Context, _ string) (*VerifyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	i := g.verifyCalls
	g.verifyCalls++
	if i >= len(g.verifySeq) {
		i = len(g.verifySeq) - 1
	}
	res := g.verifySeq[i]
	return &res, nil
}

func (g *mockGateway) Refund(_ context.Context, reference, cancelledBy string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, RefundMsg{Reference: reference, CancelledBy: cancelledBy})
	return g.refundErr
}

// mockCarts implements cart.Store and counts deletions.
type mockCarts struct {
	mu      sync.Mutex
	saved   map[string]*cart.Cart
	deletes []string
}

func newMockCarts() *mockCarts {
	return &mockCarts{saved: make(map[string]*cart.Cart)}
}

func (m *mockCarts) Load(_ context.Context, customerID string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.saved[customerID]; ok {
		return c, nil
	}
	return cart.New(), nil
}

func (m *mockCarts) Update(_ context.Context, customerID string, fn func(*cart.Cart) error) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.saved[customerID]
	if !ok {
		c = cart.New()
	}
	if err := fn(c); err != nil {
		return c, err
	}
	m.saved[customerID] = c
	return c, nil
}

func (m *mockCarts) Save(_ context.Context, customerID string, c *cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[customerID] = c
	return nil
}

func (m *mockCarts) Delete(_ context.Context, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, customerID)
	delete(m.saved, customerID)
	return nil
}

// mockCache implements OrderCache.
type mockCache struct {
	mu     sync.Mutex
	status map[string]string
	setErr error
}

func newMockCache() *mockCache { return &mockCache{status: make(map[string]string)} }

func (m *mockCache) SetStatus(_ context.Context, orderID, status string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[orderID] = status
	return nil
}

func (m *mockCache) GetStatus(_ context.Context, orderID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status[orderID], nil
}

// mockStores implements StoreDirectory over a fixed map.
type mockStores struct {
	stores map[string]*domain.StoreInfo
	err    error
}

func (m *mockStores) Get(_ context.Context, storeID string) (*domain.StoreInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.stores[storeID], nil
}

// mockMembers implements MembershipRepo with scripted answers.
type mockMembers struct {
	exists      bool
	existsErr   error
	registryHit bool
	registryErr error
	createErr   error
	created     []*domain.MembershipRecord
}

func (m *mockMembers) Exists(_ context.Context, _, _ string) (bool, error) {
	return m.exists, m.existsErr
}

func (m *mockMembers) RegistryContains(_ context.Context, _, _ string) (bool, error) {
	return m.registryHit, m.registryErr
}

func (m *mockMembers) Create(_ context.Context, rec *domain.MembershipRecord) error {
	m.created = append(m.created, rec)
	return m.createErr
}

// mockOutbox implements OutboxRepo.
type mockOutbox struct {
	payloads [][]byte
	err      error
}

func (m *mockOutbox) InsertOrderCreated(_ context.Context, payload []byte) error {
	if m.err != nil {
		return m.err
	}
	m.payloads = append(m.payloads, payload)
	return nil
}

// mockRefundQueue implements RefundQueue.
type mockRefundQueue struct {
	mu        sync.Mutex
	published []RefundMsg
	err       error
}

func (m *mockRefundQueue) PublishRefund(_ context.Context, msg RefundMsg) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, msg)
	return nil
}
