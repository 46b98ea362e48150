package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/mailer"
	"storefront/internal/payment"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fakeDB is an in-memory stand-in for PostgreSQL shared by the mock repositories
type fakeDB struct {
	mu         sync.Mutex
	users      map[uuid.UUID]domain.User
	tokens     map[uuid.UUID]domain.AccessToken
	categories map[uuid.UUID]domain.Category
	products   map[uuid.UUID]domain.Product
	orders     map[uuid.UUID]domain.Order
	items      map[uuid.UUID][]domain.OrderItem
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		users:      make(map[uuid.UUID]domain.User),
		tokens:     make(map[uuid.UUID]domain.AccessToken),
		categories: make(map[uuid.UUID]domain.Category),
		products:   make(map[uuid.UUID]domain.Product),
		orders:     make(map[uuid.UUID]domain.Order),
		items:      make(map[uuid.UUID][]domain.OrderItem),
	}
}

func (db *fakeDB) store() repository.Store {
	return repository.Store{
		Users:        &mockUserRepository{db},
		AccessTokens: &mockAccessTokenRepository{db},
		Categories:   &mockCategoryRepository{db},
		Products:     &mockProductRepository{db},
		Orders:       &mockOrderRepository{db},
	}
}

func (db *fakeDB) storeFactory() repository.StoreFactory {
	return func(repository.Querier) repository.Store { return db.store() }
}

type fakeSnapshot struct {
	products map[uuid.UUID]domain.Product
	orders   map[uuid.UUID]domain.Order
	items    map[uuid.UUID][]domain.OrderItem
	cats     map[uuid.UUID]domain.Category
}

func (db *fakeDB) snapshot() fakeSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	snap := fakeSnapshot{
		products: make(map[uuid.UUID]domain.Product, len(db.products)),
		orders:   make(map[uuid.UUID]domain.Order, len(db.orders)),
		items:    make(map[uuid.UUID][]domain.OrderItem, len(db.items)),
		cats:     make(map[uuid.UUID]domain.Category, len(db.categories)),
	}
	for k, v := range db.products {
		snap.products[k] = v
	}
	for k, v := range db.orders {
		snap.orders[k] = v
	}
	for k, v := range db.items {
		snap.items[k] = append([]domain.OrderItem(nil), v...)
	}
	for k, v := range db.categories {
		snap.cats[k] = v
	}
	return snap
}

func (db *fakeDB) restore(snap fakeSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.products, db.orders, db.items, db.categories = snap.products, snap.orders, snap.items, snap.cats
}

func (db *fakeDB) addCategory(name string) domain.Category {
	db.mu.Lock()
	defer db.mu.Unlock()
	c := domain.Category{ID: uuid.New(), Name: name, Slug: Slugify(name), IsActive: true, CreatedAt: time.Now()}
	db.categories[c.ID] = c
	return c
}

func (db *fakeDB) addProduct(name, price string, stock int) domain.Product {
	category := db.addCategory("Category for " + name + " " + uuid.NewString())
	db.mu.Lock()
	defer db.mu.Unlock()
	p := domain.Product{
		ID:         uuid.New(),
		Name:       name,
		Slug:       Slugify(name),
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
		CategoryID: category.ID,
		IsActive:   true,
		CreatedAt:  time.Now(),
	}
	db.products[p.ID] = p
	return p
}

func (db *fakeDB) stockOf(id uuid.UUID) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.products[id].Stock
}

func (db *fakeDB) orderCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.orders)
}

// fakeTransactor restores the fake database when the unit of work fails
type fakeTransactor struct {
	db    *fakeDB
	calls int
}

func (t *fakeTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, q repository.Querier) error) error {
	t.calls++
	snap := t.db.snapshot()
	if err := fn(ctx, nil); err != nil {
		t.db.restore(snap)
		return err
	}
	return nil
}

type mockUserRepository struct{ db *fakeDB }

func (m *mockUserRepository) Create(_ context.Context, user *domain.User) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, u := range m.db.users {
		if u.Email == user.Email {
			return repository.ErrUserAlreadyExists
		}
	}
	m.db.users[user.ID] = *user
	return nil
}

func (m *mockUserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, u := range m.db.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (m *mockUserRepository) MarkEmailVerified(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok || u.EmailVerifiedAt != nil {
		return false, nil
	}
	u.EmailVerifiedAt = &at
	m.db.users[id] = u
	return true, nil
}

func (m *mockUserRepository) SetStripeCustomerID(_ context.Context, id uuid.UUID, customerID string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.StripeCustomerID = &customerID
	m.db.users[id] = u
	return nil
}

type mockAccessTokenRepository struct{ db *fakeDB }

func (m *mockAccessTokenRepository) Create(_ context.Context, token *domain.AccessToken) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.tokens[token.ID] = *token
	return nil
}

func (m *mockAccessTokenRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.AccessToken, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	token, ok := m.db.tokens[id]
	if !ok {
		return nil, repository.ErrAccessTokenNotFound
	}
	if token.Revoked {
		return nil, repository.ErrAccessTokenRevoked
	}
	return &token, nil
}

func (m *mockAccessTokenRepository) Revoke(_ context.Context, id uuid.UUID) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	token, ok := m.db.tokens[id]
	if !ok {
		return repository.ErrAccessTokenNotFound
	}
	token.Revoked = true
	m.db.tokens[id] = token
	return nil
}

type mockCategoryRepository struct{ db *fakeDB }

func (m *mockCategoryRepository) Create(_ context.Context, category *domain.Category) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, c := range m.db.categories {
		if c.Name == category.Name || c.Slug == category.Slug {
			return repository.ErrCategoryAlreadyExists
		}
	}
	m.db.categories[category.ID] = *category
	return nil
}

func (m *mockCategoryRepository) Update(_ context.Context, category *domain.Category) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.categories[category.ID]; !ok {
		return repository.ErrCategoryNotFound
	}
	m.db.categories[category.ID] = *category
	return nil
}

func (m *mockCategoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.categories[id]; !ok {
		return repository.ErrCategoryNotFound
	}
	for _, p := range m.db.products {
		if p.CategoryID == id {
			return repository.ErrCategoryInUse
		}
	}
	delete(m.db.categories, id)
	return nil
}

func (m *mockCategoryRepository) List(_ context.Context, activeOnly bool) ([]*domain.Category, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := []*domain.Category{}
	for _, c := range m.db.categories {
		if activeOnly && !c.IsActive {
			continue
		}
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockCategoryRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.Category, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return &c, nil
}

func (m *mockCategoryRepository) FindBySlug(_ context.Context, slug string) (*domain.Category, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, c := range m.db.categories {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, repository.ErrCategoryNotFound
}

type mockProductRepository struct{ db *fakeDB }

func (m *mockProductRepository) Create(_ context.Context, product *domain.Product) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, p := range m.db.products {
		if p.Slug == product.Slug {
			return repository.ErrProductSlugTaken
		}
	}
	m.db.products[product.ID] = *product
	return nil
}

func (m *mockProductRepository) Update(_ context.Context, product *domain.Product) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	m.db.products[product.ID] = *product
	return nil
}

func (m *mockProductRepository) Delete(_ context.Context, id uuid.UUID) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	for _, items := range m.db.items {
		for _, item := range items {
			if item.ProductID == id {
				return repository.ErrProductStillReferred
			}
		}
	}
	delete(m.db.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p, ok := m.db.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &p, nil
}

func (m *mockProductRepository) FindBySlug(_ context.Context, slug string) (*domain.Product, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, p := range m.db.products {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (m *mockProductRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return m.FindByID(ctx, id)
}

func (m *mockProductRepository) List(_ context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := []*domain.Product{}
	for _, p := range m.db.products {
		if filter.CategoryID != nil && p.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.Featured != nil && p.IsFeatured != *filter.Featured {
			continue
		}
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (m *mockProductRepository) CountByCategory(_ context.Context, categoryID uuid.UUID) (int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	n := 0
	for _, p := range m.db.products {
		if p.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func (m *mockProductRepository) DecrementStock(_ context.Context, id uuid.UUID, quantity int) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p, ok := m.db.products[id]
	if !ok || p.Stock < quantity {
		return repository.ErrInsufficientStock
	}
	p.Stock -= quantity
	m.db.products[id] = p
	return nil
}

func (m *mockProductRepository) IncrementStock(_ context.Context, id uuid.UUID, quantity int) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p, ok := m.db.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Stock += quantity
	m.db.products[id] = p
	return nil
}

type mockOrderRepository struct{ db *fakeDB }

func (m *mockOrderRepository) Create(_ context.Context, order *domain.Order) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	stored := *order
	stored.Items = nil
	m.db.orders[order.ID] = stored
	return nil
}

func (m *mockOrderRepository) CreateItem(_ context.Context, item *domain.OrderItem) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	stored := *item
	stored.Product = nil
	m.db.items[item.OrderID] = append(m.db.items[item.OrderID], stored)
	return nil
}

func (m *mockOrderRepository) withItems(order domain.Order) *domain.Order {
	items := []domain.OrderItem{}
	for _, item := range m.db.items[order.ID] {
		if p, ok := m.db.products[item.ProductID]; ok {
			item.Product = &p
		}
		items = append(items, item)
	}
	order.Items = items
	return &order
}

func (m *mockOrderRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	order, ok := m.db.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return m.withItems(order), nil
}

func (m *mockOrderRepository) FindByIDForUpdate(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	order, ok := m.db.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &order, nil
}

func (m *mockOrderRepository) ListByUser(_ context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := []*domain.Order{}
	for _, order := range m.db.orders {
		if order.UserID == userID {
			out = append(out, m.withItems(order))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *mockOrderRepository) ListItems(_ context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	order, ok := m.db.orders[orderID]
	if !ok {
		return []domain.OrderItem{}, nil
	}
	return m.withItems(order).Items, nil
}

func (m *mockOrderRepository) update(id uuid.UUID, fn func(o *domain.Order)) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	order, ok := m.db.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	fn(&order)
	m.db.orders[id] = order
	return nil
}

func (m *mockOrderRepository) UpdateStatus(_ context.Context, id uuid.UUID, status domain.OrderStatus) error {
	return m.update(id, func(o *domain.Order) { o.Status = status })
}

func (m *mockOrderRepository) UpdatePayment(_ context.Context, id uuid.UUID, status domain.OrderStatus, paymentStatus domain.PaymentStatus) error {
	return m.update(id, func(o *domain.Order) { o.Status, o.PaymentStatus = status, paymentStatus })
}

func (m *mockOrderRepository) UpdateNotes(_ context.Context, id uuid.UUID, notes *string) error {
	return m.update(id, func(o *domain.Order) { o.Notes = notes })
}

type publishedEvent struct {
	Topic string
	Key   string
	Data  any
}

type mockPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *mockPublisher) Publish(_ context.Context, topic, key string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Topic: topic, Key: key, Data: data})
	return p.err
}

func (p *mockPublisher) Close() error { return nil }

func (p *mockPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Topic)
	}
	return out
}

type mockMailer struct {
	sent chan mailer.Message
	err  error
}

func newMockMailer() *mockMailer {
	return &mockMailer{sent: make(chan mailer.Message, 16)}
}

func (m *mockMailer) Send(_ context.Context, msg mailer.Message) error {
	m.sent <- msg
	return m.err
}

type mockProcessor struct {
	mu        sync.Mutex
	customers int
	intents   []payment.IntentParams
	intent    *payment.Intent
	err       error
	event     *payment.WebhookEvent
	eventErr  error
}

func (p *mockProcessor) CreateCustomer(_ context.Context, _, _ string, _ map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customers++
	return "cus_" + uuid.NewString()[:8], nil
}

func (p *mockProcessor) CreateIntent(_ context.Context, params payment.IntentParams) (*payment.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intents = append(p.intents, params)
	if p.err != nil {
		return nil, p.err
	}
	if p.intent != nil {
		return p.intent, nil
	}
	status := "requires_payment_method"
	if params.Confirm {
		status = payment.StatusSucceeded
	}
	return &payment.Intent{
		ID:           "pi_test",
		ClientSecret: "pi_test_secret",
		Status:       status,
		AmountMinor:  params.AmountMinor,
		Currency:     params.Currency,
	}, nil
}

func (p *mockProcessor) ParseWebhook(_ []byte, _ string) (*payment.WebhookEvent, error) {
	return p.event, p.eventErr
}
