package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errNotStubbed = errors.New("not stubbed")

type stubUserService struct {
	register  func(ctx context.Context, input service.RegisterInput) (*service.AuthResult, error)
	login     func(ctx context.Context, email, password string) (*service.AuthResult, error)
	logout    func(ctx context.Context, tokenID uuid.UUID) error
	getUser   func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	verify    func(ctx context.Context, id, hash, expires, signature string) (bool, error)
	resend    func(ctx context.Context, id uuid.UUID) error
	loggedOut []uuid.UUID
}

func (s *stubUserService) Register(ctx context.Context, input service.RegisterInput) (*service.AuthResult, error) {
	if s.register == nil {
		return nil, errNotStubbed
	}
	return s.register(ctx, input)
}

func (s *stubUserService) Login(ctx context.Context, email, password string) (*service.AuthResult, error) {
	if s.login == nil {
		return nil, errNotStubbed
	}
	return s.login(ctx, email, password)
}

func (s *stubUserService) Logout(ctx context.Context, tokenID uuid.UUID) error {
	s.loggedOut = append(s.loggedOut, tokenID)
	if s.logout == nil {
		return nil
	}
	return s.logout(ctx, tokenID)
}

func (s *stubUserService) Authenticate(context.Context, string) (*service.Claims, error) {
	return nil, errNotStubbed
}

func (s *stubUserService) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if s.getUser == nil {
		return nil, errNotStubbed
	}
	return s.getUser(ctx, id)
}

func (s *stubUserService) VerifyEmail(ctx context.Context, id, hash, expires, signature string) (bool, error) {
	if s.verify == nil {
		return false, errNotStubbed
	}
	return s.verify(ctx, id, hash, expires, signature)
}

func (s *stubUserService) ResendVerification(ctx context.Context, id uuid.UUID) error {
	if s.resend == nil {
		return errNotStubbed
	}
	return s.resend(ctx, id)
}

type stubOrderService struct {
	place  func(ctx context.Context, userID uuid.UUID, input service.PlaceOrderInput) (*domain.Order, error)
	list   func(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
	get    func(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error)
	notes  func(ctx context.Context, userID, orderID uuid.UUID, notes *string) (*domain.Order, error)
	cancel func(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error)
}

func (s *stubOrderService) PlaceOrder(ctx context.Context, userID uuid.UUID, input service.PlaceOrderInput) (*domain.Order, error) {
	if s.place == nil {
		return nil, errNotStubbed
	}
	return s.place(ctx, userID, input)
}

func (s *stubOrderService) ListOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	if s.list == nil {
		return nil, errNotStubbed
	}
	return s.list(ctx, userID)
}

func (s *stubOrderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	if s.get == nil {
		return nil, errNotStubbed
	}
	return s.get(ctx, userID, orderID)
}

func (s *stubOrderService) UpdateNotes(ctx context.Context, userID, orderID uuid.UUID, notes *string) (*domain.Order, error) {
	if s.notes == nil {
		return nil, errNotStubbed
	}
	return s.notes(ctx, userID, orderID, notes)
}

func (s *stubOrderService) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	if s.cancel == nil {
		return nil, errNotStubbed
	}
	return s.cancel(ctx, userID, orderID)
}

func (s *stubOrderService) RecordPayment(context.Context, uuid.UUID, string, bool) error {
	return errNotStubbed
}

type stubCatalogService struct {
	service.CatalogService
	listProducts   func(ctx context.Context, filter repository.ProductFilter) (*service.ProductPage, error)
	getProduct     func(ctx context.Context, idOrSlug string) (*domain.Product, error)
	createProduct  func(ctx context.Context, input service.ProductInput) (*domain.Product, error)
	deleteCategory func(ctx context.Context, id uuid.UUID) error
	createCategory func(ctx context.Context, input service.CategoryInput) (*domain.Category, error)
}

func (s *stubCatalogService) ListProducts(ctx context.Context, filter repository.ProductFilter) (*service.ProductPage, error) {
	return s.listProducts(ctx, filter)
}

func (s *stubCatalogService) GetProduct(ctx context.Context, idOrSlug string) (*domain.Product, error) {
	return s.getProduct(ctx, idOrSlug)
}

func (s *stubCatalogService) CreateProduct(ctx context.Context, input service.ProductInput) (*domain.Product, error) {
	return s.createProduct(ctx, input)
}

func (s *stubCatalogService) CreateCategory(ctx context.Context, input service.CategoryInput) (*domain.Category, error) {
	return s.createCategory(ctx, input)
}

func (s *stubCatalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.deleteCategory(ctx, id)
}

type stubPaymentService struct {
	createIntent func(ctx context.Context, userID uuid.UUID, input service.PaymentInput) (*service.PaymentResult, error)
	process      func(ctx context.Context, userID uuid.UUID, input service.PaymentInput) (*service.PaymentResult, error)
	webhook      func(ctx context.Context, payload []byte, signature string) error
}

func (s *stubPaymentService) CreateIntent(ctx context.Context, userID uuid.UUID, input service.PaymentInput) (*service.PaymentResult, error) {
	return s.createIntent(ctx, userID, input)
}

func (s *stubPaymentService) ProcessPayment(ctx context.Context, userID uuid.UUID, input service.PaymentInput) (*service.PaymentResult, error) {
	return s.process(ctx, userID, input)
}

func (s *stubPaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	return s.webhook(ctx, payload, signature)
}

// testTokens maps bearer tokens to principals for the stub authenticator
type testTokens map[string]middleware.Principal

func (tokens testTokens) AuthenticateToken(_ context.Context, token string) (middleware.Principal, error) {
	p, ok := tokens[token]
	if !ok {
		return middleware.Principal{}, errors.New("unknown token")
	}
	return p, nil
}

var (
	customer = middleware.Principal{UserID: uuid.New(), Role: domain.RoleUser, TokenID: uuid.New()}
	admin    = middleware.Principal{UserID: uuid.New(), Role: domain.RoleAdmin, TokenID: uuid.New()}
	tokens   = testTokens{"customer-token": customer, "admin-token": admin}
)

type testServices struct {
	users    *stubUserService
	orders   *stubOrderService
	catalog  *stubCatalogService
	payments *stubPaymentService
}

func newTestRouter(s testServices) http.Handler {
	logger := zap.NewNop()
	if s.users == nil {
		s.users = &stubUserService{}
	}
	if s.orders == nil {
		s.orders = &stubOrderService{}
	}
	if s.catalog == nil {
		s.catalog = &stubCatalogService{}
	}
	if s.payments == nil {
		s.payments = &stubPaymentService{}
	}

	auth := middleware.AuthMiddleware(tokens, logger)
	passthrough := func(next http.Handler) http.Handler { return next }

	r := chi.NewRouter()
	r.Use(middleware.ErrorHandlingMiddleware(logger))
	r.Route("/api", func(r chi.Router) {
		NewUserHandler(s.users, "http://frontend.test", logger).RegisterRoutes(r, auth, passthrough)
		NewCatalogHandler(s.catalog, logger).RegisterRoutes(r, auth, middleware.RequireAdmin(logger))
		NewOrderHandler(s.orders, logger).RegisterRoutes(r, auth)
		NewPaymentHandler(s.payments, logger).RegisterRoutes(r, auth)
	})
	return r
}

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors"`
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func doWebhook(t *testing.T, h http.Handler, payload, signature string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", bytes.NewReader([]byte(payload)))
	req.Header.Set("Stripe-Signature", signature)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}
