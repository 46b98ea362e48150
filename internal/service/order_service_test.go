package service

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/events"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestOrderService(db *fakeDB) (*orderService, *fakeTransactor, *mockPublisher) {
	tx := &fakeTransactor{db: db}
	publisher := &mockPublisher{}
	svc := NewOrderService(db.store(), tx, db.storeFactory(), publisher, zap.NewNop())
	return svc.(*orderService), tx, publisher
}

func checkoutInput(items ...domain.LineItem) PlaceOrderInput {
	return PlaceOrderInput{
		Shipping: domain.ShippingAddress{
			Address: "1 Main St",
			City:    "Springfield",
			State:   "IL",
			Country: "US",
			ZipCode: "62701",
			Phone:   "555-0100",
		},
		PaymentMethod: domain.PaymentMethodCreditCard,
		Items:         items,
	}
}

func TestPlaceOrder_TakesStockAndPrices(t *testing.T) {
	db := newFakeDB()
	svc, _, publisher := newTestOrderService(db)
	ctx := context.Background()
	userID := uuid.New()

	product := db.addProduct("Widget", "10.00", 5)

	order, err := svc.PlaceOrder(ctx, userID, checkoutInput(domain.LineItem{ProductID: product.ID, Quantity: 2}))
	require.NoError(t, err)

	assert.Equal(t, "20.00", order.TotalAmount.StringFixed(2))
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "10.00", order.Items[0].Price.StringFixed(2))
	assert.Equal(t, "20.00", order.Items[0].Subtotal.StringFixed(2))
	assert.Equal(t, 3, db.stockOf(product.ID))

	assert.Equal(t, []string{events.TopicOrderCreated}, publisher.topics())
}

func TestPlaceOrder_MergesDuplicateLines(t *testing.T) {
	db := newFakeDB()
	svc, _, _ := newTestOrderService(db)
	ctx := context.Background()

	product := db.addProduct("Gadget", "2.50", 10)

	order, err := svc.PlaceOrder(ctx, uuid.New(), checkoutInput(
		domain.LineItem{ProductID: product.ID, Quantity: 1},
		domain.LineItem{ProductID: product.ID, Quantity: 3},
	))
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	assert.Equal(t, 4, order.Items[0].Quantity)
	assert.Equal(t, "10.00", order.TotalAmount.StringFixed(2))
	assert.Equal(t, 6, db.stockOf(product.ID))
}

func TestPlaceOrder_OutOfStockChangesNothing(t *testing.T) {
	db := newFakeDB()
	svc, _, publisher := newTestOrderService(db)
	ctx := context.Background()

	plenty := db.addProduct("Plenty", "1.00", 100)
	scarce := db.addProduct("Scarce", "1.00", 1)

	_, err := svc.PlaceOrder(ctx, uuid.New(), checkoutInput(
		domain.LineItem{ProductID: plenty.ID, Quantity: 5},
		domain.LineItem{ProductID: scarce.ID, Quantity: 2},
	))
	require.ErrorIs(t, err, ErrOutOfStock)

	var stockErr *OutOfStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "Product 'Scarce' is out of stock. Available quantity: 1", stockErr.Error())

	assert.Equal(t, 100, db.stockOf(plenty.ID))
	assert.Equal(t, 1, db.stockOf(scarce.ID))
	assert.Zero(t, db.orderCount())
	assert.Empty(t, publisher.topics())
}

func TestPlaceOrder_ValidationErrors(t *testing.T) {
	db := newFakeDB()
	svc, _, _ := newTestOrderService(db)
	ctx := context.Background()

	product := db.addProduct("Thing", "1.00", 10)

	t.Run("unknown product", func(t *testing.T) {
		_, err := svc.PlaceOrder(ctx, uuid.New(), checkoutInput(
			domain.LineItem{ProductID: product.ID, Quantity: 1},
			domain.LineItem{ProductID: uuid.New(), Quantity: 1},
		))
		var fields FieldErrors
		require.True(t, errors.As(err, &fields))
		assert.Equal(t, []string{"The selected product is invalid."}, fields["items.1.product_id"])
	})

	t.Run("empty cart", func(t *testing.T) {
		_, err := svc.PlaceOrder(ctx, uuid.New(), checkoutInput())
		var fields FieldErrors
		require.True(t, errors.As(err, &fields))
		assert.Contains(t, fields, "items")
	})

	t.Run("zero quantity", func(t *testing.T) {
		_, err := svc.PlaceOrder(ctx, uuid.New(), checkoutInput(domain.LineItem{ProductID: product.ID, Quantity: 0}))
		var fields FieldErrors
		require.True(t, errors.As(err, &fields))
		assert.Contains(t, fields, "items.0.quantity")
	})

	t.Run("bad payment method", func(t *testing.T) {
		input := checkoutInput(domain.LineItem{ProductID: product.ID, Quantity: 1})
		input.PaymentMethod = "bitcoin"
		_, err := svc.PlaceOrder(ctx, uuid.New(), input)
		var fields FieldErrors
		require.True(t, errors.As(err, &fields))
		assert.Contains(t, fields, "payment_method")
	})

	assert.Equal(t, 10, db.stockOf(product.ID))
	assert.Zero(t, db.orderCount())
}

func TestProperty_OrderTotalIsSumOfSubtotals(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("total equals the sum of item subtotals and stock drops by the quantity", prop.ForAll(
		func(cents []int, quantities []int) bool {
			db := newFakeDB()
			svc, _, _ := newTestOrderService(db)

			n := len(cents)
			if len(quantities) < n {
				n = len(quantities)
			}
			if n == 0 {
				return true
			}

			var lines []domain.LineItem
			expected := decimal.Zero
			stock := map[uuid.UUID]int{}
			for i := 0; i < n; i++ {
				price := decimal.New(int64(cents[i]), -2)
				p := db.addProduct("Item", price.StringFixed(2), 50)
				stock[p.ID] = 50
				lines = append(lines, domain.LineItem{ProductID: p.ID, Quantity: quantities[i]})
				expected = expected.Add(price.Mul(decimal.NewFromInt(int64(quantities[i]))))
			}

			order, err := svc.PlaceOrder(context.Background(), uuid.New(), checkoutInput(lines...))
			if err != nil {
				t.Logf("FAIL: order rejected: %v", err)
				return false
			}

			if !order.TotalAmount.Equal(order.ItemsTotal()) || !order.TotalAmount.Equal(expected) {
				return false
			}
			for _, item := range order.Items {
				if db.stockOf(item.ProductID) != stock[item.ProductID]-item.Quantity {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(5, gen.IntRange(1, 99999)),
		gen.SliceOfN(5, gen.IntRange(1, 10)),
	))

	properties.Property("an order over the stock never changes stock or orders", prop.ForAll(
		func(stock, extra int) bool {
			db := newFakeDB()
			svc, _, _ := newTestOrderService(db)
			p := db.addProduct("Limited", "3.00", stock)

			_, err := svc.PlaceOrder(context.Background(), uuid.New(),
				checkoutInput(domain.LineItem{ProductID: p.ID, Quantity: stock + extra}))

			return errors.Is(err, ErrOutOfStock) && db.stockOf(p.ID) == stock && db.orderCount() == 0
		},
		gen.IntRange(0, 20),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestGetOrder_Ownership(t *testing.T) {
	db := newFakeDB()
	svc, _, _ := newTestOrderService(db)
	ctx := context.Background()
	owner := uuid.New()

	p := db.addProduct("Mug", "8.00", 3)
	order, err := svc.PlaceOrder(ctx, owner, checkoutInput(domain.LineItem{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)

	got, err := svc.GetOrder(ctx, owner, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	require.NotNil(t, got.Items[0].Product)
	assert.Equal(t, "Mug", got.Items[0].Product.Name)

	_, err = svc.GetOrder(ctx, uuid.New(), order.ID)
	assert.ErrorIs(t, err, ErrOrderForbidden)

	_, err = svc.GetOrder(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestListOrders_OnlyOwn(t *testing.T) {
	db := newFakeDB()
	svc, _, _ := newTestOrderService(db)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	p := db.addProduct("Pen", "1.00", 10)
	for i := 0; i < 2; i++ {
		_, err := svc.PlaceOrder(ctx, alice, checkoutInput(domain.LineItem{ProductID: p.ID, Quantity: 1}))
		require.NoError(t, err)
	}
	_, err := svc.PlaceOrder(ctx, bob, checkoutInput(domain.LineItem{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)

	orders, err := svc.ListOrders(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	for _, o := range orders {
		assert.Equal(t, alice, o.UserID)
	}

	orders, err = svc.ListOrders(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestUpdateNotes(t *testing.T) {
	db := newFakeDB()
	svc, _, _ := newTestOrderService(db)
	ctx := context.Background()
	owner := uuid.New()

	p := db.addProduct("Book", "12.00", 2)
	order, err := svc.PlaceOrder(ctx, owner, checkoutInput(domain.LineItem{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)

	notes := "leave at the door"
	updated, err := svc.UpdateNotes(ctx, owner, order.ID, &notes)
	require.NoError(t, err)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, notes, *updated.Notes)
	assert.True(t, updated.TotalAmount.Equal(order.TotalAmount))

	_, err = svc.UpdateNotes(ctx, uuid.New(), order.ID, &notes)
	assert.ErrorIs(t, err, ErrOrderForbidden)
}

func TestCancelOrder(t *testing.T) {
	db := newFakeDB()
	svc, _, publisher := newTestOrderService(db)
	ctx := context.Background()
	owner := uuid.New()

	a := db.addProduct("Alpha", "5.00", 10)
	b := db.addProduct("Beta", "7.00", 4)

	order, err := svc.PlaceOrder(ctx, owner, checkoutInput(
		domain.LineItem{ProductID: a.ID, Quantity: 3},
		domain.LineItem{ProductID: b.ID, Quantity: 4},
	))
	require.NoError(t, err)
	require.Equal(t, 7, db.stockOf(a.ID))
	require.Equal(t, 0, db.stockOf(b.ID))

	_, err = svc.CancelOrder(ctx, uuid.New(), order.ID)
	assert.ErrorIs(t, err, ErrOrderForbidden)

	canceled, err := svc.CancelOrder(ctx, owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCanceled, canceled.Status)
	assert.Equal(t, 10, db.stockOf(a.ID))
	assert.Equal(t, 4, db.stockOf(b.ID))

	_, err = svc.CancelOrder(ctx, owner, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotPending)
	assert.Equal(t, 10, db.stockOf(a.ID))

	_, err = svc.CancelOrder(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)

	assert.Equal(t, []string{events.TopicOrderCreated, events.TopicOrderCanceled}, publisher.topics())
}

func TestRecordPayment(t *testing.T) {
	db := newFakeDB()
	svc, _, publisher := newTestOrderService(db)
	ctx := context.Background()
	owner := uuid.New()

	p := db.addProduct("Lamp", "30.00", 5)

	t.Run("failure then success", func(t *testing.T) {
		order, err := svc.PlaceOrder(ctx, owner, checkoutInput(domain.LineItem{ProductID: p.ID, Quantity: 1}))
		require.NoError(t, err)

		require.NoError(t, svc.RecordPayment(ctx, order.ID, "pi_1", false))
		got, err := svc.GetOrder(ctx, owner, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusFailed, got.PaymentStatus)
		assert.Equal(t, domain.OrderStatusPending, got.Status)

		require.NoError(t, svc.RecordPayment(ctx, order.ID, "pi_1", true))
		got, err = svc.GetOrder(ctx, owner, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)
		assert.Equal(t, domain.OrderStatusProcessing, got.Status)
	})

	t.Run("late failure keeps paid", func(t *testing.T) {
		order, err := svc.PlaceOrder(ctx, owner, checkoutInput(domain.LineItem{ProductID: p.ID, Quantity: 1}))
		require.NoError(t, err)

		require.NoError(t, svc.RecordPayment(ctx, order.ID, "pi_2", true))
		before := len(publisher.topics())
		require.NoError(t, svc.RecordPayment(ctx, order.ID, "pi_2", false))
		require.NoError(t, svc.RecordPayment(ctx, order.ID, "pi_2", true))

		got, err := svc.GetOrder(ctx, owner, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)
		assert.Len(t, publisher.topics(), before)
	})

	t.Run("unknown order", func(t *testing.T) {
		assert.ErrorIs(t, svc.RecordPayment(ctx, uuid.New(), "pi_3", true), ErrOrderNotFound)
	})
}

func TestPublishFailureDoesNotFailOrder(t *testing.T) {
	db := newFakeDB()
	svc, _, publisher := newTestOrderService(db)
	publisher.err = errors.New("broker down")

	p := db.addProduct("Cable", "4.00", 2)
	order, err := svc.PlaceOrder(context.Background(), uuid.New(), checkoutInput(domain.LineItem{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)
	assert.NotNil(t, order)
	assert.Equal(t, 1, db.stockOf(p.ID))
}
