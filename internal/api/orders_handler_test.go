package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gostore/marketplace/internal/domain"
	"github.com/gostore/marketplace/internal/store"
)

type orderStoreMock struct {
	order     *domain.Order
	orders    []*domain.Order
	getErr    error
	listErr   error
	updateErr error

	lastStatus domain.OrderStatus
}

func (m *orderStoreMock) GetOrder(_ context.Context, _ uuid.UUID) (*domain.Order, error) {
	return m.order, m.getErr
}

func (m *orderStoreMock) ListOrdersByUser(_ context.Context, _ string) ([]*domain.Order, error) {
	return m.orders, m.listErr
}

func (m *orderStoreMock) UpdateOrderStatus(_ context.Context, _ uuid.UUID, next domain.OrderStatus) error {
	m.lastStatus = next
	if m.updateErr != nil {
		return m.updateErr
	}
	m.order.Status = next
	return nil
}

func ownOrder() *domain.Order {
	return &domain.Order{
		ID:     uuid.New(),
		UserID: "user123",
		Status: domain.OrderStatusPending,
	}
}

func TestListOrders_Success(t *testing.T) {
	mock := &orderStoreMock{orders: []*domain.Order{ownOrder(), ownOrder()}}
	router := testRouter(nil, nil, mock)

	recorder := doRequest(t, router, "GET", "/api/v1/orders", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	var orders []*domain.Order
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&orders))
	assert.Len(t, orders, 2)
}

func TestListOrders_NoOrders_EmptyArray(t *testing.T) {
	router := testRouter(nil, nil, &orderStoreMock{})

	recorder := doRequest(t, router, "GET", "/api/v1/orders", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, "[]", recorder.Body.String())
}

func TestGetOrder_Success(t *testing.T) {
	order := ownOrder()
	router := testRouter(nil, nil, &orderStoreMock{order: order})

	recorder := doRequest(t, router, "GET", "/api/v1/orders/"+order.ID.String(), nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	var got domain.Order
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&got))
	assert.Equal(t, order.ID, got.ID)
}

func TestGetOrder_SomeoneElsesOrder_LooksAbsent(t *testing.T) {
	other := ownOrder()
	other.UserID = "someone-else"
	router := testRouter(nil, nil, &orderStoreMock{order: other})

	recorder := doRequest(t, router, "GET", "/api/v1/orders/"+other.ID.String(), nil)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestGetOrder_NotFound(t *testing.T) {
	router := testRouter(nil, nil, &orderStoreMock{getErr: store.ErrOrderNotFound})

	recorder := doRequest(t, router, "GET", "/api/v1/orders/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestGetOrder_BadID(t *testing.T) {
	router := testRouter(nil, nil, &orderStoreMock{})

	recorder := doRequest(t, router, "GET", "/api/v1/orders/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestUpdateStatus_Success(t *testing.T) {
	order := ownOrder()
	mock := &orderStoreMock{order: order}
	router := testRouter(nil, nil, mock)

	recorder := doRequest(t, router, "PATCH", "/api/v1/orders/"+order.ID.String()+"/status",
		map[string]string{"status": "processing"})

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, domain.OrderStatusProcessing, mock.lastStatus)
	var got domain.Order
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&got))
	assert.Equal(t, domain.OrderStatusProcessing, got.Status)
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	router := testRouter(nil, nil, &orderStoreMock{order: ownOrder()})

	recorder := doRequest(t, router, "PATCH", "/api/v1/orders/"+uuid.NewString()+"/status",
		map[string]string{"status": "refunded"})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestUpdateStatus_IllegalTransition(t *testing.T) {
	router := testRouter(nil, nil,
		&orderStoreMock{order: ownOrder(), updateErr: store.ErrIllegalTransition})

	recorder := doRequest(t, router, "PATCH", "/api/v1/orders/"+uuid.NewString()+"/status",
		map[string]string{"status": "delivered"})

	assert.Equal(t, http.StatusConflict, recorder.Code)
	var response ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "illegal_status_transition", response.Code)
}
