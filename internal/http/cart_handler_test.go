package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kimspro130/promode/internal/cart/domain"
)

// --- Mock ---

type cartServiceMock struct {
	cart    *domain.Cart
	err     error
	added   *domain.CartItem
	cleared bool

	removedProduct string
	removedSize    string
}

func (m *cartServiceMock) GetCart(_ context.Context, ownerKey string) (*domain.Cart, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.cart != nil {
		return m.cart, nil
	}
	return &domain.Cart{OwnerKey: ownerKey}, nil
}

func (m *cartServiceMock) AddItem(_ context.Context, ownerKey string, item domain.CartItem) (*domain.Cart, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.added = &item
	cart := &domain.Cart{OwnerKey: ownerKey}
	cart.AddItem(item)
	return cart, nil
}

func (m *cartServiceMock) UpdateQuantity(_ context.Context, ownerKey, productID, size string, quantity int) (*domain.Cart, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Cart{OwnerKey: ownerKey}, nil
}

func (m *cartServiceMock) RemoveItem(_ context.Context, ownerKey, productID, size string) (*domain.Cart, error) {
	m.removedProduct, m.removedSize = productID, size
	return &domain.Cart{OwnerKey: ownerKey}, m.err
}

func (m *cartServiceMock) RemoveProduct(_ context.Context, ownerKey, productID string) (*domain.Cart, error) {
	m.removedProduct, m.removedSize = productID, ""
	return &domain.Cart{OwnerKey: ownerKey}, m.err
}

func (m *cartServiceMock) Clear(_ context.Context, _ string) error {
	m.cleared = true
	return m.err
}

func withGuestToken(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), "cart_token", "guest-token-1")
	return r.WithContext(ctx)
}

// --- tests ---

func TestGetCart_UserRoutesToUserService(t *testing.T) {
	userCarts := &cartServiceMock{cart: &domain.Cart{
		OwnerKey: "user-1",
		Items:    []domain.CartItem{{ProductID: "7", Name: "Vintage Jacket", UnitPrice: 95000, Size: "M", Quantity: 2}},
	}}
	guestCarts := &cartServiceMock{}
	handler := NewCartHandler(userCarts, guestCarts, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withUser(httptest.NewRequest("GET", "/api/v1/cart", nil))

	handler.GetCart(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, recorder.Code)
	}

	var response CartResponseDTO
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Subtotal != 190000 {
		t.Errorf("expected subtotal 190000, got %f", response.Subtotal)
	}
	if response.TotalItems != 2 {
		t.Errorf("expected total_items 2, got %d", response.TotalItems)
	}
}

func TestGetCart_GuestRoutesToGuestService(t *testing.T) {
	userCarts := &cartServiceMock{}
	guestCarts := &cartServiceMock{cart: &domain.Cart{
		OwnerKey: "guest-token-1",
		Items:    []domain.CartItem{{ProductID: "3", Name: "Denim Shirt", UnitPrice: 40000, Size: "L", Quantity: 1}},
	}}
	handler := NewCartHandler(userCarts, guestCarts, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withGuestToken(httptest.NewRequest("GET", "/api/v1/cart", nil))

	handler.GetCart(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `"owner_key":"guest-token-1"`) {
		t.Errorf("expected guest cart, got %s", recorder.Body.String())
	}
}

func TestGetCart_NoIdentity(t *testing.T) {
	handler := NewCartHandler(&cartServiceMock{}, &cartServiceMock{}, 5*time.Second)

	recorder := httptest.NewRecorder()
	handler.GetCart(recorder, httptest.NewRequest("GET", "/api/v1/cart", nil))

	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("expected %d, got %d", http.StatusUnauthorized, recorder.Code)
	}
}

func TestAddItem_Success(t *testing.T) {
	userCarts := &cartServiceMock{}
	handler := NewCartHandler(userCarts, &cartServiceMock{}, 5*time.Second)

	body := `{"product_id":"7","name":"Vintage Jacket","unit_price":95000,"size":"M","quantity":2,"image_url":"https://cdn.example.com/7.jpg"}`
	recorder := httptest.NewRecorder()
	request := withUser(httptest.NewRequest("POST", "/api/v1/cart/items", strings.NewReader(body)))

	handler.AddItem(recorder, request)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected %d, got %d: %s", http.StatusCreated, recorder.Code, recorder.Body.String())
	}
	if userCarts.added == nil {
		t.Fatal("expected AddItem to reach the service")
	}
	if userCarts.added.ProductID != "7" || userCarts.added.Size != "M" || userCarts.added.Quantity != 2 {
		t.Errorf("unexpected item forwarded: %+v", userCarts.added)
	}
}

func TestAddItem_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing product_id", `{"name":"x","unit_price":100,"size":"M","quantity":1}`},
		{"missing name", `{"product_id":"7","unit_price":100,"size":"M","quantity":1}`},
		{"zero price", `{"product_id":"7","name":"x","unit_price":0,"size":"M","quantity":1}`},
		{"missing size", `{"product_id":"7","name":"x","unit_price":100,"quantity":1}`},
		{"zero quantity", `{"product_id":"7","name":"x","unit_price":100,"size":"M","quantity":0}`},
		{"huge quantity", `{"product_id":"7","name":"x","unit_price":100,"size":"M","quantity":100}`},
		{"malformed json", `{not json`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mock := &cartServiceMock{}
			handler := NewCartHandler(mock, &cartServiceMock{}, 5*time.Second)

			recorder := httptest.NewRecorder()
			request := withUser(httptest.NewRequest("POST", "/api/v1/cart/items", strings.NewReader(tc.body)))

			handler.AddItem(recorder, request)

			if recorder.Code != http.StatusBadRequest {
				t.Errorf("expected %d, got %d", http.StatusBadRequest, recorder.Code)
			}
			if mock.added != nil {
				t.Error("service must not be called on invalid input")
			}
		})
	}
}

func TestRemoveItem_SizeRemovesVariantOnly(t *testing.T) {
	mock := &cartServiceMock{}
	handler := NewCartHandler(mock, &cartServiceMock{}, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withUser(httptest.NewRequest("DELETE", "/api/v1/cart/items/7?size=M", nil))
	request = withURLParam(request, "product_id", "7")

	handler.RemoveItem(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, recorder.Code)
	}
	if mock.removedProduct != "7" || mock.removedSize != "M" {
		t.Errorf("expected variant removal of (7, M), got (%s, %s)", mock.removedProduct, mock.removedSize)
	}
}

func TestRemoveItem_NoSizeRemovesWholeProduct(t *testing.T) {
	mock := &cartServiceMock{}
	handler := NewCartHandler(mock, &cartServiceMock{}, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withUser(httptest.NewRequest("DELETE", "/api/v1/cart/items/7", nil))
	request = withURLParam(request, "product_id", "7")

	handler.RemoveItem(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, recorder.Code)
	}
	if mock.removedProduct != "7" || mock.removedSize != "" {
		t.Errorf("expected whole-product removal of 7, got (%s, %s)", mock.removedProduct, mock.removedSize)
	}
}

func TestClearCart(t *testing.T) {
	mock := &cartServiceMock{}
	handler := NewCartHandler(mock, &cartServiceMock{}, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withUser(httptest.NewRequest("DELETE", "/api/v1/cart", nil))

	handler.ClearCart(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, recorder.Code)
	}
	if !mock.cleared {
		t.Error("expected Clear to reach the service")
	}
}
