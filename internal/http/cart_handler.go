package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kimspro130/promode/internal/cart/domain"
)

// CartOperations is the service surface the handler needs. Satisfied
// by *service.CartService.
type CartOperations interface {
	GetCart(ctx context.Context, ownerKey string) (*domain.Cart, error)
	AddItem(ctx context.Context, ownerKey string, item domain.CartItem) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, ownerKey, productID, size string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, ownerKey, productID, size string) (*domain.Cart, error)
	RemoveProduct(ctx context.Context, ownerKey, productID string) (*domain.Cart, error)
	Clear(ctx context.Context, ownerKey string) error
}

// CartHandler routes signed-in users to the mongo-backed cart service
// and guests to the redis-backed one. The owner key is the user id or
// the guest cart token, whichever the auth middleware resolved.
type CartHandler struct {
	userCarts  CartOperations
	guestCarts CartOperations
	timeout    time.Duration
}

func NewCartHandler(userCarts, guestCarts CartOperations, timeout time.Duration) *CartHandler {
	return &CartHandler{
		userCarts:  userCarts,
		guestCarts: guestCarts,
		timeout:    timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Size      string  `json:"size"`
	Quantity  int     `json:"quantity"`
	ImageURL  string  `json:"image_url"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

// CartResponseDTO adds the derived fields clients render next to the
// cart contents.
type CartResponseDTO struct {
	*domain.Cart
	Subtotal   float64 `json:"subtotal"`
	TotalItems int     `json:"total_items"`
}

func cartResponse(cart *domain.Cart) CartResponseDTO {
	return CartResponseDTO{
		Cart:       cart,
		Subtotal:   cart.Subtotal(),
		TotalItems: cart.TotalItems(),
	}
}

// resolve picks the backing cart service and owner key for the caller.
func (h *CartHandler) resolve(ctx context.Context) (CartOperations, string) {
	if userID := getUserIDFromContext(ctx); userID != "" {
		return h.userCarts, userID
	}
	if token := getCartTokenFromContext(ctx); token != "" {
		return h.guestCarts, token
	}
	return nil, ""
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	carts, ownerKey := h.resolve(r.Context())
	if carts == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication or cart token")
		return
	}

	cart, err := carts.GetCart(ctx, ownerKey)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load cart")
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(cart))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	carts, ownerKey := h.resolve(r.Context())
	if carts == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication or cart token")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "invalid_name", "name is required")
		return
	}
	if req.UnitPrice <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_unit_price", "unit_price must be positive")
		return
	}
	if req.Size == "" {
		respondError(w, http.StatusBadRequest, "invalid_size", "size is required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	cart, err := carts.AddItem(ctx, ownerKey, domain.CartItem{
		ProductID: req.ProductID,
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		Size:      req.Size,
		Quantity:  req.Quantity,
		ImageURL:  req.ImageURL,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to add item")
		return
	}

	respondJSON(w, http.StatusCreated, cartResponse(cart))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	carts, ownerKey := h.resolve(r.Context())
	if carts == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication or cart token")
		return
	}

	productID := chi.URLParam(r, "product_id")
	size := r.URL.Query().Get("size")
	if productID == "" || size == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "product_id and size are required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity < 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 0 and 99")
		return
	}

	cart, err := carts.UpdateQuantity(ctx, ownerKey, productID, size, req.Quantity)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to update quantity")
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(cart))
}

// RemoveItem removes one (product, size) variant when ?size= is given,
// or every size of the product when it is not.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	carts, ownerKey := h.resolve(r.Context())
	if carts == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication or cart token")
		return
	}

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	var cart *domain.Cart
	var err error
	if size := r.URL.Query().Get("size"); size != "" {
		cart, err = carts.RemoveItem(ctx, ownerKey, productID, size)
	} else {
		cart, err = carts.RemoveProduct(ctx, ownerKey, productID)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to remove item")
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(cart))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	carts, ownerKey := h.resolve(r.Context())
	if carts == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication or cart token")
		return
	}

	if err := carts.Clear(ctx, ownerKey); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to clear cart")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
