package validation

import (
	"strings"

	"github.com/imrishuroy/go-storefront-orderflow/internal/orders"
)

// Item represents a single cart line as submitted by the storefront.
type Item struct {
	SKU         string `json:"sku" validate:"required"`
	Description string `json:"descripcion" validate:"required"`
	Quantity    int    `json:"cantidad" validate:"gt=0"` // must be >= 1
}

// Customer is the shopper's contact block.
type Customer struct {
	Name  string `json:"nombre" validate:"required,min=2"`
	Phone string `json:"telefono" validate:"required,min=8"`
	Email string `json:"correo,omitempty" validate:"omitempty,email"`
}

// CreateOrderRequest is the payload for POST /orders. The consultant id is
// accepted as either consultora_id or consultantId.
type CreateOrderRequest struct {
	ConsultoraID string   `json:"consultora_id,omitempty"`
	ConsultantID string   `json:"consultantId,omitempty"`
	Items        []Item   `json:"carrito" validate:"dive"`
	Customer     Customer `json:"cliente"`
}

// consultant returns whichever consultant id spelling was supplied.
func (r CreateOrderRequest) consultant() string {
	if r.ConsultoraID != "" {
		return r.ConsultoraID
	}
	return r.ConsultantID
}

// trimmed returns a copy with surrounding whitespace removed from every string.
func (r CreateOrderRequest) trimmed() CreateOrderRequest {
	out := CreateOrderRequest{
		ConsultoraID: strings.TrimSpace(r.ConsultoraID),
		ConsultantID: strings.TrimSpace(r.ConsultantID),
		Customer: Customer{
			Name:  strings.TrimSpace(r.Customer.Name),
			Phone: strings.TrimSpace(r.Customer.Phone),
			Email: strings.TrimSpace(r.Customer.Email),
		},
	}
	if r.Items != nil {
		out.Items = make([]Item, len(r.Items))
		for i, it := range r.Items {
			out.Items[i] = Item{
				SKU:         strings.TrimSpace(it.SKU),
				Description: strings.TrimSpace(it.Description),
				Quantity:    it.Quantity,
			}
		}
	}
	return out
}

// FromOrder converts a validated order back to its request form.
func FromOrder(o orders.Order) CreateOrderRequest {
	req := CreateOrderRequest{
		ConsultoraID: o.ConsultantID,
		Items:        make([]Item, 0, len(o.Items)),
		Customer: Customer{
			Name:  o.Customer.Name,
			Phone: o.Customer.Phone,
			Email: o.Customer.Email,
		},
	}
	for _, it := range o.Items {
		req.Items = append(req.Items, Item{SKU: it.SKU, Description: it.Description, Quantity: it.Quantity})
	}
	return req
}
