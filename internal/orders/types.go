package orders

// CartItem is one line of a submitted cart.
type CartItem struct {
	SKU         string `json:"sku"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
}

// Customer is the shopper placing the order through a consultant's storefront.
type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// Order is a validated cart submission. It is never persisted; it travels
// from the validator to the notification pipeline.
type Order struct {
	ConsultantID string     `json:"consultant_id"`
	Items        []CartItem `json:"items"`
	Customer     Customer   `json:"customer"`
}
