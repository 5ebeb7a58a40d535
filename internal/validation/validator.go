package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/imrishuroy/go-storefront-orderflow/internal/catalog"
	"github.com/imrishuroy/go-storefront-orderflow/internal/orders"
)

// Directory resolves consultant ids. *catalog.Store and *catalog.Snapshot satisfy it.
type Directory interface {
	Get(id string) (catalog.Consultant, bool)
}

// Error is returned by Validate. Kind is one of the orders.Err* sentinels;
// Fields maps a JSON path (e.g. "carrito[0].cantidad") to the failed rule.
type Error struct {
	Kind   error
	Fields map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Kind.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", e.Kind, strings.Join(parts, "; "))
}

func (e *Error) Unwrap() error { return e.Kind }

// New returns a configured validator with JSON field names in error paths and
// the consultant-id struct rule registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterStructValidation(createOrderStructValidation, CreateOrderRequest{})

	return v
}

// createOrderStructValidation requires one of the two consultant id spellings.
func createOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateOrderRequest)
	if req.consultant() == "" {
		sl.ReportError(req.ConsultoraID, "consultora_id", "ConsultoraID", "required", "")
	}
}

// Validator checks cart submissions against shape rules and the consultant directory.
type Validator struct {
	v   *validatorv10.Validate
	dir Directory
}

// NewValidator returns a Validator resolving consultants through dir.
func NewValidator(dir Directory) *Validator {
	return &Validator{v: New(), dir: dir}
}

// Validate turns a raw request into an Order. Shape rules run first, then the
// empty-cart check, then the consultant lookup. It has no side effects.
func (val *Validator) Validate(req CreateOrderRequest) (orders.Order, catalog.Consultant, error) {
	req = req.trimmed()

	if err := val.v.Struct(req); err != nil {
		return orders.Order{}, catalog.Consultant{}, &Error{Kind: orders.ErrMalformedInput, Fields: validationErrorsToMap(err)}
	}
	if len(req.Items) == 0 {
		return orders.Order{}, catalog.Consultant{}, &Error{Kind: orders.ErrEmptyCart}
	}

	consultant, ok := val.dir.Get(req.consultant())
	if !ok {
		return orders.Order{}, catalog.Consultant{}, &Error{
			Kind:   orders.ErrUnknownConsultant,
			Fields: map[string]string{"consultora_id": req.consultant()},
		}
	}

	order := orders.Order{
		ConsultantID: consultant.ID,
		Items:        make([]orders.CartItem, 0, len(req.Items)),
		Customer: orders.Customer{
			Name:  req.Customer.Name,
			Phone: req.Customer.Phone,
			Email: req.Customer.Email,
		},
	}
	for _, it := range req.Items {
		order.Items = append(order.Items, orders.CartItem{
			SKU:         it.SKU,
			Description: it.Description,
			Quantity:    it.Quantity,
		})
	}
	return order, consultant, nil
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			// drop the root struct name: "CreateOrderRequest.cliente.nombre" -> "cliente.nombre"
			_, field, _ := strings.Cut(fe.Namespace(), ".")
			rule := fe.Tag()
			if fe.Param() != "" {
				rule += "=" + fe.Param()
			}
			out[field] = rule
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}
