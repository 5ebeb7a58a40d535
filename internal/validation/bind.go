package validation

import (
	"github.com/gin-gonic/gin"
	"github.com/imrishuroy/go-storefront-orderflow/internal/orders"
)

// Bind decodes the JSON body into out. Decoding failures (bad JSON, wrong
// types such as a fractional cantidad) are reported as malformed input.
func Bind(c *gin.Context, out *CreateOrderRequest) error {
	if err := c.ShouldBindJSON(out); err != nil {
		return &Error{
			Kind:   orders.ErrMalformedInput,
			Fields: map[string]string{"body": err.Error()},
		}
	}
	return nil
}
