// Package compose renders the notification artifacts for an accepted order.
// Nothing here performs I/O; the same inputs always produce the same output.
package compose

import (
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/imrishuroy/go-storefront-orderflow/internal/catalog"
	"github.com/imrishuroy/go-storefront-orderflow/internal/orders"
)

const (
	AttachmentName = "pedido.csv"
	AttachmentType = "text/csv"

	whatsAppCallToAction = "¡Ingresa a MI NEGOCIO para finalizar!"
)

// Attachment is a file sent alongside the email body.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// Email is a provider-neutral plain-text message.
type Email struct {
	To         []string   `json:"to"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body"`
	Attachment Attachment `json:"attachment"`
}

// Artifacts are the three renderings of one order.
type Artifacts struct {
	CSV      []byte `json:"csv"`
	Email    Email  `json:"email"`
	WhatsApp string `json:"whatsapp"`
}

// csvRow fixes the export's column names and order.
type csvRow struct {
	SKU           string `csv:"sku"`
	Description   string `csv:"description"`
	Quantity      int    `csv:"quantity"`
	CustomerName  string `csv:"customerName"`
	CustomerPhone string `csv:"customerPhone"`
	ConsultantID  string `csv:"consultantId"`
}

// Composer renders artifacts. OrdersMailbox receives a copy of every order email.
type Composer struct {
	OrdersMailbox string
}

// Compose builds the CSV export, the email and the WhatsApp text for order.
func (c Composer) Compose(order orders.Order, consultant catalog.Consultant) (Artifacts, error) {
	csvBytes, err := OrderCSV(order, consultant)
	if err != nil {
		return Artifacts{}, err
	}
	return Artifacts{
		CSV: csvBytes,
		Email: Email{
			To:      c.recipients(consultant),
			Subject: "Pedido " + consultant.Name,
			Body:    EmailBody(order, consultant),
			Attachment: Attachment{
				Filename:    AttachmentName,
				ContentType: AttachmentType,
				Content:     csvBytes,
			},
		},
		WhatsApp: WhatsAppText(order, consultant),
	}, nil
}

func (c Composer) recipients(consultant catalog.Consultant) []string {
	to := make([]string, 0, 2)
	if c.OrdersMailbox != "" {
		to = append(to, c.OrdersMailbox)
	}
	if consultant.Email != "" && !strings.EqualFold(consultant.Email, c.OrdersMailbox) {
		to = append(to, consultant.Email)
	}
	return to
}

// OrderCSV renders one row per cart item under a fixed header, UTF-8 encoded.
func OrderCSV(order orders.Order, consultant catalog.Consultant) ([]byte, error) {
	rows := make([]csvRow, 0, len(order.Items))
	for _, it := range order.Items {
		rows = append(rows, csvRow{
			SKU:           it.SKU,
			Description:   it.Description,
			Quantity:      it.Quantity,
			CustomerName:  order.Customer.Name,
			CustomerPhone: order.Customer.Phone,
			ConsultantID:  consultant.ID,
		})
	}
	out, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return nil, fmt.Errorf("marshal order csv: %w", err)
	}
	return out, nil
}

// EmailBody is the plain-text order summary.
func EmailBody(order orders.Order, consultant catalog.Consultant) string {
	var b strings.Builder
	b.WriteString("Nuevo pedido recibido\n\n")
	fmt.Fprintf(&b, "Consultora: %s\n", consultant.Name)
	fmt.Fprintf(&b, "Cliente: %s\n\n", order.Customer.Name)
	b.WriteString("Resumen:\n")
	b.WriteString(itemList(order, "- "))
	return b.String()
}

// WhatsAppText is the message sent to the consultant's phone.
func WhatsAppText(order orders.Order, consultant catalog.Consultant) string {
	var b strings.Builder
	b.WriteString("🌟 *NUEVO PEDIDO RECIBIDO*\n\n")
	fmt.Fprintf(&b, "*Consultora:* %s\n", consultant.Name)
	fmt.Fprintf(&b, "*Cliente:* %s\n", order.Customer.Name)
	fmt.Fprintf(&b, "*Tel:* %s\n\n", order.Customer.Phone)
	b.WriteString("*Productos:*\n")
	b.WriteString(itemList(order, "• "))
	b.WriteString("\n\n")
	b.WriteString(whatsAppCallToAction)
	return b.String()
}

func itemList(order orders.Order, bullet string) string {
	lines := make([]string, 0, len(order.Items))
	for _, it := range order.Items {
		lines = append(lines, fmt.Sprintf("%s%d x %s", bullet, it.Quantity, it.Description))
	}
	return strings.Join(lines, "\n")
}
