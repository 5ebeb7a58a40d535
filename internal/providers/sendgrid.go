package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/imrishuroy/go-storefront-orderflow/internal/compose"
)

// SendGrid sends email through the v3 mail/send API.
type SendGrid struct {
	APIKey string
	From   string
	URL    string
	Client *http.Client
}

type sendGridAddress struct {
	Email string `json:"email"`
}

type sendGridPersonalization struct {
	To      []sendGridAddress `json:"to"`
	Subject string            `json:"subject"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridAttachment struct {
	Content  string `json:"content"`
	Type     string `json:"type"`
	Filename string `json:"filename"`
}

type sendGridRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Content          []sendGridContent         `json:"content"`
	Attachments      []sendGridAttachment      `json:"attachments,omitempty"`
}

func (s *SendGrid) payload(msg compose.Email) sendGridRequest {
	to := make([]sendGridAddress, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, sendGridAddress{Email: addr})
	}
	req := sendGridRequest{
		Personalizations: []sendGridPersonalization{{To: to, Subject: msg.Subject}},
		From:             sendGridAddress{Email: s.From},
		Content:          []sendGridContent{{Type: "text/plain", Value: msg.Body}},
	}
	if len(msg.Attachment.Content) > 0 {
		req.Attachments = []sendGridAttachment{{
			Content:  base64.StdEncoding.EncodeToString(msg.Attachment.Content),
			Type:     msg.Attachment.ContentType,
			Filename: msg.Attachment.Filename,
		}}
	}
	return req
}

// SendEmail posts msg to SendGrid. Any 2xx reply counts as delivered.
func (s *SendGrid) SendEmail(ctx context.Context, msg compose.Email) error {
	body, err := json.Marshal(s.payload(msg))
	if err != nil {
		return fmt.Errorf("sendgrid: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sendgrid: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError("sendgrid", resp)
	}
	return nil
}
