package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// GreenAPI sends WhatsApp messages through a Green API instance. Credentials
// travel in the URL path: <host>/waInstance<id>/sendMessage/<token>.
type GreenAPI struct {
	Host       string // bare host or full base URL
	InstanceID string
	Token      string
	Client     *http.Client
}

type greenAPIMessage struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

func (g *GreenAPI) endpoint() string {
	base := strings.TrimRight(g.Host, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return fmt.Sprintf("%s/waInstance%s/sendMessage/%s", base, g.InstanceID, g.Token)
}

// SendMessage delivers text to chatID. Only a 200 reply counts as delivered.
func (g *GreenAPI) SendMessage(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(greenAPIMessage{ChatID: chatID, Message: text})
	if err != nil {
		return fmt.Errorf("greenapi: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("greenapi: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		// the URL embeds the token; keep it out of logs
		return fmt.Errorf("greenapi: request failed: %w", redactURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError("greenapi", resp)
	}
	return nil
}
