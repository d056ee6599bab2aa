// Package intake отправляет заявки во внешний сервис приёма форм.
package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/client-intake/internal/logger"
	"github.com/ignatzorin/client-intake/internal/models"
)

// Payload тело запроса к сервису приёма форм.
type Payload struct {
	models.Submission
	TermsAccepted   bool   `json:"termsAccepted"`
	FormattedReview string `json:"formattedReview"`
}

// Client отправляет заявки на внешний endpoint.
// Пустой endpoint отключает отправку: Deliver сразу возвращает nil.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient создаёт экземпляр клиента.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Enabled сообщает, задан ли endpoint.
func (c *Client) Enabled() bool {
	return c.endpoint != ""
}

// Deliver отправляет заявку одним запросом без повторов.
func (c *Client) Deliver(ctx context.Context, payload Payload) error {
	log := logger.Log.WithFields(logrus.Fields{
		"component":     "intake_client",
		"submission_id": payload.ID,
	})

	if !c.Enabled() {
		log.Debug("endpoint не задан, отправка пропущена")
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("intake: не удалось сериализовать заявку: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("intake: не удалось создать запрос: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("intake: запрос не выполнен: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("intake: код ответа %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	log.WithField("status", resp.StatusCode).Info("заявка доставлена")
	return nil
}
