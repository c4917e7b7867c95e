// Package whatsapp sends conversation replies through a gowa
// (go-whatsapp-web-multidevice) gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"safetyreport_backend/platform/config"
	"safetyreport_backend/platform/logger"
	"safetyreport_backend/platform/phone"
)

type Client struct {
	baseURL  string
	apiKey   string
	deviceID string
	http     *http.Client
	log      *logger.Logger
}

type messageRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type imageRequest struct {
	Phone    string `json:"phone"`
	Caption  string `json:"caption,omitempty"`
	ImageURL string `json:"image_url"`
}

func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	if cfg.GetWhatsAppURL() == "" {
		return nil
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.GetWhatsAppURL(), "/"),
		apiKey:   cfg.GetWhatsAppKey(),
		deviceID: cfg.GetWhatsAppDeviceID(),
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

// Send delivers a reply to the reporter. When imageURL is set the reply is
// sent as an image with the text as caption.
func (c *Client) Send(ctx context.Context, recipientKey, text, imageURL string) error {
	if c == nil {
		return nil
	}

	normalized := strings.TrimPrefix(phone.NormalizeE164(recipientKey), "+")

	if imageURL != "" {
		return c.post(ctx, "/send/image", imageRequest{
			Phone:    normalized,
			Caption:  text,
			ImageURL: imageURL,
		}, normalized)
	}

	return c.post(ctx, "/send/message", messageRequest{
		Phone:   normalized,
		Message: text,
	}, normalized)
}

func (c *Client) post(ctx context.Context, path string, payload any, normalized string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", formatAuthHeader(c.apiKey))
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-Id", c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("whatsapp sent via gowa", "phone", normalized, "endpoint", path)
	return nil
}

func formatAuthHeader(apiKey string) string {
	if strings.HasPrefix(strings.ToLower(apiKey), "basic ") {
		return apiKey
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(apiKey))
	return "Basic " + encoded
}
