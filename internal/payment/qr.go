// Package payment wraps the external QR provider and its webhook contract.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/poscart/fulfillment/internal/errs"
)

type GenerateRequest struct {
	AccountNo   string `json:"accountNo"`
	AccountName string `json:"accountName"`
	AcqID       int    `json:"acqId"`
	Amount      int    `json:"amount"`
	AddInfo     string `json:"addInfo"`
	Template    string `json:"template"`
}

type generateResponse struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
	Data *struct {
		QRCode    string `json:"qrCode"`
		QRDataURL string `json:"qrDataURL"`
	} `json:"data"`
}

// QRClient calls the provider's generate endpoint. Every call is bounded by
// the client timeout; failures map to errs.UpstreamUnavailable.
type QRClient struct {
	URL         string
	BankBIN     int
	AccountNo   string
	AccountName string
	HTTP        *http.Client
}

func NewQRClient(url string, bankBIN int, accountNo, accountName string, timeout time.Duration) *QRClient {
	return &QRClient{
		URL:         url,
		BankBIN:     bankBIN,
		AccountNo:   accountNo,
		AccountName: accountName,
		HTTP:        &http.Client{Timeout: timeout},
	}
}

// GenerateCode turns an integer amount and a human-readable reference into an
// opaque, renderable payment code.
func (c *QRClient) GenerateCode(ctx context.Context, amount int, addInfo string) (string, error) {
	body, err := json.Marshal(GenerateRequest{
		AccountNo:   c.AccountNo,
		AccountName: c.AccountName,
		AcqID:       c.BankBIN,
		Amount:      amount,
		AddInfo:     addInfo,
		Template:    "compact2",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", &errs.UpstreamUnavailable{Service: "payment QR provider", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &errs.UpstreamUnavailable{
			Service: "payment QR provider",
			Err:     fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &errs.UpstreamUnavailable{Service: "payment QR provider", Err: err}
	}
	if out.Code != "00" || out.Data == nil {
		return "", &errs.UpstreamUnavailable{
			Service: "payment QR provider",
			Err:     fmt.Errorf("provider error: %s", out.Desc),
		}
	}
	return out.Data.QRCode, nil
}
