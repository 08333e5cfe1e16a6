package wexfleet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/truckwise/truckwise/internal/pkg/connector"
)

const (
	defaultBaseURL  = "https://api.wexinc.com/fleet/v2"
	defaultTokenURL = "https://api.wexinc.com/oauth/token"

	pageSize = 200
)

// Config carries the wiring for the WEX fuel-card integration. WEX issues
// short-lived machine tokens over the client-credentials grant and pages
// transaction listings by page number.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Adapter maps WEX transaction payloads into the uniform page shape.
type Adapter struct {
	baseURL    string
	httpClient *http.Client
}

// NewDescriptor builds the registry descriptor for WEX.
func NewDescriptor(cfg Config) connector.Descriptor {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return connector.Descriptor{
		Key:          "wexfleet",
		Strategy:     connector.StrategyClientCredentials,
		TokenURL:     tokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Timeout:      cfg.Timeout,
		Adapter:      &Adapter{baseURL: baseURL, httpClient: httpClient},
	}
}

func (a *Adapter) Key() string { return "wexfleet" }

func (a *Adapter) Strategy() connector.AuthStrategy { return connector.StrategyClientCredentials }

func (a *Adapter) Kinds() []connector.EntityKind {
	return []connector.EntityKind{connector.KindFuelTransaction}
}

// FetchPage lists one page of fuel transactions. WEX pages are numbered from
// 1; the cursor carries the page number to fetch.
func (a *Adapter) FetchPage(ctx context.Context, access connector.Access, kind connector.EntityKind, cursor string) (connector.Page, error) {
	if kind != connector.KindFuelTransaction {
		return connector.Page{}, fmt.Errorf("wexfleet: unsupported entity kind %q", kind)
	}

	pageNum := 1
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil {
			return connector.Page{}, fmt.Errorf("wexfleet: invalid cursor %q", cursor)
		}
		pageNum = parsed
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(pageNum))
	q.Set("pageSize", strconv.Itoa(pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/transactions?"+q.Encode(), nil)
	if err != nil {
		return connector.Page{}, fmt.Errorf("wexfleet: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+access.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return connector.Page{}, &connector.TransientError{Op: "wexfleet fetch transactions", Err: err}
	}
	defer resp.Body.Close()

	if err := connector.ClassifyFetchStatus("wexfleet", resp); err != nil {
		return connector.Page{}, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return connector.Page{}, &connector.TransientError{Op: "wexfleet read transactions", Err: err}
	}

	page, err := mapPage(body, pageNum)
	if err != nil {
		return connector.Page{}, &connector.TransientError{Op: "wexfleet decode transactions", Err: err}
	}
	page.Raw = body
	return page, nil
}

type transactionPayload struct {
	TransactionID string  `json:"transactionId"`
	CardNumber    string  `json:"cardLastFour"`
	DriverID      string  `json:"driverId"`
	VehicleID     string  `json:"vehicleId"`
	MerchantName  string  `json:"merchantName"`
	MerchantCity  string  `json:"merchantCity"`
	MerchantState string  `json:"merchantState"`
	ProductCode   string  `json:"productCode"`
	Quantity      float64 `json:"quantity"`
	UnitPrice     float64 `json:"unitPrice"`
	GrossAmount   float64 `json:"grossAmount"`
	PostedAt      string  `json:"transactionDate"`
	OdometerMiles float64 `json:"odometer"`
}

type listEnvelope struct {
	Transactions []transactionPayload `json:"transactions"`
	TotalPages   int                  `json:"totalPages"`
	Page         int                  `json:"page"`
}

func mapPage(body []byte, pageNum int) (connector.Page, error) {
	var envelope listEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return connector.Page{}, err
	}

	var page connector.Page
	for _, tx := range envelope.Transactions {
		page.Items = append(page.Items, connector.Item{
			Kind:       connector.KindFuelTransaction,
			ExternalID: tx.TransactionID,
			Fields: map[string]any{
				"card_last_four": tx.CardNumber,
				"amount":         tx.GrossAmount,
				"gallons":        tx.Quantity,
				"location":       merchantLocation(tx),
				"product_type":   tx.ProductCode,
				"transacted_at":  tx.PostedAt,
			},
		})
	}

	page.Done = envelope.TotalPages == 0 || pageNum >= envelope.TotalPages
	if !page.Done {
		page.NextCursor = strconv.Itoa(pageNum + 1)
	}
	return page, nil
}

func merchantLocation(tx transactionPayload) string {
	switch {
	case tx.MerchantCity != "" && tx.MerchantState != "":
		return tx.MerchantName + ", " + tx.MerchantCity + ", " + tx.MerchantState
	case tx.MerchantName != "":
		return tx.MerchantName
	default:
		return ""
	}
}
