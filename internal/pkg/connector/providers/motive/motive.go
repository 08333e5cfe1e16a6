package motive

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
	defaultBaseURL  = "https://api.gomotive.com"
	defaultTokenURL = "https://api.gomotive.com/oauth/token"

	pageSize = 100
)

// Config carries the wiring for the Motive ELD/GPS integration. Motive uses
// authorization-code OAuth2 with single-use rotating refresh tokens and
// cursor-token paging.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Adapter maps Motive's REST payloads into the uniform page shape.
type Adapter struct {
	baseURL    string
	httpClient *http.Client
}

// NewDescriptor builds the registry descriptor for Motive.
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
		Key:          "motive",
		Strategy:     connector.StrategyAuthorizationCode,
		TokenURL:     tokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Timeout:      cfg.Timeout,
		Adapter:      &Adapter{baseURL: baseURL, httpClient: httpClient},
	}
}

func (a *Adapter) Key() string { return "motive" }

func (a *Adapter) Strategy() connector.AuthStrategy { return connector.StrategyAuthorizationCode }

func (a *Adapter) Kinds() []connector.EntityKind {
	return []connector.EntityKind{connector.KindVehicle, connector.KindDriver, connector.KindFuelTransaction}
}

// FetchPage lists one page of the given kind. Motive pages with an opaque
// cursor token returned alongside each page.
func (a *Adapter) FetchPage(ctx context.Context, access connector.Access, kind connector.EntityKind, cursor string) (connector.Page, error) {
	var path string
	switch kind {
	case connector.KindVehicle:
		path = "/v1/vehicles"
	case connector.KindDriver:
		path = "/v1/drivers"
	case connector.KindFuelTransaction:
		path = "/v1/fuel_purchases"
	default:
		return connector.Page{}, fmt.Errorf("motive: unsupported entity kind %q", kind)
	}

	q := url.Values{}
	q.Set("per_page", strconv.Itoa(pageSize))
	if cursor != "" {
		q.Set("page_cursor", cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return connector.Page{}, fmt.Errorf("motive: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+access.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return connector.Page{}, &connector.TransientError{Op: "motive fetch " + path, Err: err}
	}
	defer resp.Body.Close()

	if err := connector.ClassifyFetchStatus("motive", resp); err != nil {
		return connector.Page{}, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return connector.Page{}, &connector.TransientError{Op: "motive read " + path, Err: err}
	}

	page, err := mapPage(kind, body)
	if err != nil {
		return connector.Page{}, &connector.TransientError{Op: "motive decode " + path, Err: err}
	}
	page.Raw = body
	return page, nil
}

type listEnvelope struct {
	Vehicles      []vehiclePayload  `json:"vehicles"`
	Drivers       []driverPayload   `json:"drivers"`
	FuelPurchases []purchasePayload `json:"fuel_purchases"`
	Pagination    struct {
		NextCursor string `json:"next_cursor"`
	} `json:"pagination"`
}

type vehiclePayload struct {
	ID     json.Number `json:"id"`
	VIN    string      `json:"vin"`
	Number string      `json:"number"`
	Make   string      `json:"make"`
	Model  string      `json:"model"`
	Year   int         `json:"year"`
	Status string      `json:"status"`
}

type driverPayload struct {
	ID        json.Number `json:"id"`
	Email     string      `json:"email"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Phone     string      `json:"phone"`
	Status    string      `json:"status"`
}

type purchasePayload struct {
	ID           json.Number `json:"id"`
	TotalCost    float64     `json:"total_cost"`
	Gallons      float64     `json:"gallons"`
	Location     string      `json:"location"`
	ProductType  string      `json:"product_type"`
	CardLastFour string      `json:"card_last_four"`
	PurchasedAt  string      `json:"purchased_at"`
}

func mapPage(kind connector.EntityKind, body []byte) (connector.Page, error) {
	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return connector.Page{}, err
	}

	page := connector.Page{
		NextCursor: env.Pagination.NextCursor,
		Done:       env.Pagination.NextCursor == "",
	}

	switch kind {
	case connector.KindVehicle:
		for _, v := range env.Vehicles {
			page.Items = append(page.Items, connector.Item{
				Kind:       kind,
				ExternalID: v.ID.String(),
				NaturalKey: v.VIN,
				Fields: map[string]any{
					"vin":         v.VIN,
					"unit_number": v.Number,
					"make":        v.Make,
					"model":       v.Model,
					"year":        v.Year,
					"status":      v.Status,
				},
			})
		}
	case connector.KindDriver:
		for _, d := range env.Drivers {
			page.Items = append(page.Items, connector.Item{
				Kind:       kind,
				ExternalID: d.ID.String(),
				NaturalKey: strings.ToLower(d.Email),
				Fields: map[string]any{
					"email":      strings.ToLower(d.Email),
					"first_name": d.FirstName,
					"last_name":  d.LastName,
					"phone":      d.Phone,
					"status":     d.Status,
				},
			})
		}
	case connector.KindFuelTransaction:
		for _, p := range env.FuelPurchases {
			page.Items = append(page.Items, connector.Item{
				Kind:       kind,
				ExternalID: p.ID.String(),
				Fields: map[string]any{
					"amount":         p.TotalCost,
					"gallons":        p.Gallons,
					"location":       p.Location,
					"product_type":   p.ProductType,
					"card_last_four": p.CardLastFour,
					"transacted_at":  p.PurchasedAt,
				},
			})
		}
	}

	return page, nil
}
