package samsara

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
	defaultBaseURL = "https://api.samsara.com"

	pageSize = 512
)

// Config carries the wiring for the Samsara ELD/GPS integration. Samsara
// authenticates with a static API token and pages with an "after" cursor.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Adapter maps Samsara's REST payloads into the uniform page shape.
type Adapter struct {
	baseURL    string
	httpClient *http.Client
}

// NewDescriptor builds the registry descriptor for Samsara.
func NewDescriptor(cfg Config) connector.Descriptor {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return connector.Descriptor{
		Key:      "samsara",
		Strategy: connector.StrategyAPIKey,
		Timeout:  cfg.Timeout,
		Adapter:  &Adapter{baseURL: baseURL, httpClient: httpClient},
	}
}

func (a *Adapter) Key() string { return "samsara" }

func (a *Adapter) Strategy() connector.AuthStrategy { return connector.StrategyAPIKey }

func (a *Adapter) Kinds() []connector.EntityKind {
	return []connector.EntityKind{connector.KindVehicle, connector.KindDriver}
}

// FetchPage lists one page of the given kind using cursor paging.
func (a *Adapter) FetchPage(ctx context.Context, access connector.Access, kind connector.EntityKind, cursor string) (connector.Page, error) {
	var path string
	switch kind {
	case connector.KindVehicle:
		path = "/fleet/vehicles"
	case connector.KindDriver:
		path = "/fleet/drivers"
	default:
		return connector.Page{}, fmt.Errorf("samsara: unsupported entity kind %q", kind)
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageSize))
	if cursor != "" {
		q.Set("after", cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return connector.Page{}, fmt.Errorf("samsara: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+access.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return connector.Page{}, &connector.TransientError{Op: "samsara fetch " + path, Err: err}
	}
	defer resp.Body.Close()

	if err := connector.ClassifyFetchStatus("samsara", resp); err != nil {
		return connector.Page{}, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return connector.Page{}, &connector.TransientError{Op: "samsara read " + path, Err: err}
	}

	page, err := mapPage(kind, body)
	if err != nil {
		return connector.Page{}, &connector.TransientError{Op: "samsara decode " + path, Err: err}
	}
	page.Raw = body
	return page, nil
}

type listEnvelope struct {
	Data       []json.RawMessage `json:"data"`
	Pagination struct {
		EndCursor   string `json:"endCursor"`
		HasNextPage bool   `json:"hasNextPage"`
	} `json:"pagination"`
}

type vehiclePayload struct {
	ID    string `json:"id"`
	VIN   string `json:"vin"`
	Name  string `json:"name"`
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  string `json:"year"`
}

type driverPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Status   string `json:"driverActivationStatus"`
}

func mapPage(kind connector.EntityKind, body []byte) (connector.Page, error) {
	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return connector.Page{}, err
	}

	page := connector.Page{Done: !env.Pagination.HasNextPage}
	if env.Pagination.HasNextPage {
		page.NextCursor = env.Pagination.EndCursor
	}

	for _, raw := range env.Data {
		switch kind {
		case connector.KindVehicle:
			var v vehiclePayload
			if err := json.Unmarshal(raw, &v); err != nil {
				return connector.Page{}, err
			}
			year, _ := strconv.Atoi(v.Year)
			page.Items = append(page.Items, connector.Item{
				Kind:       kind,
				ExternalID: v.ID,
				NaturalKey: v.VIN,
				Fields: map[string]any{
					"vin":         v.VIN,
					"unit_number": v.Name,
					"make":        v.Make,
					"model":       v.Model,
					"year":        year,
				},
			})
		case connector.KindDriver:
			var d driverPayload
			if err := json.Unmarshal(raw, &d); err != nil {
				return connector.Page{}, err
			}
			first, last := splitName(d.Name)
			page.Items = append(page.Items, connector.Item{
				Kind:       kind,
				ExternalID: d.ID,
				NaturalKey: strings.ToLower(d.Email),
				Fields: map[string]any{
					"email":      strings.ToLower(d.Email),
					"first_name": first,
					"last_name":  last,
					"phone":      d.Phone,
					"status":     strings.ToLower(d.Status),
				},
			})
		}
	}

	return page, nil
}

func splitName(full string) (string, string) {
	parts := strings.SplitN(strings.TrimSpace(full), " ", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return full, ""
}
