package geotab

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
	defaultBaseURL  = "https://my.geotab.com"
	defaultLoginURL = "https://my.geotab.com/auth/authenticate"

	pageSize = 100
)

// Config carries the wiring for the Geotab telematics integration. Geotab
// authenticates a stored username/password/database triple into a 14-day
// session identifier and pages with offset/limit.
type Config struct {
	BaseURL    string
	LoginURL   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Adapter maps Geotab's REST payloads into the uniform page shape.
type Adapter struct {
	baseURL    string
	httpClient *http.Client
}

// NewDescriptor builds the registry descriptor for Geotab.
func NewDescriptor(cfg Config) connector.Descriptor {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	loginURL := cfg.LoginURL
	if loginURL == "" {
		loginURL = defaultLoginURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return connector.Descriptor{
		Key:      "geotab",
		Strategy: connector.StrategySession,
		LoginURL: loginURL,
		Timeout:  cfg.Timeout,
		Adapter:  &Adapter{baseURL: baseURL, httpClient: httpClient},
	}
}

func (a *Adapter) Key() string { return "geotab" }

func (a *Adapter) Strategy() connector.AuthStrategy { return connector.StrategySession }

func (a *Adapter) Kinds() []connector.EntityKind {
	return []connector.EntityKind{connector.KindVehicle, connector.KindDriver}
}

// FetchPage lists one page of the given kind. Geotab pages with a numeric
// offset carried through the cursor string; an empty cursor means offset 0.
func (a *Adapter) FetchPage(ctx context.Context, access connector.Access, kind connector.EntityKind, cursor string) (connector.Page, error) {
	var path string
	switch kind {
	case connector.KindVehicle:
		path = "/api/v1/devices"
	case connector.KindDriver:
		path = "/api/v1/users"
	default:
		return connector.Page{}, fmt.Errorf("geotab: unsupported entity kind %q", kind)
	}

	offset := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil {
			return connector.Page{}, fmt.Errorf("geotab: invalid cursor %q", cursor)
		}
		offset = parsed
	}

	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(pageSize))

	base := a.baseURL
	if access.Server != "" {
		base = "https://" + strings.TrimRight(access.Server, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path+"?"+q.Encode(), nil)
	if err != nil {
		return connector.Page{}, fmt.Errorf("geotab: build request: %w", err)
	}
	req.Header.Set("X-Session-Id", access.Token)
	req.Header.Set("X-Database", access.Database)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return connector.Page{}, &connector.TransientError{Op: "geotab fetch " + path, Err: err}
	}
	defer resp.Body.Close()

	if err := connector.ClassifyFetchStatus("geotab", resp); err != nil {
		return connector.Page{}, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return connector.Page{}, &connector.TransientError{Op: "geotab read " + path, Err: err}
	}

	page, err := mapPage(kind, body, offset)
	if err != nil {
		return connector.Page{}, &connector.TransientError{Op: "geotab decode " + path, Err: err}
	}
	page.Raw = body
	return page, nil
}

type devicePayload struct {
	ID           string `json:"id"`
	VIN          string `json:"vehicleIdentificationNumber"`
	Name         string `json:"name"`
	Make         string `json:"make"`
	Model        string `json:"model"`
	Year         int    `json:"year"`
	ActiveFrom   string `json:"activeFrom"`
	ActiveTo     string `json:"activeTo"`
	SerialNumber string `json:"serialNumber"`
}

type userPayload struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Phone          string `json:"phoneNumber"`
	LicenseNumber  string `json:"licenseNumber"`
	LicenseState   string `json:"licenseProvince"`
	IsDriver       bool   `json:"isDriver"`
	ActiveTo       string `json:"activeTo"`
	EmployeeNumber string `json:"employeeNo"`
}

func mapPage(kind connector.EntityKind, body []byte, offset int) (connector.Page, error) {
	var page connector.Page

	switch kind {
	case connector.KindVehicle:
		var devices []devicePayload
		if err := json.Unmarshal(body, &devices); err != nil {
			return connector.Page{}, err
		}
		for _, d := range devices {
			page.Items = append(page.Items, connector.Item{
				Kind:       kind,
				ExternalID: d.ID,
				NaturalKey: d.VIN,
				Fields: map[string]any{
					"vin":         d.VIN,
					"unit_number": d.Name,
					"make":        d.Make,
					"model":       d.Model,
					"year":        d.Year,
				},
			})
		}
		page.Done = len(devices) < pageSize
	case connector.KindDriver:
		var users []userPayload
		if err := json.Unmarshal(body, &users); err != nil {
			return connector.Page{}, err
		}
		for _, u := range users {
			if !u.IsDriver {
				continue
			}
			// Geotab user names are login emails.
			email := strings.ToLower(u.Name)
			page.Items = append(page.Items, connector.Item{
				Kind:       kind,
				ExternalID: u.ID,
				NaturalKey: email,
				Fields: map[string]any{
					"email":          email,
					"first_name":     u.FirstName,
					"last_name":      u.LastName,
					"phone":          u.Phone,
					"license_number": u.LicenseNumber,
					"license_state":  u.LicenseState,
				},
			})
		}
		page.Done = len(users) < pageSize
	}

	if !page.Done {
		page.NextCursor = strconv.Itoa(offset + pageSize)
	}
	return page, nil
}
