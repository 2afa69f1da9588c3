package recordapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ehr-access/internal/platform/httpclient"
	"ehr-access/internal/ports/records"
)

var ErrNotConfigured = errors.New("recordapi client not configured")

// Client implementa records.Store contra el record store del backend.
// Solo lecturas: la redención de links devuelve snapshots, nunca muta.
type Client struct {
	http   *httpclient.Client
	apiKey string
}

type Config struct {
	BaseURL string
	APIKey  string
}

func NewClient(cfg Config) (*Client, error) {
	hc, err := httpclient.New(cfg.BaseURL, 0)
	if err != nil {
		return nil, err
	}
	return &Client{http: hc, apiKey: strings.TrimSpace(cfg.APIKey)}, nil
}

type recordPayload struct {
	ID          string    `json:"_id"`
	PatientID   string    `json:"patientId"`
	CreatedBy   string    `json:"createdBy"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	RecordType  string    `json:"recordType"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (c *Client) GetRecord(ctx context.Context, id string) (records.Record, error) {
	if c == nil || c.http == nil {
		return records.Record{}, ErrNotConfigured
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return records.Record{}, records.ErrNotFound
	}

	var out struct {
		Data struct {
			Record *recordPayload `json:"record"`
		} `json:"data"`
	}
	err := c.http.DoJSON(ctx, http.MethodGet, "/api/records/"+url.PathEscape(id), c.headers(), nil, &out)
	if err != nil {
		if httpclient.IsStatus(err, http.StatusNotFound) {
			return records.Record{}, records.ErrNotFound
		}
		return records.Record{}, err
	}
	if out.Data.Record == nil {
		return records.Record{}, records.ErrNotFound
	}
	return toRecord(*out.Data.Record), nil
}

func (c *Client) ListByPatient(ctx context.Context, patientID string) ([]records.Record, error) {
	if c == nil || c.http == nil {
		return nil, ErrNotConfigured
	}
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, nil
	}

	var out struct {
		Data struct {
			Records []recordPayload `json:"records"`
		} `json:"data"`
	}
	q := url.Values{"patientId": {patientID}}
	err := c.http.DoJSON(ctx, http.MethodGet, "/api/records?"+q.Encode(), c.headers(), nil, &out)
	if err != nil {
		return nil, err
	}

	items := make([]records.Record, 0, len(out.Data.Records))
	for _, r := range out.Data.Records {
		items = append(items, toRecord(r))
	}
	return items, nil
}

func (c *Client) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"X-Api-Key": c.apiKey}
}

func toRecord(p recordPayload) records.Record {
	return records.Record{
		ID:          p.ID,
		PatientID:   p.PatientID,
		CreatedBy:   p.CreatedBy,
		Title:       p.Title,
		Description: p.Description,
		RecordType:  p.RecordType,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
