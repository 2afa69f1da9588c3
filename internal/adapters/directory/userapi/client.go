package userapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"ehr-access/internal/domain/identity"
	"ehr-access/internal/platform/httpclient"
	"ehr-access/internal/ports/directory"
)

var ErrNotConfigured = errors.New("userapi client not configured")

// Client implementa directory.Directory contra el user store del backend.
// Usa el endpoint verify-patient, el mismo que usan los dashboards de
// doctores para resolver pacientes por email/teléfono.
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

type userPayload struct {
	ID        string `json:"_id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phoneNumber"`
	Role      string `json:"role"`
}

type userEnvelope struct {
	Data struct {
		User *userPayload `json:"user"`
	} `json:"data"`
}

func (c *Client) FindPatient(ctx context.Context, email, phone string) (directory.UserSummary, error) {
	if c == nil || c.http == nil {
		return directory.UserSummary{}, ErrNotConfigured
	}

	q := url.Values{}
	if email = strings.TrimSpace(email); email != "" {
		q.Set("email", email)
	}
	if phone = strings.TrimSpace(phone); phone != "" {
		q.Set("phoneNumber", phone)
	}
	if len(q) == 0 {
		return directory.UserSummary{}, directory.ErrNotFound
	}

	var out userEnvelope
	err := c.http.DoJSON(ctx, http.MethodGet, "/api/auth/verify-patient?"+q.Encode(), c.headers(), nil, &out)
	if err != nil {
		if httpclient.IsStatus(err, http.StatusNotFound) {
			return directory.UserSummary{}, directory.ErrNotFound
		}
		return directory.UserSummary{}, err
	}
	if out.Data.User == nil {
		return directory.UserSummary{}, directory.ErrNotFound
	}
	return toSummary(*out.Data.User), nil
}

func (c *Client) GetUser(ctx context.Context, id string) (directory.UserSummary, error) {
	if c == nil || c.http == nil {
		return directory.UserSummary{}, ErrNotConfigured
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return directory.UserSummary{}, directory.ErrNotFound
	}

	var out userEnvelope
	err := c.http.DoJSON(ctx, http.MethodGet, "/api/auth/users/"+url.PathEscape(id), c.headers(), nil, &out)
	if err != nil {
		if httpclient.IsStatus(err, http.StatusNotFound) {
			return directory.UserSummary{}, directory.ErrNotFound
		}
		return directory.UserSummary{}, err
	}
	if out.Data.User == nil {
		return directory.UserSummary{}, directory.ErrNotFound
	}
	return toSummary(*out.Data.User), nil
}

func (c *Client) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"X-Api-Key": c.apiKey}
}

func toSummary(u userPayload) directory.UserSummary {
	role, _ := identity.ParseRole(u.Role)
	return directory.UserSummary{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      role,
	}
}
