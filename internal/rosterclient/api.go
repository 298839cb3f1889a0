package rosterclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
)

var ErrNotFound = errors.New("not found")

// APIError is any non-2xx answer other than 404.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.Status)
	}
	return fmt.Sprintf("api returned status %d: %s", e.Status, e.Message)
}

// APIClient calls the /api/Event endpoints.
type APIClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewAPIClient cria um cliente para a API de check-in. token pode ser vazio.
func NewAPIClient(baseURL, token string, client *http.Client) *APIClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &APIClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client:  client,
	}
}

func (c *APIClient) ListCommunities(ctx context.Context) ([]attendance.Community, error) {
	var out []attendance.Community
	err := c.do(ctx, http.MethodGet, "/api/Event/communities", &out)
	return out, err
}

func (c *APIClient) ListPeople(ctx context.Context, communityID int) ([]attendance.Person, error) {
	var out []attendance.Person
	err := c.do(ctx, http.MethodGet, "/api/Event/people/"+strconv.Itoa(communityID), &out)
	return out, err
}

func (c *APIClient) Summary(ctx context.Context, communityID int) (attendance.EventSummary, error) {
	var out attendance.EventSummary
	err := c.do(ctx, http.MethodGet, "/api/Event/summary/"+strconv.Itoa(communityID), &out)
	return out, err
}

func (c *APIClient) CheckIn(ctx context.Context, personID int) (*attendance.Person, error) {
	var out attendance.Person
	if err := c.do(ctx, http.MethodPost, "/api/Event/check-in/"+strconv.Itoa(personID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) CheckOut(ctx context.Context, personID int) (*attendance.Person, error) {
	var out attendance.Person
	if err := c.do(ctx, http.MethodPost, "/api/Event/check-out/"+strconv.Itoa(personID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Fetch loads cache entries; pass it to NewCache.
func (c *APIClient) Fetch(ctx context.Context, key CacheKey) (any, error) {
	switch key.Kind {
	case ResourcePeople:
		return c.ListPeople(ctx, key.CommunityID)
	case ResourceSummary:
		return c.Summary(ctx, key.CommunityID)
	default:
		return nil, fmt.Errorf("unknown resource %q", key.Kind)
	}
}

func (c *APIClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var body struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, &body)
		return &APIError{Status: resp.StatusCode, Message: body.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
