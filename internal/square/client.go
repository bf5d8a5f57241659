// Package square предоставляет клиент REST API платформы Square.
package square

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL задаёт адрес боевого API Square.
const DefaultBaseURL = "https://connect.squareup.com"

// DefaultVersion задаёт версию API для заголовка Square-Version.
const DefaultVersion = "2025-01-23"

const pageLimit = 100

// ErrNotFound возвращается, если запрошенный объект не существует.
var ErrNotFound = errors.New("square: not found")

// APIError описывает неуспешный ответ Square.
type APIError struct {
	StatusCode int
	RetryAfter time.Duration
	Errors     []Error
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("square: unexpected status %d", e.StatusCode)
	}
	first := e.Errors[0]
	return fmt.Sprintf("square: status %d: %s %s: %s", e.StatusCode, first.Category, first.Code, first.Detail)
}

// Client инкапсулирует HTTP-взаимодействие с Square.
type Client struct {
	baseURL    string
	token      string
	version    string
	httpClient *http.Client
}

// NewClient создаёт клиент Square для указанного адреса и токена доступа.
func NewClient(baseURL, token, version string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if version == "" {
		version = DefaultVersion
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		version: version,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListLocations возвращает все точки продавца.
func (c *Client) ListLocations(ctx context.Context) ([]Location, error) {
	var resp listLocationsResponse
	if err := c.do(ctx, http.MethodGet, "/v2/locations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Locations, nil
}

// SearchTimecards возвращает смены точки, начавшиеся не раньше start и закончившиеся не позже end.
func (c *Client) SearchTimecards(ctx context.Context, locationID string, start, end time.Time) ([]Timecard, error) {
	var out []Timecard
	cursor := ""
	for {
		req := searchTimecardsRequest{
			Query: timecardQuery{
				Filter: timecardFilter{
					LocationIDs: []string{locationID},
					Start:       &timeRange{StartAt: formatTime(start)},
					End:         &timeRange{EndAt: formatTime(end)},
				},
			},
			Limit:  pageLimit,
			Cursor: cursor,
		}

		var resp searchTimecardsResponse
		if err := c.do(ctx, http.MethodPost, "/v2/labor/timecards/search", req, &resp); err != nil {
			return nil, err
		}
		out = append(out, resp.Timecards...)

		if resp.Cursor == "" {
			return out, nil
		}
		cursor = resp.Cursor
	}
}

// ListPayments возвращает платежи точки, созданные в интервале [begin, end).
func (c *Client) ListPayments(ctx context.Context, locationID string, begin, end time.Time) ([]Payment, error) {
	var out []Payment
	cursor := ""
	for {
		q := url.Values{}
		q.Set("location_id", locationID)
		q.Set("begin_time", formatTime(begin))
		q.Set("end_time", formatTime(end))
		q.Set("limit", strconv.Itoa(pageLimit))
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var resp listPaymentsResponse
		if err := c.do(ctx, http.MethodGet, "/v2/payments?"+q.Encode(), nil, &resp); err != nil {
			return nil, err
		}
		out = append(out, resp.Payments...)

		if resp.Cursor == "" {
			return out, nil
		}
		cursor = resp.Cursor
	}
}

// GetOrder возвращает заказ по идентификатору.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var resp getOrderResponse
	if err := c.do(ctx, http.MethodGet, "/v2/orders/"+url.PathEscape(orderID), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, ErrNotFound
	}
	return resp.Order, nil
}

// SearchTeamMembers возвращает активных сотрудников указанных точек.
func (c *Client) SearchTeamMembers(ctx context.Context, locationIDs []string) ([]TeamMember, error) {
	var out []TeamMember
	cursor := ""
	for {
		req := searchTeamMembersRequest{
			Query: teamMemberQuery{
				Filter: teamMemberFilter{LocationIDs: locationIDs, Status: "ACTIVE"},
			},
			Limit:  pageLimit,
			Cursor: cursor,
		}

		var resp searchTeamMembersResponse
		if err := c.do(ctx, http.MethodPost, "/v2/team-members/search", req, &resp); err != nil {
			return nil, err
		}
		out = append(out, resp.TeamMembers...)

		if resp.Cursor == "" {
			return out, nil
		}
		cursor = resp.Cursor
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("square client not configured")
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Square-Version", c.version)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				apiErr.RetryAfter = time.Duration(seconds) * time.Second
			}
		}
		var errResp errorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errResp); decodeErr == nil {
			apiErr.Errors = errResp.Errors
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
