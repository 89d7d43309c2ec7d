// Package client provides the HTTP client for the remote negotiation API.
package client

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

	"paylesscars/internal/negotiation/domain"
	"paylesscars/internal/negotiation/ports"
	"paylesscars/internal/negotiation/transport"
	"paylesscars/platform/apperr"
	"paylesscars/platform/config"
	"paylesscars/platform/logger"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

const basePath = "/api/v1/negotiations"

// Client implements ports.NegotiationAPI over JSON/HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
	log        *logger.Logger
}

var _ ports.NegotiationAPI = (*Client)(nil)

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client, e.g. with an httptest one.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken overrides the bearer token from config.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the API at cfg.GetAPIBaseURL().
func New(cfg config.ClientConfig, log *logger.Logger, opts ...Option) *Client {
	limit := rate.Limit(cfg.GetAPIRatePerSecond())
	if limit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.GetAPIBurst()
	if burst < 1 {
		burst = 1
	}
	if log == nil {
		log = logger.Discard()
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.GetAPITimeout()},
		baseURL:    strings.TrimRight(cfg.GetAPIBaseURL(), "/"),
		token:      cfg.GetAPIToken(),
		limiter:    rate.NewLimiter(limit, burst),
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) List(ctx context.Context, query ports.ListQuery) (ports.Page, error) {
	params := url.Values{}
	if query.Filter.Status != nil {
		params.Set("status", query.Filter.Status.String())
	}
	if query.Filter.Party != nil {
		params.Set("party", query.Filter.Party.String())
	}
	if query.Page > 0 {
		params.Set("page", strconv.Itoa(query.Page))
	}
	if query.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(query.PageSize))
	}

	path := basePath
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var resp transport.ListNegotiationsResponse
	if err := c.do(ctx, "List", uuid.Nil, http.MethodGet, path, nil, &resp); err != nil {
		return ports.Page{}, err
	}

	items := make([]domain.Negotiation, 0, len(resp.Items))
	for _, item := range resp.Items {
		n, err := transport.FromNegotiationResponse(item)
		if err != nil {
			return ports.Page{}, decodeFailure("List", item.ID, err)
		}
		items = append(items, n)
	}

	return ports.Page{Items: items, Page: resp.Page, PageSize: resp.PageSize, Total: resp.Total}, nil
}

func (c *Client) Get(ctx context.Context, id uuid.UUID) (domain.Negotiation, error) {
	return c.negotiation(ctx, "Get", id, http.MethodGet, c.itemPath(id, ""), nil)
}

func (c *Client) Create(ctx context.Context, input ports.CreateInput) (domain.Negotiation, error) {
	body := transport.CreateNegotiationRequest{
		VehicleID: input.VehicleID,
		Amount:    input.Amount.Amount,
		Currency:  currencyCode(input.Amount),
		Message:   input.Message,
	}
	return c.negotiation(ctx, "Create", uuid.Nil, http.MethodPost, basePath, body)
}

func (c *Client) SubmitOffer(ctx context.Context, id uuid.UUID, input ports.OfferInput) (domain.Negotiation, error) {
	body := transport.SubmitOfferRequest{
		Amount:   input.Amount.Amount,
		Currency: currencyCode(input.Amount),
		Message:  input.Message,
	}
	return c.negotiation(ctx, "SubmitOffer", id, http.MethodPost, c.itemPath(id, "offers"), body)
}

func (c *Client) Accept(ctx context.Context, id uuid.UUID) (domain.Negotiation, error) {
	return c.negotiation(ctx, "Accept", id, http.MethodPost, c.itemPath(id, "accept"), struct{}{})
}

func (c *Client) Reject(ctx context.Context, id uuid.UUID, reason *string) (domain.Negotiation, error) {
	return c.negotiation(ctx, "Reject", id, http.MethodPost, c.itemPath(id, "reject"), transport.RejectRequest{Reason: reason})
}

func (c *Client) Cancel(ctx context.Context, id uuid.UUID) (domain.Negotiation, error) {
	return c.negotiation(ctx, "Cancel", id, http.MethodPost, c.itemPath(id, "cancel"), struct{}{})
}

func (c *Client) itemPath(id uuid.UUID, action string) string {
	path := basePath + "/" + url.PathEscape(id.String())
	if action != "" {
		path += "/" + action
	}
	return path
}

func (c *Client) negotiation(ctx context.Context, op string, id uuid.UUID, method, path string, body any) (domain.Negotiation, error) {
	var resp transport.NegotiationResponse
	if err := c.do(ctx, op, id, method, path, body, &resp); err != nil {
		return domain.Negotiation{}, err
	}

	n, err := transport.FromNegotiationResponse(resp)
	if err != nil {
		return domain.Negotiation{}, decodeFailure(op, id, err)
	}
	return n, nil
}

func (c *Client) do(ctx context.Context, op string, id uuid.UUID, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "client rate limit wait aborted", err).WithOp(op)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperr.Wrap(apperr.KindValidation, "encode request", err).WithOp(op)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "create request", err).WithOp(op)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.RemoteCallFailed(op, idString(id), 0, err)
		return apperr.Wrap(apperr.KindUnavailable, "negotiation api unreachable", err).WithOp(op)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return decodeFailure(op, id, err)
		}
		return nil
	}

	remoteErr := responseError(op, resp)
	c.log.RemoteCallFailed(op, idString(id), resp.StatusCode, remoteErr)
	return remoteErr
}

// responseError turns a non-2xx response into an apperr.Error whose kind
// follows the status code and which wraps the domain sentinel named by the
// server, when there is one.
func responseError(op string, resp *http.Response) *apperr.Error {
	kind := apperr.FromHTTPStatus(resp.StatusCode)

	var payload transport.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error == "" {
		payload.Error = http.StatusText(resp.StatusCode)
	}

	var cause error = fmt.Errorf("status %d", resp.StatusCode)
	var detail domain.ErrorDetail
	if len(payload.Details) > 0 && json.Unmarshal(payload.Details, &detail) == nil {
		if sentinel := domain.SentinelForCode(detail.Code); sentinel != nil {
			cause = sentinel
		}
	}

	return apperr.Wrap(kind, payload.Error, cause).WithOp(op).WithDetails(StatusDetail{Status: resp.StatusCode})
}

// StatusDetail records the HTTP status behind a remote error.
type StatusDetail struct {
	Status int
}

// StatusOf returns the HTTP status behind err, or 0 when err did not come
// from a response.
func StatusOf(err error) int {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		if detail, ok := appErr.Details.(StatusDetail); ok {
			return detail.Status
		}
	}
	return 0
}

func decodeFailure(op string, id uuid.UUID, err error) *apperr.Error {
	return apperr.Wrap(apperr.KindInternal, "decode negotiation "+idString(id), err).WithOp(op)
}

func idString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

// currencyCode leaves the currency to the server when the caller named none.
func currencyCode(m domain.Money) *string {
	if !m.HasCurrency() {
		return nil
	}
	return lo.ToPtr(m.Currency.String())
}
