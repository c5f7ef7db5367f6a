package graph

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/adpulse/go-expiry-service/internal/domain"
	"github.com/adpulse/go-expiry-service/internal/metrics"
	apperrors "github.com/adpulse/go-expiry-service/internal/shared/errors"
	"github.com/adpulse/go-expiry-service/internal/shared/logger"
)

const (
	defaultBaseURL  = "https://graph.microsoft.com/v1.0"
	defaultLoginURL = "https://login.microsoftonline.com"

	// requestTimeout bounds every Graph and token call.
	requestTimeout = 15 * time.Second

	// maxThrottleRetries bounds how often a single request is re-issued
	// after a 429 before the throttling is surfaced to the caller.
	maxThrottleRetries = 5

	// defaultRetryAfter is used when a 429 carries no usable Retry-After.
	defaultRetryAfter = 2 * time.Second

	userSelectFields = "id,displayName,userPrincipalName,accountEnabled,passwordPolicies,lastPasswordChangeDateTime,createdDateTime,onPremisesSyncEnabled"
)

// Client is a Microsoft Graph REST client using the client-credentials
// grant. It caches tokens, follows @odata.nextLink pagination transparently,
// and honors Graph throttling (429 + Retry-After) internally.
type Client struct {
	cfg     domain.GraphConfig
	baseURL string
	source  oauth2.TokenSource
	http    *http.Client
	log     *logger.Logger
	sleep   func(time.Duration)
}

// Option customizes a Client; used by tests to point at a stub server.
type Option func(*options)

type options struct {
	baseURL  string
	loginURL string
	sleep    func(time.Duration)
}

// WithBaseURL overrides the Graph API endpoint.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithLoginURL overrides the token endpoint host.
func WithLoginURL(u string) Option {
	return func(o *options) { o.loginURL = u }
}

// WithSleep overrides the throttling back-off sleeper.
func WithSleep(fn func(time.Duration)) Option {
	return func(o *options) { o.sleep = fn }
}

// NewClient creates a Graph client for one tenant's credentials.
func NewClient(cfg domain.GraphConfig, log *logger.Logger, opts ...Option) *Client {
	o := options{
		baseURL:  defaultBaseURL,
		loginURL: defaultLoginURL,
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(&o)
	}

	httpClient := &http.Client{Timeout: requestTimeout}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", o.loginURL, cfg.TenantID),
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)

	return &Client{
		cfg:     cfg,
		baseURL: o.baseURL,
		source:  cc.TokenSource(tokenCtx),
		http:    httpClient,
		log:     log,
		sleep:   o.sleep,
	}
}

// Configured reports whether the client has a complete credential set.
func (c *Client) Configured() bool {
	return c.cfg.TenantID != "" && c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

// ExpiryDays returns the configured expiry window, defaulting to 90 days.
func (c *Client) ExpiryDays() int {
	if c.cfg.DefaultExpiryDays > 0 {
		return c.cfg.DefaultExpiryDays
	}
	return 90
}

// Token returns a bearer token, exchanging client credentials on first use
// and whenever the cached token is near expiry. Provider rejections surface
// the provider's own error description.
func (c *Client) Token(ctx context.Context) (string, error) {
	if !c.Configured() {
		return "", apperrors.NewConfigMissingError("tenant id, client id and client secret must be provided via UI or environment")
	}

	tok, err := c.source.Token()
	if err != nil {
		var rErr *oauth2.RetrieveError
		if stderrors.As(err, &rErr) {
			desc := rErr.ErrorDescription
			if desc == "" {
				desc = strings.TrimSpace(string(rErr.Body))
			}
			c.log.Error("Graph token exchange rejected", "error", desc)
			return "", apperrors.NewAuthFailureError(fmt.Sprintf("Microsoft auth error: %s", desc), err)
		}
		c.log.Error("Graph token exchange failed", "error", err)
		return "", apperrors.NewAuthFailureError("Microsoft auth error", err)
	}
	return tok.AccessToken, nil
}

// listResponse is the envelope Graph wraps collections in.
type listResponse struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"@odata.nextLink"`
}

// get issues one authenticated GET, transparently re-issuing after a 429
// for as long as Graph keeps asking us to back off (bounded).
func (c *Client) get(ctx context.Context, rawURL string, query url.Values) (*listResponse, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	if len(query) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + query.Encode()
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build graph request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.http.Do(req)
		if err != nil {
			metrics.GraphRequests.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("graph request failed: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			metrics.GraphThrottleEvents.Inc()
			if attempt >= maxThrottleRetries {
				return nil, &apperrors.AppError{Code: apperrors.CodeRateLimited, Message: "Microsoft Graph throttling persisted beyond retry budget"}
			}
			delay := retryAfter(resp.Header.Get("Retry-After"))
			c.log.Warn("Microsoft Graph rate limit hit, backing off", "retry_after", delay, "url", rawURL)
			c.sleep(delay)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("failed to read graph response: %w", readErr)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			metrics.GraphRequests.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("graph returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		metrics.GraphRequests.WithLabelValues("success").Inc()
		var list listResponse
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("failed to decode graph response: %w", err)
		}
		return &list, nil
	}
}

func retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

// fetchAll aggregates a paginated collection, following continuation links
// until the server stops returning them.
func (c *Client) fetchAll(ctx context.Context, path string, query url.Values) ([]json.RawMessage, error) {
	var results []json.RawMessage
	next := c.baseURL + path
	first := true

	for next != "" {
		q := url.Values{}
		if first {
			q = query
			first = false
		}
		page, err := c.get(ctx, next, q)
		if err != nil {
			return nil, err
		}
		results = append(results, page.Value...)
		next = page.NextLink
		if next != "" {
			c.log.Info("Following directory pagination", "records", len(results))
		}
	}
	return results, nil
}

// ListUsers returns every directory principal with the attributes the
// expiry computation needs.
func (c *Client) ListUsers(ctx context.Context) ([]domain.DirectoryUser, error) {
	query := url.Values{}
	query.Set("$select", userSelectFields)
	query.Set("$top", "999")

	raw, err := c.fetchAll(ctx, "/users", query)
	if err != nil {
		return nil, err
	}
	return decodeUsers(raw)
}

// FindGroupByName resolves a group by exact display name.
func (c *Client) FindGroupByName(ctx context.Context, name string) (domain.Group, error) {
	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("displayName eq '%s'", strings.ReplaceAll(name, "'", "''")))
	query.Set("$select", "id,displayName")

	page, err := c.get(ctx, c.baseURL+"/groups", query)
	if err != nil {
		return domain.Group{}, err
	}
	if len(page.Value) == 0 {
		return domain.Group{}, apperrors.NewGroupNotFoundError(name)
	}

	var g domain.Group
	if err := json.Unmarshal(page.Value[0], &g); err != nil {
		return domain.Group{}, fmt.Errorf("failed to decode group: %w", err)
	}
	return g, nil
}

// ListTransitiveMembers returns the members of a group including indirect
// membership through nested groups.
func (c *Client) ListTransitiveMembers(ctx context.Context, groupID string) ([]domain.DirectoryUser, error) {
	query := url.Values{}
	query.Set("$select", userSelectFields)

	raw, err := c.fetchAll(ctx, fmt.Sprintf("/groups/%s/transitiveMembers", groupID), query)
	if err != nil {
		return nil, err
	}
	return decodeUsers(raw)
}

// CheckUserScope probes whether the credential may read users.
func (c *Client) CheckUserScope(ctx context.Context) error {
	query := url.Values{}
	query.Set("$top", "1")
	_, err := c.get(ctx, c.baseURL+"/users", query)
	return err
}

// CheckGroupScope probes whether the credential may read groups.
func (c *Client) CheckGroupScope(ctx context.Context) error {
	query := url.Values{}
	query.Set("$top", "1")
	_, err := c.get(ctx, c.baseURL+"/groups", query)
	return err
}

func decodeUsers(raw []json.RawMessage) ([]domain.DirectoryUser, error) {
	users := make([]domain.DirectoryUser, 0, len(raw))
	for _, r := range raw {
		var u domain.DirectoryUser
		if err := json.Unmarshal(r, &u); err != nil {
			return nil, fmt.Errorf("failed to decode directory user: %w", err)
		}
		// transitiveMembers can include nested groups and devices.
		if u.UserPrincipalName == "" {
			continue
		}
		users = append(users, u)
	}
	return users, nil
}
