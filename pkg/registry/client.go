// Package registry is the client for the remote skill marketplace: skill
// registration with bounded retry and per-skill result reporting, catalog
// reads (search, skills, creators, reviews, groups), and fire-and-forget
// usage analytics.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/skillmesh/skillmesh-sdk-go/pkg/config"
	"github.com/skillmesh/skillmesh-sdk-go/pkg/model"
)

// ErrUnauthorized is returned for 401 responses on authenticated endpoints.
var ErrUnauthorized = errors.New("registry rejected the credentials (401)")

// ErrNotFound is returned for 404 responses on read endpoints.
var ErrNotFound = errors.New("not found in registry")

// Credentials authenticate registry operations. APIKey covers creator write
// operations; Token is the bearer token from the challenge-response flow,
// required for review posting.
type Credentials struct {
	APIKey string
	Token  string
}

// Client talks to the marketplace REST API. Construct with NewClient; the
// zero value is not usable.
type Client struct {
	apiURL string
	creds  Credentials
	http   *resty.Client
	// registerWait is the base backoff delay for registration retries.
	// Overridable in tests.
	registerWait time.Duration
}

// NewClient builds a registry client for the given API root. Plain-http
// roots are rejected unless the host is loopback.
func NewClient(apiURL string, creds Credentials, timeout time.Duration) (*Client, error) {
	if err := config.RequireHTTPS(apiURL); err != nil {
		return nil, err
	}

	client := resty.New().
		SetBaseURL(apiURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if creds.APIKey != "" {
		client.SetHeader("X-Api-Key", creds.APIKey)
	}

	return &Client{
		apiURL:       apiURL,
		creds:        creds,
		http:         client,
		registerWait: time.Second,
	}, nil
}

// SetToken installs a bearer token obtained from authentication. Subsequent
// authenticated calls use it.
func (c *Client) SetToken(token string) {
	c.creds.Token = token
}

// Query filters a skill search. Zero fields are omitted.
type Query struct {
	Text     string
	Category string
	MinPrice string
	MaxPrice string
	Creator  string
	Verified bool
	Group    string
}

func (q Query) params() map[string]string {
	params := map[string]string{}
	if q.Text != "" {
		params["q"] = q.Text
	}
	if q.Category != "" {
		params["category"] = q.Category
	}
	if q.MinPrice != "" {
		params["minPrice"] = q.MinPrice
	}
	if q.MaxPrice != "" {
		params["maxPrice"] = q.MaxPrice
	}
	if q.Creator != "" {
		params["creator"] = q.Creator
	}
	if q.Verified {
		params["verified"] = "true"
	}
	if q.Group != "" {
		params["group"] = q.Group
	}
	return params
}

// Search queries the marketplace skill catalog.
func (c *Client) Search(ctx context.Context, q Query) ([]model.RegistrySkill, error) {
	var out []model.RegistrySkill
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(q.params()).
		SetResult(&out).
		Get("/skills")
	if err != nil {
		return nil, fmt.Errorf("search skills: %w", err)
	}
	if resp.IsError() {
		return nil, readError("search skills", resp)
	}
	return out, nil
}

// GetSkill fetches a single skill by slug.
func (c *Client) GetSkill(ctx context.Context, slug string) (*model.RegistrySkill, error) {
	var out model.RegistrySkill
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/skills/" + slug)
	if err != nil {
		return nil, fmt.Errorf("get skill %q: %w", slug, err)
	}
	if resp.IsError() {
		return nil, readError("get skill "+slug, resp)
	}
	return &out, nil
}

// GetCreator fetches a creator profile by wallet address.
func (c *Client) GetCreator(ctx context.Context, address string) (*model.Creator, error) {
	var out model.Creator
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/creators/" + address)
	if err != nil {
		return nil, fmt.Errorf("get creator %q: %w", address, err)
	}
	if resp.IsError() {
		return nil, readError("get creator "+address, resp)
	}
	return &out, nil
}

// GetReviews fetches reviews of a skill.
func (c *Client) GetReviews(ctx context.Context, slug string) ([]model.Review, error) {
	var out []model.Review
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/skills/" + slug + "/reviews")
	if err != nil {
		return nil, fmt.Errorf("get reviews for %q: %w", slug, err)
	}
	if resp.IsError() {
		return nil, readError("get reviews for "+slug, resp)
	}
	return out, nil
}

// PostReview submits a review. Requires a bearer token from the
// challenge-response authentication flow; unauthenticated calls get 401.
func (c *Client) PostReview(ctx context.Context, review model.Review) error {
	if c.creds.Token == "" {
		return ErrUnauthorized
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.creds.Token).
		SetBody(review).
		Post("/reviews")
	if err != nil {
		return fmt.Errorf("post review: %w", err)
	}
	if resp.IsError() {
		return readError("post review", resp)
	}
	return nil
}

// GetGroups lists skill groups, optionally filtered by creator.
func (c *Client) GetGroups(ctx context.Context, creator string) ([]model.Group, error) {
	req := c.http.R().SetContext(ctx)
	if creator != "" {
		req.SetQueryParam("creator", creator)
	}
	var out []model.Group
	resp, err := req.SetResult(&out).Get("/groups")
	if err != nil {
		return nil, fmt.Errorf("get groups: %w", err)
	}
	if resp.IsError() {
		return nil, readError("get groups", resp)
	}
	return out, nil
}

// GetGroup fetches a single group by slug.
func (c *Client) GetGroup(ctx context.Context, slug, creator string) (*model.Group, error) {
	req := c.http.R().SetContext(ctx)
	if creator != "" {
		req.SetQueryParam("creator", creator)
	}
	var out model.Group
	resp, err := req.SetResult(&out).Get("/groups/" + slug)
	if err != nil {
		return nil, fmt.Errorf("get group %q: %w", slug, err)
	}
	if resp.IsError() {
		return nil, readError("get group "+slug, resp)
	}
	return &out, nil
}

// ReportUsage sends a usage analytics event. It is fire-and-forget: the call
// returns immediately and failures are logged at debug level and dropped,
// never affecting the caller.
func (c *Client) ReportUsage(event model.UsageEvent) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(event).
			Post("/analytics/usage")
		if err != nil {
			zap.L().Debug("usage report dropped", zap.String("skill", event.SkillSlug), zap.Error(err))
			return
		}
		if resp.IsError() {
			zap.L().Debug("usage report rejected", zap.String("skill", event.SkillSlug), zap.String("status", resp.Status()))
		}
	}()
}

// readError maps an error response to a typed error where one exists,
// surfacing server-provided text otherwise.
func readError(op string, resp *resty.Response) error {
	switch resp.StatusCode() {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	default:
		return fmt.Errorf("%s: registry returned %s: %s", op, resp.Status(), resp.String())
	}
}

// retryableLogger adapts retryablehttp's log interface to zap.
type retryableLogger struct{}

func (retryableLogger) Printf(format string, args ...any) {
	zap.S().Debugf(format, args...)
}

// newRegisterClient builds the retrying HTTP client used for registration:
// up to 3 attempts with exponential backoff (base, 2x, 4x), retrying network
// errors, 5xx and 429, but no other 4xx.
func (c *Client) newRegisterClient() *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = c.registerWait
	rc.RetryWaitMax = 8 * c.registerWait
	rc.Logger = retryableLogger{}
	rc.Backoff = retryablehttp.DefaultBackoff
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, nil
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return true, nil
		}
		if resp.StatusCode >= 500 {
			return true, nil
		}
		return false, nil
	}
	return rc
}

// statusText is a tiny helper for error messages built from raw status codes.
func statusText(code int) string {
	return strconv.Itoa(code) + " " + http.StatusText(code)
}
