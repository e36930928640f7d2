package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/skillmesh/skillmesh-sdk-go/pkg/model"
	"github.com/skillmesh/skillmesh-sdk-go/pkg/pricing"
)

// ErrorMode controls how Register surfaces per-skill failures.
type ErrorMode string

const (
	// ErrorModeThrow aborts the whole operation on the first hard failure.
	ErrorModeThrow ErrorMode = "throw"
	// ErrorModeWarn logs failures and continues, returning partial results.
	ErrorModeWarn ErrorMode = "warn"
	// ErrorModeSilent suppresses logging but still returns partial results.
	ErrorModeSilent ErrorMode = "silent"
)

// DefaultConcurrency bounds in-flight registration requests.
const DefaultConcurrency = 5

// RegisterOptions configure a batch registration.
type RegisterOptions struct {
	// Endpoint is the creator's serve base URL; each skill registers as
	// Endpoint + "/" + name.
	Endpoint string
	// PaymentAddress is the creator's receiving address.
	PaymentAddress string
	// Groups apply to every skill lacking per-skill groups.
	Groups []string
	// RequireGroups makes group membership mandatory, validated before any
	// network call.
	RequireGroups bool
	// Concurrency bounds parallel registrations; DefaultConcurrency when 0.
	Concurrency int
	// OnError selects the error mode; ErrorModeWarn when empty.
	OnError ErrorMode
}

// registerPayload is the POST /skills body.
type registerPayload struct {
	Name           string         `json:"name"`
	Endpoint       string         `json:"endpoint"`
	Price          string         `json:"price"`
	PaymentAddress string         `json:"paymentAddress"`
	Description    string         `json:"description,omitempty"`
	InputSchema    map[string]any `json:"inputSchema,omitempty"`
	OutputSchema   map[string]any `json:"outputSchema,omitempty"`
	Groups         []string       `json:"groups,omitempty"`
}

// registerResponse is the registry's answer to a skill registration.
type registerResponse struct {
	Slug  string `json:"slug"`
	Error string `json:"error,omitempty"`
}

// Register registers every skill in the catalog with the marketplace. Skills
// run concurrently up to the configured limit; each skill gets up to 3
// attempts with exponential backoff, retrying 429 and 5xx but no other 4xx.
//
// The returned slice always carries one result per skill, positioned at the
// index of its skill in sorted name order, regardless of completion order.
// In ErrorModeThrow the first hard failure aborts the whole operation.
func (c *Client) Register(ctx context.Context, skills model.Skills, opts RegisterOptions) ([]model.RegistrationResult, error) {
	mode := opts.OnError
	if mode == "" {
		mode = ErrorModeWarn
	}

	names := skills.Names()
	results := make([]model.RegistrationResult, len(names))

	// Group validation happens for the whole batch before any network call.
	if opts.RequireGroups {
		var missing []string
		for _, name := range names {
			if len(skills[name].Options.Groups) == 0 && len(opts.Groups) == 0 {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			err := fmt.Errorf("skills without a group: %s (registry requires at least one per-skill or global group)", strings.Join(missing, ", "))
			if mode == ErrorModeThrow {
				return nil, err
			}
			if mode == ErrorModeWarn {
				zap.L().Warn("group validation failed", zap.Strings("skills", missing))
			}
			for i, name := range names {
				results[i] = model.RegistrationResult{Name: name, Err: err}
			}
			return results, nil
		}
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency > len(names) {
		concurrency = len(names)
	}

	rc := c.newRegisterClient()

	// Workers pull the next input index from a shared counter; results land
	// at the index of their skill, so completion order is irrelevant.
	var next atomic.Int64
	var wg sync.WaitGroup
	cancelCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var abortMu sync.Mutex
	var abortErr error
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1)) - 1
				if i >= len(names) {
					return
				}
				if cancelCtx.Err() != nil {
					results[i] = model.RegistrationResult{Name: names[i], Err: cancelCtx.Err()}
					continue
				}

				result := c.registerOne(cancelCtx, rc, skills[names[i]], opts)
				results[i] = result

				if !result.Success {
					switch mode {
					case ErrorModeThrow:
						abortMu.Lock()
						if abortErr == nil {
							abortErr = fmt.Errorf("register skill %q: %w", result.Name, result.Err)
						}
						abortMu.Unlock()
						cancel()
						return
					case ErrorModeWarn:
						zap.L().Warn("skill registration failed",
							zap.String("skill", result.Name),
							zap.Error(result.Err))
					}
				}
			}
		}()
	}
	wg.Wait()

	if abortErr != nil {
		return nil, abortErr
	}
	return results, nil
}

// registerOne performs the retried POST /skills call for a single skill.
func (c *Client) registerOne(ctx context.Context, rc *retryablehttp.Client, skill *model.Skill, opts RegisterOptions) model.RegistrationResult {
	groups := skill.Options.Groups
	if len(groups) == 0 {
		groups = opts.Groups
	}

	payload := registerPayload{
		Name:           skill.Name,
		Endpoint:       strings.TrimSuffix(opts.Endpoint, "/") + "/" + skill.Name,
		Price:          skill.Parsed.FormatX402(),
		PaymentAddress: opts.PaymentAddress,
		Description:    skill.Options.Description,
		InputSchema:    skill.Options.InputSchema,
		OutputSchema:   skill.Options.OutputSchema,
		Groups:         groups,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return model.RegistrationResult{Name: skill.Name, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/skills", bytes.NewReader(body))
	if err != nil {
		return model.RegistrationResult{Name: skill.Name, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.creds.APIKey != "" {
		req.Header.Set("X-Api-Key", c.creds.APIKey)
	}

	resp, err := rc.Do(req)
	if err != nil {
		// Retries exhausted or a non-retryable failure.
		return model.RegistrationResult{Name: skill.Name, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var decoded registerResponse
	_ = json.Unmarshal(raw, &decoded)

	switch resp.StatusCode {
	case http.StatusCreated:
		return model.RegistrationResult{Name: skill.Name, Success: true, Slug: decoded.Slug}
	case http.StatusOK:
		return model.RegistrationResult{Name: skill.Name, Success: true, Slug: decoded.Slug, Updated: true}
	default:
		msg := decoded.Error
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return model.RegistrationResult{
			Name: skill.Name,
			Err:  fmt.Errorf("registry returned %s: %s", statusText(resp.StatusCode), msg),
		}
	}
}

// SkillUpdate is the PATCH /skills/:slug body. Nil fields are omitted.
type SkillUpdate struct {
	Description  *string        `json:"description,omitempty"`
	Price        *string        `json:"price,omitempty"`
	Groups       []string       `json:"groups,omitempty"`
	InputSchema  map[string]any `json:"inputSchema,omitempty"`
	OutputSchema map[string]any `json:"outputSchema,omitempty"`
	IsActive     *bool          `json:"isActive,omitempty"`
}

// UpdateSkill patches a registered skill. A price change is re-validated
// through the price parser before transmission. Single attempt, no retry.
func (c *Client) UpdateSkill(ctx context.Context, slug string, update SkillUpdate) error {
	if update.Price != nil {
		parsed, err := pricing.Parse(*update.Price)
		if err != nil {
			return fmt.Errorf("update skill %q: %w", slug, err)
		}
		normalized := parsed.FormatX402()
		update.Price = &normalized
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(update).
		Patch("/skills/" + slug)
	if err != nil {
		return fmt.Errorf("update skill %q: %w", slug, err)
	}
	if resp.IsError() {
		return readError("update skill "+slug, resp)
	}
	return nil
}
