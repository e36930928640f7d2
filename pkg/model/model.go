// Package model defines the data structures shared across the SDK: skill
// definitions owned by a creator process, the registry's skill/creator/review
// documents, and the structured results of batch registration and
// authentication flows.
package model

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/skillmesh/skillmesh-sdk-go/pkg/pricing"
)

// Timeout bounds for a skill handler, advertised to the payment gate as
// maxTimeoutSeconds. The timeout is advisory to the facilitator; the routing
// shell does not enforce an execution deadline.
const (
	DefaultTimeoutMs = 30000
	MaxTimeoutMs     = 300000
)

var (
	ErrBadTimeout = fmt.Errorf("timeoutMs must be in (0, %d]", MaxTimeoutMs)
	ErrEmptyName  = errors.New("skill name must not be empty")
	ErrEmptyGroup = errors.New("skill groups must be non-empty strings")
	ErrNilHandler = errors.New("skill handler must not be nil")
	ErrDupSkill   = errors.New("skill already defined")
)

// Handler is a skill's business logic. Input is the decoded JSON request
// body; the returned value is serialized into the response envelope.
type Handler func(ctx context.Context, input map[string]any) (any, error)

// SkillOptions are the creator-supplied options for a skill.
type SkillOptions struct {
	// Price is the raw human-entered price string, e.g. "$0.001".
	Price       string         `json:"price"`
	Description string         `json:"description,omitempty"`
	// TimeoutMs defaults to DefaultTimeoutMs when zero.
	TimeoutMs    int            `json:"timeoutMs,omitempty"`
	InputSchema  map[string]any `json:"inputSchema,omitempty"`
	OutputSchema map[string]any `json:"outputSchema,omitempty"`
	Groups       []string       `json:"groups,omitempty"`
}

// Skill is a priced, callable unit of functionality. Construct with NewSkill;
// a Skill is immutable for the lifetime of the server once defined.
type Skill struct {
	Name    string
	Options SkillOptions
	Handler Handler
	// Parsed is the validated price, computed once at definition time.
	Parsed pricing.Price
}

// NewSkill validates the options and builds an immutable skill definition.
// The price is parsed eagerly so that a bad price string fails at definition
// time, never at serve time.
func NewSkill(name string, opts SkillOptions, handler Handler) (*Skill, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if handler == nil {
		return nil, fmt.Errorf("skill %q: %w", name, ErrNilHandler)
	}
	if opts.TimeoutMs == 0 {
		opts.TimeoutMs = DefaultTimeoutMs
	}
	if opts.TimeoutMs < 0 || opts.TimeoutMs > MaxTimeoutMs {
		return nil, fmt.Errorf("skill %q: %w", name, ErrBadTimeout)
	}
	for _, g := range opts.Groups {
		if g == "" {
			return nil, fmt.Errorf("skill %q: %w", name, ErrEmptyGroup)
		}
	}

	parsed, err := pricing.Parse(opts.Price)
	if err != nil {
		return nil, fmt.Errorf("skill %q: %w", name, err)
	}

	return &Skill{Name: name, Options: opts, Handler: handler, Parsed: parsed}, nil
}

// Skills maps unique skill names to their definitions. It drives both route
// registration and registry payload construction. Insertion order is
// irrelevant; Names returns a stable order.
type Skills map[string]*Skill

// Add defines a skill, rejecting duplicates.
func (s Skills) Add(skill *Skill) error {
	if _, exists := s[skill.Name]; exists {
		return fmt.Errorf("%q: %w", skill.Name, ErrDupSkill)
	}
	s[skill.Name] = skill
	return nil
}

// Names returns the skill names in sorted order.
func (s Skills) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegistrationResult reports the outcome of registering one skill with the
// marketplace. Produced fresh on each Register call, one per input skill,
// positioned at the index of its skill regardless of completion order.
type RegistrationResult struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Slug    string `json:"slug,omitempty"`
	// Updated is true when the registry reported an update of an existing
	// skill rather than a creation.
	Updated bool  `json:"updated,omitempty"`
	Err     error `json:"-"`
}

// AuthResult is the outcome of the challenge-response authentication flow.
// Token is an opaque bearer string; ExpiresIn is advisory, the server remains
// the source of truth.
type AuthResult struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"`
}

// RefreshResult is the outcome of a token refresh.
type RefreshResult struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn,omitempty"`
}

// RegistrySkill is the marketplace's view of a skill.
type RegistrySkill struct {
	Slug           string         `json:"slug"`
	Name           string         `json:"name"`
	Endpoint       string         `json:"endpoint"`
	Price          string         `json:"price"`
	PaymentAddress string         `json:"paymentAddress"`
	Description    string         `json:"description,omitempty"`
	InputSchema    map[string]any `json:"inputSchema,omitempty"`
	OutputSchema   map[string]any `json:"outputSchema,omitempty"`
	Groups         []string       `json:"groups,omitempty"`
	Creator        string         `json:"creator,omitempty"`
	Verified       bool           `json:"verified,omitempty"`
	IsActive       bool           `json:"isActive,omitempty"`
	CreatedAt      time.Time      `json:"createdAt,omitempty"`
}

// Creator is the marketplace's view of a creator account.
type Creator struct {
	Address    string    `json:"address"`
	Name       string    `json:"name,omitempty"`
	SkillCount int       `json:"skillCount,omitempty"`
	Verified   bool      `json:"verified,omitempty"`
	JoinedAt   time.Time `json:"joinedAt,omitempty"`
}

// Review is a consumer review of a skill.
type Review struct {
	SkillSlug string    `json:"skillSlug"`
	Reviewer  string    `json:"reviewer,omitempty"`
	Score     int       `json:"score"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Group is a marketplace skill group.
type Group struct {
	Slug    string `json:"slug"`
	Name    string `json:"name"`
	Creator string `json:"creator,omitempty"`
}

// UsageEvent is the fire-and-forget analytics record reported after a
// settled call.
type UsageEvent struct {
	EventID         string `json:"eventId,omitempty"`
	SkillSlug       string `json:"skillSlug"`
	ConsumerAddress string `json:"consumerAddress,omitempty"`
	PaymentTxHash   string `json:"paymentTxHash,omitempty"`
	Amount          string `json:"amount"`
}
