package ratelimit

import (
	"errors"
	"fmt"
	"time"

	"github.com/Proton-105/pairpicker-bot/pkg/config"
)

// ErrInvalidRule is returned for a rule without a positive limit and window.
var ErrInvalidRule = errors.New("invalid rate limit rule")

// Rule allows Limit requests per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

func (r Rule) validate() error {
	if r.Limit <= 0 || r.Window <= 0 {
		return fmt.Errorf("%w: limit=%d window=%s", ErrInvalidRule, r.Limit, r.Window)
	}
	return nil
}

// Rules encapsulates configured rate limits and helper methods.
type Rules struct {
	perConversation Rule
	whitelist       map[int64]struct{}
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) (*Rules, error) {
	rule := Rule{Limit: cfg.PerConversation.Limit, Window: cfg.PerConversation.Window}
	if err := rule.validate(); err != nil {
		return nil, err
	}

	whitelist := make(map[int64]struct{}, len(cfg.Whitelist))
	for _, id := range cfg.Whitelist {
		whitelist[id] = struct{}{}
	}

	return &Rules{perConversation: rule, whitelist: whitelist}, nil
}

// IsWhitelisted returns true if the conversation bypasses rate limits.
func (r *Rules) IsWhitelisted(id int64) bool {
	_, ok := r.whitelist[id]
	return ok
}

// PerConversation returns the rule applied to every conversation.
func (r *Rules) PerConversation() Rule {
	return r.perConversation
}
