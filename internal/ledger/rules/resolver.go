package rules

import (
	"context"
	"sync"
)

// Loader fetches the active rule set, typically from the repository.
type Loader interface {
	ListActive(ctx context.Context) ([]Rule, error)
}

// Resolver answers rule lookups against an immutable in-memory snapshot of
// the rule table. Sign conditions are evaluated here against the already
// typed QuantitySign, never parsed from text at posting time. Resolution is
// deterministic: the same (type, sign) pair always yields the same rule
// until Reload swaps the snapshot.
type Resolver struct {
	loader Loader

	mu    sync.RWMutex
	rules []Rule
}

// NewResolver loads the initial snapshot from loader.
func NewResolver(ctx context.Context, loader Loader) (*Resolver, error) {
	r := &Resolver{loader: loader}
	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// NewStaticResolver wraps a fixed rule set; used by tests and seeding.
func NewStaticResolver(rules []Rule) *Resolver {
	return &Resolver{rules: rules}
}

// Reload replaces the snapshot with the currently active rule set.
func (r *Resolver) Reload(ctx context.Context) error {
	if r.loader == nil {
		return nil
	}
	rules, err := r.loader.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, rule := range rules {
		if !rule.Sign.Valid() {
			return ErrInvalidSign
		}
	}
	r.mu.Lock()
	r.rules = rules
	r.mu.Unlock()
	return nil
}

// Resolve returns the single active rule matching the transaction type and
// quantity sign. Exactly one rule must match: absence is ErrRuleNotFound,
// more than one is ErrAmbiguousRule. Both are fatal to the posting attempt.
func (r *Resolver) Resolve(transactionType string, sign QuantitySign) (Rule, error) {
	if sign != SignPositive && sign != SignNegative {
		return Rule{}, ErrInvalidSign
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var match Rule
	found := false
	for _, rule := range r.rules {
		if !rule.IsActive || rule.TransactionType != transactionType {
			continue
		}
		if rule.Sign != SignAny && rule.Sign != sign {
			continue
		}
		if found {
			return Rule{}, ErrAmbiguousRule
		}
		match = rule
		found = true
	}
	if !found {
		return Rule{}, ErrRuleNotFound
	}
	return match, nil
}
