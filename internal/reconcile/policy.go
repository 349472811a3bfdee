// pattern: Functional Core

package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Resolver answers requests. Hosts implement it with prompts, terminals or
// network peers; Policy answers without asking anyone.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (Choice, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, req Request) (Choice, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, req Request) (Choice, error) {
	return f(ctx, req)
}

// Drive answers every request of res synchronously with r. It stops at the
// first resolver error, invalid choice or context cancellation.
func Drive(ctx context.Context, res *Resolution, r Resolver) error {
	for {
		req, ok := res.Next()
		if !ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		choice, err := r.Resolve(ctx, req)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", req.Set, err)
		}
		if err := res.Answer(choice); err != nil {
			return err
		}
	}
}

// Policy is a fixed bulk choice per set. An unset set is skipped. Item
// requests, which a Policy never causes, get their default.
type Policy map[Set]Choice

// Resolve implements Resolver.
func (p Policy) Resolve(_ context.Context, req Request) (Choice, error) {
	if !req.Bulk {
		return req.Default, nil
	}
	if c, ok := p[req.Set]; ok {
		return c, nil
	}
	return Skip, nil
}

// Set validates and stores the bulk choice for one set. Review-each is
// rejected because it needs someone to answer the item requests.
func (p Policy) Set(set Set, c Choice) error {
	if c == ReviewEach {
		return fmt.Errorf("%s: %s needs an interactive resolver", set, ReviewEach)
	}
	opts := bulkOptions[set]
	if opts == nil {
		return fmt.Errorf("unknown result set %q", set)
	}
	for _, o := range opts {
		if o == c {
			p[set] = c
			return nil
		}
	}
	return fmt.Errorf("%w: %q for %s", ErrInvalidChoice, c, set)
}

// Mutates reports whether the policy can change the registry.
func (p Policy) Mutates() bool {
	for _, c := range p {
		if c != Skip && c != KeepAll && c != KeepAllNames {
			return true
		}
	}
	return false
}

// String renders the policy in ParsePolicy syntax, sets in resolution order.
func (p Policy) String() string {
	parts := make([]string, 0, len(p))
	for _, set := range Sets {
		if c, ok := p[set]; ok {
			parts = append(parts, string(set)+"="+string(c))
		}
	}
	return strings.Join(parts, ",")
}

// ParsePolicy reads "set=choice" pairs separated by commas, for example
// "orphaned=delete-all,unregistered=register-all". An empty string is the
// all-skip policy.
func ParsePolicy(s string) (Policy, error) {
	p := Policy{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("policy entry %q: expected set=choice", part)
		}
		set, err := ParseSet(strings.TrimSpace(key))
		if err != nil {
			return nil, err
		}
		if err := p.Set(set, Choice(strings.TrimSpace(value))); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// PolicyFromMap builds a policy from config-style set -> choice pairs.
func PolicyFromMap(m map[string]string) (Policy, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p := Policy{}
	for _, k := range keys {
		set, err := ParseSet(k)
		if err != nil {
			return nil, err
		}
		if err := p.Set(set, Choice(m[k])); err != nil {
			return nil, err
		}
	}
	return p, nil
}
