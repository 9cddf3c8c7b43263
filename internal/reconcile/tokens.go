package reconcile

import (
	"fmt"

	"github.com/google/uuid"
)

// Tokens supplies the opaque correlation strings the destination expects
// on every tax slot and cost slot.
type Tokens interface {
	// GSTRate returns the token for a tax rate (0, 3, 5, 12, 18 or 28).
	GSTRate(rate int) string

	// AdditionalCost returns the token for a cost category.
	AdditionalCost(category string) string
}

// MintedTokens generates a fresh "<tag>!G!<uuid>" token on every call.
type MintedTokens struct {
	GSTTag  string
	CostTag string
}

// DefaultTokens returns MintedTokens with the destination's standard tags.
func DefaultTokens() MintedTokens {
	return MintedTokens{GSTTag: "22", CostTag: "1"}
}

func (m MintedTokens) GSTRate(int) string {
	return Token(m.GSTTag)
}

func (m MintedTokens) AdditionalCost(string) string {
	return Token(m.CostTag)
}

// Token builds a single "<tag>!G!<uuid>" token.
func Token(tag string) string {
	return fmt.Sprintf("%s!G!%s", tag, uuid.NewString())
}

// FixedTokens pins tokens per rate and per category. Lookups that miss
// fall through to Fallback.
type FixedTokens struct {
	Rates      map[int]string
	Categories map[string]string
	Fallback   Tokens
}

func (f FixedTokens) GSTRate(rate int) string {
	if tok, ok := f.Rates[rate]; ok && tok != "" {
		return tok
	}
	if f.Fallback == nil {
		return ""
	}
	return f.Fallback.GSTRate(rate)
}

func (f FixedTokens) AdditionalCost(category string) string {
	if tok, ok := f.Categories[category]; ok && tok != "" {
		return tok
	}
	if f.Fallback == nil {
		return ""
	}
	return f.Fallback.AdditionalCost(category)
}
