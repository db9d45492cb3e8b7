// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lookup

import (
	"context"

	"github.com/pdiddy/termsource/internal/selector"
	"github.com/pdiddy/termsource/pkg/types"
)

// Sources is what the prompt composer receives for a term.
type Sources struct {
	LookupID       string                 `json:"lookup_id"`
	Sources        []types.SelectedSource `json:"sources"`
	ProviderErrors []string               `json:"provider_errors,omitempty"`
	Degraded       bool                   `json:"degraded"`
}

// Pipeline chains a lookup with source selection.
type Pipeline struct {
	Coordinator *Coordinator
	Selector    *selector.Selector
}

// Sources looks up req and selects the citations that fit tokenBudget
// and topK. Zero means the selector defaults.
func (p *Pipeline) Sources(ctx context.Context, req types.LookupRequest, tokenBudget, topK int) (Sources, error) {
	out, err := p.Coordinator.Lookup(ctx, req)
	if err != nil {
		return Sources{}, err
	}
	return Sources{
		LookupID:       out.LookupID,
		Sources:        p.Selector.Select(out.Results, tokenBudget, topK),
		ProviderErrors: out.ProviderErrors,
		Degraded:       out.Degraded,
	}, nil
}
