package asset

import (
	"fmt"
	"sort"
)

type registeredToken struct {
	meta    Meta
	adapter Fungible
}

// Registry resolves adapters by asset id. Registration happens during
// startup; lookups afterwards are read-only.
type Registry struct {
	nativeMeta Meta
	native     Native
	tokens     map[string]registeredToken
}

// NewRegistry creates a registry around the native pool.
func NewRegistry(nativeMeta Meta, native Native) *Registry {
	nativeMeta.ID = NativeSymbol
	return &Registry{
		nativeMeta: nativeMeta,
		native:     native,
		tokens:     make(map[string]registeredToken),
	}
}

// Register adds a fungible adapter under meta.ID.
func (r *Registry) Register(meta Meta, adapter Fungible) error {
	if meta.ID == "" || meta.ID == NativeSymbol {
		return fmt.Errorf("invalid asset id %q", meta.ID)
	}
	if _, exists := r.tokens[meta.ID]; exists {
		return fmt.Errorf("asset %s already registered", meta.ID)
	}
	if meta.Symbol == "" {
		meta.Symbol = meta.ID
	}
	r.tokens[meta.ID] = registeredToken{meta: meta, adapter: adapter}
	return nil
}

// Native returns the native pool adapter.
func (r *Registry) Native() Native {
	return r.native
}

// Fungible returns the adapter registered for id.
func (r *Registry) Fungible(id string) (Fungible, error) {
	tok, ok := r.tokens[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, id)
	}
	return tok.adapter, nil
}

// Meta returns display metadata; "native" names the native currency.
func (r *Registry) Meta(id string) (Meta, error) {
	if id == NativeSymbol {
		return r.nativeMeta, nil
	}
	tok, ok := r.tokens[id]
	if !ok {
		return Meta{}, fmt.Errorf("%w: %s", ErrUnknownAsset, id)
	}
	return tok.meta, nil
}

// Tokens lists fungible asset metadata ordered by id.
func (r *Registry) Tokens() []Meta {
	out := make([]Meta, 0, len(r.tokens))
	for _, tok := range r.tokens {
		out = append(out, tok.meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Depositor returns the deposit capability of the adapter for id, if any.
func (r *Registry) Depositor(id string) (Depositor, error) {
	var adapter any
	if id == NativeSymbol {
		adapter = r.native
	} else {
		tok, ok := r.tokens[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, id)
		}
		adapter = tok.adapter
	}
	d, ok := adapter.(Depositor)
	if !ok {
		return nil, fmt.Errorf("asset %s does not accept deposits", id)
	}
	return d, nil
}
