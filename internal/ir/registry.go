package ir

import (
	"fmt"
	"slices"
)

// Shop is a named catalog of mutually exclusive items.
// An item's code is its position in Items.
type Shop struct {
	Name     string   `json:"name"`
	Items    []string `json:"items"`
	Eligible []string `json:"eligible,omitempty"` // nil = every participant
}

func (s Shop) clone() Shop {
	s.Items = slices.Clone(s.Items)
	s.Eligible = slices.Clone(s.Eligible)
	return s
}

// Restricted reports whether only listed participants may select from the shop.
func (s Shop) Restricted() bool {
	return len(s.Eligible) > 0
}

// Code returns the integer code of an item.
func (s Shop) Code(item string) (int64, bool) {
	i := slices.Index(s.Items, item)
	if i < 0 {
		return 0, false
	}
	return int64(i), true
}

// Item returns the item name for a code.
func (s Shop) Item(code int64) (string, bool) {
	if code < 0 || code >= int64(len(s.Items)) {
		return "", false
	}
	return s.Items[code], true
}

// Registry is the static domain: the participant list and the shop catalogs.
// It is immutable after NewRegistry returns.
type Registry struct {
	participants []string
	shops        []Shop
	shopIndex    map[string]int
}

// NewRegistry builds a registry, rejecting duplicate names and empty catalogs.
func NewRegistry(participants []string, shops []Shop) (*Registry, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("registry: at least one participant is required")
	}
	if len(shops) == 0 {
		return nil, fmt.Errorf("registry: at least one shop is required")
	}

	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if p == "" {
			return nil, fmt.Errorf("registry: participant name must be non-empty")
		}
		if seen[p] {
			return nil, fmt.Errorf("registry: duplicate participant %q", p)
		}
		seen[p] = true
	}

	reg := &Registry{
		participants: slices.Clone(participants),
		shops:        make([]Shop, 0, len(shops)),
		shopIndex:    make(map[string]int, len(shops)),
	}

	for _, shop := range shops {
		if shop.Name == "" {
			return nil, fmt.Errorf("registry: shop name must be non-empty")
		}
		if _, dup := reg.shopIndex[shop.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate shop %q", shop.Name)
		}
		if len(shop.Items) == 0 {
			return nil, fmt.Errorf("registry: shop %q has no items", shop.Name)
		}
		items := make(map[string]bool, len(shop.Items))
		for _, item := range shop.Items {
			if items[item] {
				return nil, fmt.Errorf("registry: shop %q lists item %q twice", shop.Name, item)
			}
			items[item] = true
		}
		for _, p := range shop.Eligible {
			if !seen[p] {
				return nil, fmt.Errorf("registry: shop %q names unknown eligible participant %q", shop.Name, p)
			}
		}

		reg.shopIndex[shop.Name] = len(reg.shops)
		reg.shops = append(reg.shops, Shop{
			Name:     shop.Name,
			Items:    slices.Clone(shop.Items),
			Eligible: slices.Clone(shop.Eligible),
		})
	}

	return reg, nil
}

// Participants returns the participants in declaration order.
func (r *Registry) Participants() []string {
	return slices.Clone(r.participants)
}

// Shops returns the shops in declaration order.
func (r *Registry) Shops() []Shop {
	out := make([]Shop, len(r.shops))
	for i, s := range r.shops {
		out[i] = s.clone()
	}
	return out
}

// ShopNames returns the shop names in declaration order.
func (r *Registry) ShopNames() []string {
	names := make([]string, len(r.shops))
	for i, s := range r.shops {
		names[i] = s.Name
	}
	return names
}

// Shop looks up a shop by name.
func (r *Registry) Shop(name string) (Shop, bool) {
	i, ok := r.shopIndex[name]
	if !ok {
		return Shop{}, false
	}
	return r.shops[i].clone(), true
}

// HasParticipant reports whether name is a registered participant.
func (r *Registry) HasParticipant(name string) bool {
	return slices.Contains(r.participants, name)
}

// IsEligible reports whether participant may select from shop.
// Unknown participants or shops are never eligible.
func (r *Registry) IsEligible(participant, shop string) bool {
	if !r.HasParticipant(participant) {
		return false
	}
	i, ok := r.shopIndex[shop]
	if !ok {
		return false
	}
	s := r.shops[i]
	if !s.Restricted() {
		return true
	}
	return slices.Contains(s.Eligible, participant)
}

// EligiblePairs lists every (participant, shop) pair that gets an assignment
// variable, ordered shop-major then participant order.
func (r *Registry) EligiblePairs() []VarKey {
	var keys []VarKey
	for _, s := range r.shops {
		for _, p := range r.participants {
			if r.IsEligible(p, s.Name) {
				keys = append(keys, VarKey{Participant: p, Shop: s.Name})
			}
		}
	}
	return keys
}

// VarKey identifies one assignment variable.
type VarKey struct {
	Participant string `json:"participant"`
	Shop        string `json:"shop"`
}

func (k VarKey) String() string {
	return k.Participant + "@" + k.Shop
}
