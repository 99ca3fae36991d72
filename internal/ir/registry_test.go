package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryValid(t *testing.T) {
	reg := testRegistry(t)

	assert.Equal(t, []string{"Adam", "Bobby", "Cathy", "Dean"}, reg.Participants())
	assert.Equal(t, []string{"Fruit Shop", "Dish Shop"}, reg.ShopNames())

	fruit, ok := reg.Shop("Fruit Shop")
	require.True(t, ok)
	assert.False(t, fruit.Restricted())

	dish, ok := reg.Shop("Dish Shop")
	require.True(t, ok)
	assert.True(t, dish.Restricted())
}

func TestNewRegistryRejectsBadInput(t *testing.T) {
	fruit := Shop{Name: "Fruit Shop", Items: []string{"Papaya"}}

	tests := []struct {
		name         string
		participants []string
		shops        []Shop
		wantErr      string
	}{
		{"no participants", nil, []Shop{fruit}, "at least one participant"},
		{"no shops", []string{"Adam"}, nil, "at least one shop"},
		{"empty participant", []string{""}, []Shop{fruit}, "must be non-empty"},
		{"duplicate participant", []string{"Adam", "Adam"}, []Shop{fruit}, `duplicate participant "Adam"`},
		{"duplicate shop", []string{"Adam"}, []Shop{fruit, fruit}, `duplicate shop "Fruit Shop"`},
		{"empty catalog", []string{"Adam"}, []Shop{{Name: "Empty"}}, "has no items"},
		{"duplicate item", []string{"Adam"}, []Shop{{Name: "S", Items: []string{"a", "a"}}}, `lists item "a" twice`},
		{"unknown eligible", []string{"Adam"}, []Shop{{Name: "S", Items: []string{"a"}, Eligible: []string{"Zed"}}}, `unknown eligible participant "Zed"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.participants, tt.shops)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegistryIsolatesCallerSlices(t *testing.T) {
	participants := []string{"Adam", "Bobby"}
	items := []string{"Papaya", "Salak"}
	reg, err := NewRegistry(participants, []Shop{{Name: "Fruit Shop", Items: items}})
	require.NoError(t, err)

	participants[0] = "Mallory"
	items[0] = "Durian"

	assert.Equal(t, []string{"Adam", "Bobby"}, reg.Participants())
	fruit, _ := reg.Shop("Fruit Shop")
	assert.Equal(t, "Papaya", fruit.Items[0])
}

func TestRegistryReturnsCopies(t *testing.T) {
	reg, err := NewRegistry(
		[]string{"Adam", "Bobby"},
		[]Shop{
			{Name: "Fruit Shop", Items: []string{"Papaya", "Salak"}},
			{Name: "Dish Shop", Items: []string{"Pasta", "Risotto"}, Eligible: []string{"Bobby"}},
		},
	)
	require.NoError(t, err)

	shops := reg.Shops()
	shops[0].Items[0] = "Durian"
	shops[1].Eligible[0] = "Mallory"
	shops[1].Items = append(shops[1].Items[:0], "Gruel")

	dish, _ := reg.Shop("Dish Shop")
	dish.Items[1] = "Gruel"

	fruit, _ := reg.Shop("Fruit Shop")
	assert.Equal(t, []string{"Papaya", "Salak"}, fruit.Items)
	dish, _ = reg.Shop("Dish Shop")
	assert.Equal(t, []string{"Pasta", "Risotto"}, dish.Items)
	assert.Equal(t, []string{"Bobby"}, dish.Eligible)
	assert.True(t, reg.IsEligible("Bobby", "Dish Shop"))
	assert.False(t, reg.IsEligible("Mallory", "Dish Shop"))
}

func TestShopCodes(t *testing.T) {
	reg := testRegistry(t)
	fruit, _ := reg.Shop("Fruit Shop")

	code, ok := fruit.Code("Salak")
	require.True(t, ok)
	assert.Equal(t, int64(3), code)

	_, ok = fruit.Code("Durian")
	assert.False(t, ok)

	item, ok := fruit.Item(1)
	require.True(t, ok)
	assert.Equal(t, "Quenepa", item)

	_, ok = fruit.Item(4)
	assert.False(t, ok)
	_, ok = fruit.Item(-1)
	assert.False(t, ok)
}

func TestIsEligible(t *testing.T) {
	reg := testRegistry(t)

	assert.True(t, reg.IsEligible("Adam", "Fruit Shop"))
	assert.True(t, reg.IsEligible("Bobby", "Dish Shop"))
	assert.False(t, reg.IsEligible("Adam", "Dish Shop"))
	assert.False(t, reg.IsEligible("Zed", "Fruit Shop"))
	assert.False(t, reg.IsEligible("Adam", "Bakery"))
}

func TestEligiblePairs(t *testing.T) {
	reg := testRegistry(t)

	assert.Equal(t, []VarKey{
		{Participant: "Adam", Shop: "Fruit Shop"},
		{Participant: "Bobby", Shop: "Fruit Shop"},
		{Participant: "Cathy", Shop: "Fruit Shop"},
		{Participant: "Dean", Shop: "Fruit Shop"},
		{Participant: "Bobby", Shop: "Dish Shop"},
	}, reg.EligiblePairs())
}
