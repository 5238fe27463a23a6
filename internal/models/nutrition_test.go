package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum(t *testing.T) {
	assert.Equal(t, Totals{}, Sum(nil))

	items := []NutritionItem{
		NewItem("a", NutritionFact{Name: "egg", Calories: 140, ProteinG: 12, CarbsTotalG: 1, FatTotalG: 10}),
		NewItem("b", NutritionFact{Name: "rice", Calories: 130, ProteinG: 2.5, CarbsTotalG: 28, FatTotalG: 0.5}),
	}
	assert.Equal(t, Totals{Calories: 270, Protein: 14.5, Carbs: 29, Fat: 10.5}, Sum(items))
}

func TestNutritionItemJSONIsFlat(t *testing.T) {
	item := NewItem("egg-1", NutritionFact{Name: "egg", Calories: 140, ServingSizeG: 100})

	raw, err := json.Marshal(item)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "egg-1", fields["id"])
	assert.Equal(t, "egg", fields["name"])
	assert.Equal(t, 100.0, fields["serving_size_g"])
	assert.Contains(t, fields, "carbohydrates_total_g")
	assert.NotContains(t, fields, "sugar_g")
}
