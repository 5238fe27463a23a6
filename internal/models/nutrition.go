// internal/models/nutrition.go
package models

// NutritionFact is one food entry exactly as the upstream lookup reports it.
type NutritionFact struct {
	Name         string  `json:"name"`
	Calories     float64 `json:"calories"`
	ProteinG     float64 `json:"protein_g"`
	CarbsTotalG  float64 `json:"carbohydrates_total_g"`
	FatTotalG    float64 `json:"fat_total_g"`
	ServingSizeG float64 `json:"serving_size_g"`

	FatSaturatedG float64 `json:"fat_saturated_g,omitempty"`
	SodiumMg      float64 `json:"sodium_mg,omitempty"`
	PotassiumMg   float64 `json:"potassium_mg,omitempty"`
	CholesterolMg float64 `json:"cholesterol_mg,omitempty"`
	FiberG        float64 `json:"fiber_g,omitempty"`
	SugarG        float64 `json:"sugar_g,omitempty"`
}

// NutritionItem is a logged fact. ID is assigned once at insertion and is
// the only key used for removal.
type NutritionItem struct {
	ID string `json:"id"`
	NutritionFact
}

// NewItem pairs a fact with its log identifier.
func NewItem(id string, fact NutritionFact) NutritionItem {
	return NutritionItem{ID: id, NutritionFact: fact}
}

// Totals is the element-wise nutrient sum over a log.
type Totals struct {
	Calories float64 `json:"cal"`
	Protein  float64 `json:"pro"`
	Carbs    float64 `json:"carb"`
	Fat      float64 `json:"fat"`
}

// Add folds one item into the running sum.
func (t Totals) Add(item NutritionItem) Totals {
	return Totals{
		Calories: t.Calories + item.Calories,
		Protein:  t.Protein + item.ProteinG,
		Carbs:    t.Carbs + item.CarbsTotalG,
		Fat:      t.Fat + item.FatTotalG,
	}
}

// Sum computes totals over items.
func Sum(items []NutritionItem) Totals {
	var t Totals
	for _, item := range items {
		t = t.Add(item)
	}
	return t
}

// LookupResponse is the body returned by the nutrition route on success.
type LookupResponse struct {
	Items []NutritionFact `json:"items"`
}

// ErrorResponse is the envelope returned by the nutrition route on failure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
