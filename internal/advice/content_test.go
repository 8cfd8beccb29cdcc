package advice

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFallbackAlwaysComplete проверяет, что fallback не бывает пустым.
func TestFallbackAlwaysComplete(t *testing.T) {
	contexts := []map[string]any{
		nil,
		{},
		{"savings": "not a number"},
		{"savings": nil},
		{"income": 3000},
	}

	categories := []Category{CategoryInvestment, CategoryCredit, CategorySavings, CategoryGeneral, CategorySpecialized, Category("unknown")}
	for _, category := range categories {
		for _, ctx := range contexts {
			text, steps, motivation := Fallback(category, ctx)
			assert.NotEmpty(t, text, "category %s", category)
			assert.NotEmpty(t, steps, "category %s", category)
			assert.NotEmpty(t, motivation, "category %s", category)
		}
	}
}

// TestFallbackSavingsBoundaries проверяет пороги 500 и 1000.
func TestFallbackSavingsBoundaries(t *testing.T) {
	cases := []struct {
		savings any
		want    string
	}{
		{0, suffixEmergencyFund},
		{499, suffixEmergencyFund},
		{499.99, suffixEmergencyFund},
		{500, suffixGrowTo1000},
		{999, suffixGrowTo1000},
		{1000, suffixStartInvest},
		{25000.5, suffixStartInvest},
		{json.Number("750"), suffixGrowTo1000},
		{"1000", suffixStartInvest},
	}

	for _, tc := range cases {
		text, _, _ := Fallback(CategoryGeneral, map[string]any{"savings": tc.savings})
		assert.True(t, strings.HasSuffix(text, tc.want), "savings %v: got %q", tc.savings, text)
	}
}

// TestFallbackWithoutSavings проверяет, что без savings суффикс не добавляется.
func TestFallbackWithoutSavings(t *testing.T) {
	text, _, _ := Fallback(CategoryCredit, map[string]any{"income": 4000})
	assert.Equal(t, narratives[CategoryCredit][0], text)
}

// TestStepsReturnsCopy проверяет, что изменение результата не портит таблицу.
func TestStepsReturnsCopy(t *testing.T) {
	steps := Steps(CategorySavings)
	require.Len(t, steps, 3)
	steps[0] = "mutated"

	assert.Equal(t, "Set up automatic transfer of $50/month to savings", Steps(CategorySavings)[0])
}

// TestFallbackNonFiniteSavings проверяет, что NaN и бесконечность не дают суффикса.
func TestFallbackNonFiniteSavings(t *testing.T) {
	for _, savings := range []any{math.NaN(), math.Inf(1), math.Inf(-1), "NaN", "+Inf"} {
		text, _, _ := Fallback(CategoryGeneral, map[string]any{"savings": savings})
		assert.Equal(t, narratives[CategoryGeneral][0], text, "savings %v", savings)
	}
}
