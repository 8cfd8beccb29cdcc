package advice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestClassify проверяет таблицу ключевых слов и порядок приоритета.
func TestClassify(t *testing.T) {
	cases := []struct {
		message string
		want    Category
	}{
		{"let's talk stocks and credit", CategoryInvestment},
		{"How do I pay off my LOAN?", CategoryCredit},
		{"I need an emergency cushion", CategorySavings},
		{"my debt and my budget", CategoryCredit},
		{"hello there", CategoryGeneral},
		{"", CategoryGeneral},
		{"I don't want to invest", CategoryInvestment},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.message), "message %q", tc.message)
	}
}

// TestClassifyDeterministic проверяет повторяемость результата.
func TestClassifyDeterministic(t *testing.T) {
	message := "Should I buy a house or save for retirement?"
	first := Classify(message)
	for i := 0; i < 50; i++ {
		if got := Classify(message); got != first {
			t.Fatalf("expected %s, got %s on iteration %d", first, got, i)
		}
	}
}
