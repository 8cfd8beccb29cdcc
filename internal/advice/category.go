package advice

import "strings"

type categoryRule struct {
	category Category
	keywords []string
}

// Порядок важен: первое совпадение выигрывает.
var categoryRules = []categoryRule{
	{category: CategoryInvestment, keywords: []string{"invest", "stock", "portfolio", "market", "trading", "buy", "sell"}},
	{category: CategoryCredit, keywords: []string{"credit", "score", "debt", "loan", "payment", "interest"}},
	{category: CategorySavings, keywords: []string{"save", "saving", "budget", "money", "cash", "emergency"}},
}

// Classify определяет категорию по вхождению ключевых слов без учета регистра.
// Это грубая лексическая классификация: "don't invest" тоже даст investment.
func Classify(text string) Category {
	lowered := strings.ToLower(text)
	for _, rule := range categoryRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lowered, keyword) {
				return rule.category
			}
		}
	}
	return CategoryGeneral
}
