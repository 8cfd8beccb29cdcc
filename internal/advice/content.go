package advice

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const (
	suffixEmergencyFund = " First priority: build that emergency fund to $500, then we stack from there."
	suffixGrowTo1000    = " Good start on savings! Now let's get you to $1000, then we start investing."
	suffixStartInvest   = " Solid savings base! Time to start putting that money to work with investments."

	emergencyFundTarget = 500
	investingThreshold  = 1000
)

var narratives = map[Category][]string{
	CategoryInvestment: {
		"Real talk - let's break this down. First step is tracking every dollar. You can't stack what you can't see. Start with the 50/30/20 rule: 50% needs, 30% wants, 20% wealth building.",
		"Investing $50 a month can turn into $50k over time. Compound interest is how the rich stay rich. Time to join the club.",
		"Your money needs to work for you, not the other way around. Start with index funds, then level up to individual stocks.",
	},
	CategoryCredit: {
		"Your credit score is your power score. Every payment on time is money in the bank. Let's get you to 750+ and unlock real wealth opportunities.",
		"Credit is power - let's build yours! Pay your bills on time, keep balances low, and watch your score climb.",
		"A good credit score opens doors to better rates on everything. Let's get you stacking with better credit.",
	},
	CategorySavings: {
		"I see you trying to level up! Let's get you a $500 emergency fund first. That's your foundation. Then we build the real stack from there.",
		"Emergency fund first, then we stack. You need that safety net before you start investing.",
		"Save first, spend second. That's the Stack Master way. Build that emergency fund, then we talk investments.",
	},
	CategoryGeneral: {
		"Every dollar you save is a dollar working for you. Let's make your money work harder than you do.",
		"Wealth building is a marathon, not a sprint. Stay consistent and watch your stack grow.",
		"The best time to start stacking was yesterday. The second best time is right now.",
	},
	CategorySpecialized: {
		"Our specialist desk is busy right now, so here is the playbook: know your numbers, protect your downside, and let time do the heavy lifting.",
	},
}

var actionableSteps = map[Category][]string{
	CategoryInvestment: {
		"Start with $25/month in an index fund",
		"Research low-cost ETFs like VTI or SPY",
		"Set up automatic transfers to your investment account",
	},
	CategoryCredit: {
		"Pay all bills on time, every time",
		"Keep credit card balances below 30% of limit",
		"Check your credit report monthly",
	},
	CategorySavings: {
		"Set up automatic transfer of $50/month to savings",
		"Create a budget using the 50/30/20 rule",
		"Build emergency fund to $500 first",
	},
	CategoryGeneral: {
		"Track every dollar you spend for one month",
		"Set one specific financial goal",
		"Start with small, consistent actions",
	},
	CategorySpecialized: {
		"Write down your income, expenses, savings and debts in one place",
		"Pick the single question you want the specialist to answer",
		"Ask again in a few minutes for a detailed breakdown",
	},
}

var motivationalMessages = map[Category]string{
	CategoryInvestment:  "Your future self will thank you for starting today!",
	CategoryCredit:      "Every payment on time is money in your pocket!",
	CategorySavings:     "Small steps lead to big stacks!",
	CategoryGeneral:     "You got this! Every expert was once a beginner.",
	CategorySpecialized: "Stack your bread, stack your future!",
}

// Fallback собирает детерминированный ответ без обращения к модели.
func Fallback(category Category, context map[string]any) (string, []string, string) {
	category = knownCategory(category)

	text := narratives[category][0]
	if savings, ok := savingsFromContext(context); ok {
		text += savingsSuffix(savings)
	}

	return text, Steps(category), Motivation(category)
}

// Steps возвращает копию списка шагов для категории.
func Steps(category Category) []string {
	steps := actionableSteps[knownCategory(category)]
	out := make([]string, len(steps))
	copy(out, steps)
	return out
}

// Motivation возвращает мотивационную фразу для категории.
func Motivation(category Category) string {
	return motivationalMessages[knownCategory(category)]
}

func knownCategory(category Category) Category {
	if _, ok := narratives[category]; ok {
		return category
	}
	return CategoryGeneral
}

func savingsSuffix(savings float64) string {
	switch {
	case savings < emergencyFundTarget:
		return suffixEmergencyFund
	case savings < investingThreshold:
		return suffixGrowTo1000
	default:
		return suffixStartInvest
	}
}

// savingsFromContext принимает только конечные числа: NaN и ±Inf не дают суффикса.
func savingsFromContext(context map[string]any) (float64, bool) {
	value, ok := rawSavings(context)
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

func rawSavings(context map[string]any) (float64, bool) {
	if context == nil {
		return 0, false
	}

	raw, ok := context["savings"]
	if !ok || raw == nil {
		return 0, false
	}

	switch value := raw.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case int32:
		return float64(value), true
	case json.Number:
		parsed, err := value.Float64()
		return parsed, err == nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}
