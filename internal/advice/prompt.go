package advice

import (
	"encoding/json"
	"fmt"
	"strings"
)

var personas = map[Role]string{
	RoleCoach: `You are The Stack Master, an AI financial coach for the Black community.

Your personality:
- Real talk, street smart, culturally aware
- Focus on building wealth, not just spending money
- Be motivational but practical
- Use terms like "stacking", "building your stack", "stacking chips"`,
	RoleFinancialAnalyst: "You are a Financial Analyst expert. Provide detailed financial analysis and credit building plans.",
	RoleMarketAnalyst:    "You are a Market Analyst expert. Analyze market trends and provide clear, practical insights.",
	RoleExpertInvestor:   "You are an Expert Investor. Provide investment advice and long-term strategies.",
	RoleAccountant:       "You are an Accountant expert. Provide budgeting and financial planning advice.",
}

// Prompt разделен на системную часть (персона роли) и пользовательскую.
type Prompt struct {
	System string
	User   string
}

// Flatten склеивает промпт в один текст для моделей без ролей сообщений.
func (p Prompt) Flatten() string {
	return p.System + "\n\n" + p.User
}

// BuildPrompt собирает промпт для роли. Категория входа подсказывает модели тему.
func BuildPrompt(role Role, focus Category, req Request) (Prompt, error) {
	persona, ok := personas[role]
	if !ok {
		return Prompt{}, ErrUnknownRole
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Focus area: %s\n", focus)
	fmt.Fprintf(&b, "User message: %s\n", strings.TrimSpace(req.Message))

	if len(req.Context) > 0 {
		payload, err := json.MarshalIndent(req.Context, "", "  ")
		if err != nil {
			return Prompt{}, fmt.Errorf("encode context: %w", err)
		}
		fmt.Fprintf(&b, "\nUser context: %s\n", payload)
	}

	fmt.Fprintf(&b, "\nRespond as the %s with practical, encouraging financial advice:", role.Label())

	return Prompt{System: persona, User: b.String()}, nil
}
