package advice

import (
	"strings"
	"time"
)

type Category string

const (
	CategoryInvestment  Category = "investment"
	CategoryCredit      Category = "credit"
	CategorySavings     Category = "savings"
	CategoryGeneral     Category = "general"
	CategorySpecialized Category = "specialized"
)

type Role string

const (
	RoleCoach            Role = "coach"
	RoleFinancialAnalyst Role = "financial_analyst"
	RoleMarketAnalyst    Role = "market_analyst"
	RoleExpertInvestor   Role = "expert_investor"
	RoleAccountant       Role = "accountant"
)

// Roles возвращает все роли в порядке отображения.
func Roles() []Role {
	return []Role{RoleCoach, RoleFinancialAnalyst, RoleMarketAnalyst, RoleExpertInvestor, RoleAccountant}
}

var roleLabels = map[Role]string{
	RoleCoach:            "Stack Master",
	RoleFinancialAnalyst: "Financial Analyst",
	RoleMarketAnalyst:    "Market Analyst",
	RoleExpertInvestor:   "Expert Investor",
	RoleAccountant:       "Accountant",
}

// Label возвращает человекочитаемое имя роли.
func (r Role) Label() string {
	if label, ok := roleLabels[r]; ok {
		return label
	}
	return string(r)
}

// Slug возвращает сегмент URL для роли.
func (r Role) Slug() string {
	if r == RoleCoach {
		return "stack-master"
	}
	return strings.ReplaceAll(string(r), "_", "-")
}

// IsSpecialist сообщает, что роль отвечает категорией specialized.
func (r Role) IsSpecialist() bool {
	return r != RoleCoach
}

// ParseRole разбирает роль из slug или имени.
func ParseRole(value string) (Role, bool) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
	if normalized == "stack_master" {
		return RoleCoach, true
	}

	role := Role(normalized)
	if _, ok := roleLabels[role]; !ok {
		return "", false
	}
	return role, true
}

type Tier int

const (
	TierFree Tier = iota
	TierBeta
	TierPremium
)

func (t Tier) String() string {
	switch t {
	case TierBeta:
		return "beta"
	case TierPremium:
		return "premium"
	default:
		return "free"
	}
}

// ParseTier разбирает тариф. Неизвестные и пустые значения считаются free.
func ParseTier(value string) Tier {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "beta":
		return TierBeta
	case "premium", "enterprise":
		return TierPremium
	default:
		return TierFree
	}
}

func parseTierStrict(value string) (Tier, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "free":
		return TierFree, true
	case "beta":
		return TierBeta, true
	case "premium":
		return TierPremium, true
	default:
		return TierFree, false
	}
}

type InvocationKind string

const (
	KindLocalAgent      InvocationKind = "local_agent"
	KindHostedInference InvocationKind = "hosted_inference"
	KindRuleBased       InvocationKind = "rule_based"
)

func (k InvocationKind) valid() bool {
	switch k {
	case KindLocalAgent, KindHostedInference, KindRuleBased:
		return true
	default:
		return false
	}
}

// BackendDescriptor описывает бэкенд для пары (роль, тариф). Не меняется после старта.
type BackendDescriptor struct {
	Role     Role
	Tier     Tier
	Provider string
	Model    string
	Kind     InvocationKind
}

type Request struct {
	UserID  string
	Message string
	Context map[string]any
}

type SubscriptionClaim struct {
	Tier            string
	PaymentVerified bool
}

type Response struct {
	Text                string   `json:"text"`
	Category            Category `json:"category"`
	ActionableSteps     []string `json:"actionable_steps"`
	MotivationalMessage string   `json:"motivational_message"`
}

type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// Input объединяет запрос, роль и заявленную подписку.
type Input struct {
	RequestID string
	Request   Request
	Role      Role
	Tier      Tier
	Claim     SubscriptionClaim
}

// Result содержит ответ и сведения о том, как он был получен.
type Result struct {
	RequestID     string
	Response      Response
	Source        Source
	Backend       BackendDescriptor
	InputCategory Category
	Failure       *InvocationFailure
	Latency       time.Duration
}
