package advice

const (
	paymentRequiredCode = "payment_required"

	DefaultUpgradeURL     = "/upgrade-to-premium"
	DefaultPremiumMessage = "Premium agents require $9.99 beta subscription"
)

var DefaultPremiumFeatures = []string{
	"Advanced FinRobot agents",
	"Real-time market analysis",
	"Personalized investment strategies",
	"Priority support",
}

// Gate решает, пускать ли запрос к платному бэкенду. Заявка о подписке
// принимается как есть: внешних проверок оплаты нет.
type Gate struct {
	message    string
	upgradeURL string
	features   []string
}

// NewGate создает гейт с параметрами апгрейда; пустые значения заменяются дефолтными.
func NewGate(message, upgradeURL string, features []string) *Gate {
	if message == "" {
		message = DefaultPremiumMessage
	}
	if upgradeURL == "" {
		upgradeURL = DefaultUpgradeURL
	}
	if len(features) == 0 {
		features = DefaultPremiumFeatures
	}

	return &Gate{message: message, upgradeURL: upgradeURL, features: append([]string(nil), features...)}
}

// Authorize пропускает бесплатные запросы без условий. Если запрошен или выбран
// платный тариф, нужен payment_verified.
func (g *Gate) Authorize(backend BackendDescriptor, requested Tier, claim SubscriptionClaim) error {
	premium := requested > TierFree || backend.Tier > TierFree
	if !premium || claim.PaymentVerified {
		return nil
	}
	return g.Rejection(backend.Role)
}

// Rejection строит ошибку 402 для роли.
func (g *Gate) Rejection(role Role) *PaymentRequiredError {
	return &PaymentRequiredError{
		Code:       paymentRequiredCode,
		Message:    g.message,
		UpgradeURL: g.upgradeURL,
		Features:   append([]string(nil), g.features...),
		Role:       role,
	}
}

// Features возвращает список платных возможностей.
func (g *Gate) Features() []string {
	return append([]string(nil), g.features...)
}

// PremiumTier поднимает заявленный тариф минимум до beta, чтобы премиум-эндпоинты
// всегда проходили через проверку оплаты.
func PremiumTier(claimed string) Tier {
	tier := ParseTier(claimed)
	if tier < TierBeta {
		return TierBeta
	}
	return tier
}
