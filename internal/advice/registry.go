package advice

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ProviderHFInference = "hf-inference"
	ProviderOpenAI      = "openai"
	ProviderAnthropic   = "anthropic"
	ProviderGemini      = "gemini"
	ProviderGroq        = "groq"
	ProviderNone        = "none"

	// ModelRuleBased стоит в поле Model у бэкендов без модели.
	ModelRuleBased = "rule-based"
)

// Registry сопоставляет (роль, тариф) с описанием бэкенда.
// Заполняется один раз при старте и дальше только читается.
type Registry struct {
	byRole map[Role][]BackendDescriptor
}

// NewRegistry проверяет описания и строит реестр.
func NewRegistry(descriptors []BackendDescriptor) (*Registry, error) {
	byRole := make(map[Role][]BackendDescriptor)
	seen := make(map[string]struct{}, len(descriptors))

	for i, d := range descriptors {
		if _, ok := roleLabels[d.Role]; !ok {
			return nil, fmt.Errorf("backend %d: %w: %q", i, ErrUnknownRole, d.Role)
		}
		if !d.Kind.valid() {
			return nil, fmt.Errorf("backend %d: unknown invocation kind %q", i, d.Kind)
		}
		if d.Kind != KindRuleBased && strings.TrimSpace(d.Model) == "" {
			return nil, fmt.Errorf("backend %d: model is required for %s", i, d.Kind)
		}

		key := fmt.Sprintf("%s/%s", d.Role, d.Tier)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("backend %d: duplicate entry for %s", i, key)
		}
		seen[key] = struct{}{}

		byRole[d.Role] = append(byRole[d.Role], d)
	}

	for role, list := range byRole {
		sort.Slice(list, func(a, b int) bool { return list[a].Tier < list[b].Tier })
		byRole[role] = list
	}

	for _, role := range Roles() {
		if len(byRole[role]) == 0 {
			return nil, fmt.Errorf("no backend configured for role %s", role)
		}
	}

	return &Registry{byRole: byRole}, nil
}

// Lookup выбирает описание с наибольшим тарифом не выше запрошенного.
// Если такого нет, возвращается самый младший тариф роли.
func (r *Registry) Lookup(role Role, tier Tier) (BackendDescriptor, error) {
	list, ok := r.byRole[role]
	if !ok || len(list) == 0 {
		return BackendDescriptor{}, ErrUnknownRole
	}

	chosen := list[0]
	for _, d := range list {
		if d.Tier <= tier {
			chosen = d
		}
	}
	return chosen, nil
}

// Descriptors возвращает все описания, упорядоченные по роли и тарифу.
func (r *Registry) Descriptors() []BackendDescriptor {
	out := make([]BackendDescriptor, 0)
	for _, role := range Roles() {
		out = append(out, r.byRole[role]...)
	}
	return out
}

type DefaultOptions struct {
	HostedProvider string
	HostedModels   map[Role]string
	AgentProvider  string
	AgentModel     string
	RuleBasedOnly  bool
}

var defaultHostedModels = map[Role]string{
	RoleCoach:            "Qwen/Qwen2.5-7B-Instruct",
	RoleFinancialAnalyst: "Qwen/Qwen2.5-7B-Instruct",
	RoleMarketAnalyst:    "FinGPT/fingpt-forecaster_dow_30",
	RoleExpertInvestor:   "microsoft/DialoGPT-medium",
	RoleAccountant:       "EleutherAI/gpt-neo-2.7B",
}

const defaultAgentModel = "gpt-4-0125-preview"

// DefaultDescriptors строит реестр по умолчанию: бесплатный hosted-инференс
// и beta-агент для каждой роли.
func DefaultDescriptors(opts DefaultOptions) []BackendDescriptor {
	hostedProvider := opts.HostedProvider
	if hostedProvider == "" {
		hostedProvider = ProviderHFInference
	}
	agentProvider := opts.AgentProvider
	if agentProvider == "" {
		agentProvider = ProviderOpenAI
	}
	agentModel := opts.AgentModel
	if agentModel == "" {
		agentModel = defaultAgentModel
	}

	out := make([]BackendDescriptor, 0, len(Roles())*2)
	for _, role := range Roles() {
		model := defaultHostedModels[role]
		if override := strings.TrimSpace(opts.HostedModels[role]); override != "" {
			model = override
		}

		hosted := BackendDescriptor{Role: role, Tier: TierFree, Provider: hostedProvider, Model: model, Kind: KindHostedInference}
		agent := BackendDescriptor{Role: role, Tier: TierBeta, Provider: agentProvider, Model: agentModel, Kind: KindLocalAgent}
		if opts.RuleBasedOnly {
			hosted.Kind, hosted.Provider, hosted.Model = KindRuleBased, ProviderNone, ModelRuleBased
			agent.Kind, agent.Provider, agent.Model = KindRuleBased, ProviderNone, ModelRuleBased
		}
		out = append(out, hosted, agent)
	}
	return out
}

type registryFile struct {
	Backends []registryEntry `yaml:"backends"`
}

type registryEntry struct {
	Role     string `yaml:"role"`
	Tier     string `yaml:"tier"`
	Kind     string `yaml:"kind"`
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// LoadDescriptors читает описания бэкендов из YAML-файла.
func LoadDescriptors(path string) ([]BackendDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backends file: %w", err)
	}
	return ParseDescriptors(data)
}

// ParseDescriptors разбирает YAML-описание бэкендов.
func ParseDescriptors(data []byte) ([]BackendDescriptor, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse backends file: %w", err)
	}
	if len(file.Backends) == 0 {
		return nil, errors.New("backends file has no entries")
	}

	out := make([]BackendDescriptor, 0, len(file.Backends))
	for i, entry := range file.Backends {
		role, ok := ParseRole(entry.Role)
		if !ok {
			return nil, fmt.Errorf("backend %d: %w: %q", i, ErrUnknownRole, entry.Role)
		}

		tier, ok := parseTierStrict(entry.Tier)
		if !ok {
			return nil, fmt.Errorf("backend %d: unknown tier %q", i, entry.Tier)
		}

		kind := InvocationKind(strings.ToLower(strings.TrimSpace(entry.Kind)))
		provider := strings.ToLower(strings.TrimSpace(entry.Provider))
		model := strings.TrimSpace(entry.Model)
		if kind == KindRuleBased {
			provider, model = ProviderNone, ModelRuleBased
		}

		out = append(out, BackendDescriptor{
			Role:     role,
			Tier:     tier,
			Provider: provider,
			Model:    model,
			Kind:     kind,
		})
	}
	return out, nil
}
