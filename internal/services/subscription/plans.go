package subscription

// Plan is a subscription tier.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanBasic      Plan = "basic"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

// Unlimited marks a numeric feature without a ceiling.
const Unlimited = -1

var planRank = map[Plan]int{
	PlanFree:       0,
	PlanBasic:      1,
	PlanPremium:    2,
	PlanEnterprise: 3,
}

// AllPlans lists tiers from lowest to highest.
var AllPlans = []Plan{PlanFree, PlanBasic, PlanPremium, PlanEnterprise}

// Valid reports whether p is a known tier.
func (p Plan) Valid() bool {
	_, ok := planRank[p]
	return ok
}

// Rank orders plans; unknown plans rank below free.
func (p Plan) Rank() int {
	r, ok := planRank[p]
	if !ok {
		return -1
	}
	return r
}

// AtLeast reports whether p is the same tier as required or higher.
func (p Plan) AtLeast(required Plan) bool {
	return p.Valid() && p.Rank() >= required.Rank()
}

// Features is the entitlement set derived from a plan.
type Features struct {
	ContentLimit     int64    `bson:"content_limit" json:"contentLimit" example:"10"`
	WordsLimit       int64    `bson:"words_limit" json:"wordsLimit" example:"5000"`
	TemplateAccess   bool     `bson:"template_access" json:"templateAccess"`
	PremiumTemplates bool     `bson:"premium_templates" json:"premiumTemplates"`
	APIAccess        bool     `bson:"api_access" json:"apiAccess"`
	Collaborators    int      `bson:"collaborators" json:"collaborators"`
	PrioritySupport  bool     `bson:"priority_support" json:"prioritySupport"`
	CustomBranding   bool     `bson:"custom_branding" json:"customBranding"`
	Analytics        bool     `bson:"analytics" json:"analytics"`
	ExportFormats    []string `bson:"export_formats" json:"exportFormats"`
	Integrations     []string `bson:"integrations" json:"integrations"`
}

// Feature names accepted by CanUseFeature.
const (
	FeatureContentLimit     = "contentLimit"
	FeatureWordsLimit       = "wordsLimit"
	FeatureTemplateAccess   = "templateAccess"
	FeaturePremiumTemplates = "premiumTemplates"
	FeatureAPIAccess        = "apiAccess"
	FeatureCollaborators    = "collaborators"
	FeaturePrioritySupport  = "prioritySupport"
	FeatureCustomBranding   = "customBranding"
	FeatureAnalytics        = "analytics"
)

// Has reports whether the named feature is enabled.
// Numeric features count as enabled only when unlimited.
func (f Features) Has(name string) bool {
	switch name {
	case FeatureContentLimit:
		return f.ContentLimit == Unlimited
	case FeatureWordsLimit:
		return f.WordsLimit == Unlimited
	case FeatureTemplateAccess:
		return f.TemplateAccess
	case FeaturePremiumTemplates:
		return f.PremiumTemplates
	case FeatureAPIAccess:
		return f.APIAccess
	case FeatureCollaborators:
		return f.Collaborators == Unlimited
	case FeaturePrioritySupport:
		return f.PrioritySupport
	case FeatureCustomBranding:
		return f.CustomBranding
	case FeatureAnalytics:
		return f.Analytics
	default:
		return false
	}
}

// FeaturesFor returns a fresh copy of the entitlements for p.
// Unknown plans get the free tier.
func FeaturesFor(p Plan) Features {
	switch p {
	case PlanBasic:
		return Features{
			ContentLimit:     100,
			WordsLimit:       50000,
			TemplateAccess:   true,
			PremiumTemplates: true,
			Collaborators:    2,
			Analytics:        true,
			ExportFormats:    []string{"txt", "pdf", "docx"},
			Integrations:     []string{},
		}
	case PlanPremium:
		return Features{
			ContentLimit:     500,
			WordsLimit:       250000,
			TemplateAccess:   true,
			PremiumTemplates: true,
			APIAccess:        true,
			Collaborators:    10,
			PrioritySupport:  true,
			CustomBranding:   true,
			Analytics:        true,
			ExportFormats:    []string{"txt", "pdf", "docx", "html"},
			Integrations:     []string{"zapier", "slack"},
		}
	case PlanEnterprise:
		return Features{
			ContentLimit:     Unlimited,
			WordsLimit:       Unlimited,
			TemplateAccess:   true,
			PremiumTemplates: true,
			APIAccess:        true,
			Collaborators:    Unlimited,
			PrioritySupport:  true,
			CustomBranding:   true,
			Analytics:        true,
			ExportFormats:    []string{"txt", "pdf", "docx", "html", "json"},
			Integrations:     []string{"zapier", "slack", "webhooks", "custom"},
		}
	default:
		return Features{
			ContentLimit:   10,
			WordsLimit:     5000,
			TemplateAccess: true,
			ExportFormats:  []string{"txt"},
			Integrations:   []string{},
		}
	}
}

// PlanInfo is the public description of a tier.
type PlanInfo struct {
	Plan     Plan     `json:"plan" example:"premium"`
	Features Features `json:"features"`
}

// Catalog returns every plan with its entitlements, lowest tier first.
func Catalog() []PlanInfo {
	out := make([]PlanInfo, 0, len(AllPlans))
	for _, p := range AllPlans {
		out = append(out, PlanInfo{Plan: p, Features: FeaturesFor(p)})
	}
	return out
}
