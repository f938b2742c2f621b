// Package access resolves caller tiers and the capabilities they grant.
// Everything here is a pure function of its input.
package access

// Tier is an access level.
type Tier string

const (
	TierGuest      Tier = "guest"
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierAgency     Tier = "agency"
	TierEnterprise Tier = "enterprise"
)

// All grants universal access when present in a capability set.
const All = "all"

// Unlimited marks a numeric capability without a limit.
const Unlimited = -1

// Feature names.
const (
	FeatureBasicBuilder      = "basic_builder"
	FeatureSave              = "save"
	FeatureShare             = "share"
	FeatureUndoHistory       = "undo_history"
	FeaturePremiumSections   = "premium_sections"
	FeaturePremiumComponents = "premium_components"
	FeatureCustomColors      = "custom_colors"
	FeatureAnalytics         = "analytics"
	FeatureWhiteLabel        = "white_label"
	FeatureTeam              = "team"
	FeatureAPIAccess         = "api_access"
)

// tierTags maps identity tags to tiers in precedence order.
var tierTags = []struct {
	tag  string
	tier Tier
}{
	{"enterprise_user", TierEnterprise},
	{"agency_user", TierAgency},
	{"pro_user", TierPro},
	{"free_user", TierFree},
}

// Capabilities are the limits a tier grants.
type Capabilities struct {
	MaxMediaKits  int      `json:"max_media_kits"`
	MaxComponents int      `json:"max_components"`
	Templates     []string `json:"templates"`
	ExportFormats []string `json:"export_formats"`
	StorageMB     int      `json:"storage_mb"`
	Features      []string `json:"features"`
}

// Policy is a capability lookup table.
type Policy struct {
	table map[Tier]Capabilities
}

// NewPolicy creates a policy from an explicit table.
func NewPolicy(table map[Tier]Capabilities) *Policy {
	return &Policy{table: table}
}

// DefaultPolicy returns the built-in tier table.
func DefaultPolicy() *Policy {
	return NewPolicy(map[Tier]Capabilities{
		TierGuest: {
			MaxMediaKits:  1,
			MaxComponents: 10,
			Templates:     []string{"basic"},
			ExportFormats: []string{"pdf"},
			StorageMB:     0,
			Features:      []string{FeatureBasicBuilder},
		},
		TierFree: {
			MaxMediaKits:  1,
			MaxComponents: 25,
			Templates:     []string{"basic", "minimal"},
			ExportFormats: []string{"pdf"},
			StorageMB:     10,
			Features:      []string{FeatureBasicBuilder, FeatureSave, FeatureShare, FeatureUndoHistory},
		},
		TierPro: {
			MaxMediaKits:  5,
			MaxComponents: 100,
			Templates:     []string{All},
			ExportFormats: []string{"pdf", "png", "html"},
			StorageMB:     500,
			Features: []string{
				FeatureBasicBuilder, FeatureSave, FeatureShare, FeatureUndoHistory,
				FeaturePremiumSections, FeaturePremiumComponents, FeatureCustomColors, FeatureAnalytics,
			},
		},
		TierAgency: {
			MaxMediaKits:  Unlimited,
			MaxComponents: 100,
			Templates:     []string{All},
			ExportFormats: []string{"pdf", "png", "html", "svg"},
			StorageMB:     5000,
			Features: []string{
				FeatureBasicBuilder, FeatureSave, FeatureShare, FeatureUndoHistory,
				FeaturePremiumSections, FeaturePremiumComponents, FeatureCustomColors, FeatureAnalytics,
				FeatureWhiteLabel, FeatureTeam,
			},
		},
		TierEnterprise: {
			MaxMediaKits:  Unlimited,
			MaxComponents: Unlimited,
			Templates:     []string{All},
			ExportFormats: []string{All},
			StorageMB:     Unlimited,
			Features:      []string{All},
		},
	})
}

// ResolveTier maps identity tags to a tier. Anonymous callers are guests
// regardless of tags; logged-in callers without a tier tag are free.
func ResolveTier(tags []string, loggedIn bool) Tier {
	if !loggedIn {
		return TierGuest
	}

	present := make(map[string]bool, len(tags))
	for _, tag := range tags {
		present[tag] = true
	}

	for _, t := range tierTags {
		if present[t.tag] {
			return t.tier
		}
	}

	return TierFree
}

// Paid reports whether the tier is a paying one.
func (t Tier) Paid() bool {
	return t == TierPro || t == TierAgency || t == TierEnterprise
}

// Known reports whether the tier is one of the defined tiers.
func (t Tier) Known() bool {
	switch t {
	case TierGuest, TierFree, TierPro, TierAgency, TierEnterprise:
		return true
	}
	return false
}

// CapabilitiesFor returns the capabilities of a tier. Unknown tiers get the
// guest capabilities.
func (p *Policy) CapabilitiesFor(tier Tier) Capabilities {
	if c, ok := p.table[tier]; ok {
		return c
	}

	return p.table[TierGuest]
}

// CanAccessFeature reports whether the tier grants a feature.
func (p *Policy) CanAccessFeature(tier Tier, feature string) bool {
	return contains(p.CapabilitiesFor(tier).Features, feature)
}

// CanAccessTemplate reports whether the tier may use a template.
func (p *Policy) CanAccessTemplate(tier Tier, template string) bool {
	return contains(p.CapabilitiesFor(tier).Templates, template)
}

// CanExportFormat reports whether the tier may export to a format.
func (p *Policy) CanExportFormat(tier Tier, format string) bool {
	return contains(p.CapabilitiesFor(tier).ExportFormats, format)
}

// Watermark reports whether exports for the tier carry a watermark.
func (p *Policy) Watermark(tier Tier) bool {
	return !tier.Paid() && !p.CanAccessFeature(tier, FeatureWhiteLabel)
}

// WithinLimit reports whether n fits a numeric capability.
func WithinLimit(n, limit int) bool {
	return limit == Unlimited || n <= limit
}

func contains(set []string, value string) bool {
	for _, s := range set {
		if s == All || s == value {
			return true
		}
	}

	return false
}
