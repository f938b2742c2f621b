package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTier(t *testing.T) {
	tests := []struct {
		name     string
		tags     []string
		loggedIn bool
		want     Tier
	}{
		{name: "anonymous", tags: nil, loggedIn: false, want: TierGuest},
		{name: "anonymous with tags", tags: []string{"pro_user"}, loggedIn: false, want: TierGuest},
		{name: "no tags", tags: []string{"newsletter"}, loggedIn: true, want: TierFree},
		{name: "free and agency", tags: []string{"free_user", "agency_user"}, loggedIn: true, want: TierAgency},
		{name: "pro", tags: []string{"pro_user"}, loggedIn: true, want: TierPro},
		{name: "everything", tags: []string{"pro_user", "enterprise_user", "agency_user"}, loggedIn: true, want: TierEnterprise},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveTier(tt.tags, tt.loggedIn))
		})
	}
}

func TestPolicy_Checks(t *testing.T) {
	p := DefaultPolicy()

	assert.True(t, p.CanExportFormat(TierGuest, "pdf"))
	assert.False(t, p.CanExportFormat(TierGuest, "png"))
	assert.True(t, p.CanExportFormat(TierPro, "png"))
	assert.False(t, p.CanExportFormat(TierPro, "svg"))
	assert.True(t, p.CanExportFormat(TierEnterprise, "anything"))

	assert.True(t, p.CanAccessTemplate(TierFree, "minimal"))
	assert.False(t, p.CanAccessTemplate(TierFree, "speaker"))
	assert.True(t, p.CanAccessTemplate(TierPro, "speaker"))

	assert.False(t, p.CanAccessFeature(TierFree, FeaturePremiumSections))
	assert.True(t, p.CanAccessFeature(TierAgency, FeatureWhiteLabel))
	assert.True(t, p.CanAccessFeature(TierEnterprise, "anything"))

	assert.Equal(t, Unlimited, p.CapabilitiesFor(TierEnterprise).MaxComponents)
	assert.Equal(t, p.CapabilitiesFor(TierGuest), p.CapabilitiesFor(Tier("platinum")))
}

func TestPolicy_Watermark(t *testing.T) {
	p := DefaultPolicy()

	assert.True(t, p.Watermark(TierGuest))
	assert.True(t, p.Watermark(TierFree))
	assert.False(t, p.Watermark(TierPro))
	assert.False(t, p.Watermark(TierAgency))

	custom := NewPolicy(map[Tier]Capabilities{TierFree: {Features: []string{FeatureWhiteLabel}}})
	assert.False(t, custom.Watermark(TierFree))
}

func TestWithinLimit(t *testing.T) {
	assert.True(t, WithinLimit(1000, Unlimited))
	assert.True(t, WithinLimit(10, 10))
	assert.False(t, WithinLimit(11, 10))
}
