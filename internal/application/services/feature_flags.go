package services

import (
	"os"
)

// FeatureFlags gates the ranking enhancement layers. Each disabled layer
// leaves its multiplier neutral.
type FeatureFlags struct {
	clickBoostEnabled  bool
	entityBoostEnabled bool
	freshnessEnabled   bool
	synonymsEnabled    bool
}

// NewFeatureFlags reads flags from the environment. Everything defaults
// to enabled; set FEATURE_<NAME>=false to turn a layer off.
func NewFeatureFlags() *FeatureFlags {
	return &FeatureFlags{
		clickBoostEnabled:  os.Getenv("FEATURE_CLICK_BOOST") != "false",
		entityBoostEnabled: os.Getenv("FEATURE_ENTITY_BOOST") != "false",
		freshnessEnabled:   os.Getenv("FEATURE_FRESHNESS") != "false",
		synonymsEnabled:    os.Getenv("FEATURE_SYNONYMS") != "false",
	}
}

// NewFeatureFlagsStatic builds flags explicitly, mainly for tests.
func NewFeatureFlagsStatic(clickBoost, entityBoost, freshness, synonyms bool) *FeatureFlags {
	return &FeatureFlags{
		clickBoostEnabled:  clickBoost,
		entityBoostEnabled: entityBoost,
		freshnessEnabled:   freshness,
		synonymsEnabled:    synonyms,
	}
}

func (f *FeatureFlags) ClickBoostEnabled() bool {
	return f.clickBoostEnabled
}

func (f *FeatureFlags) EntityBoostEnabled() bool {
	return f.entityBoostEnabled
}

func (f *FeatureFlags) FreshnessEnabled() bool {
	return f.freshnessEnabled
}

func (f *FeatureFlags) SynonymsEnabled() bool {
	return f.synonymsEnabled
}
