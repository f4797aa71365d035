package usage

import "time"

// Feature names a plan-gated capability.
type Feature string

const (
	// FeatureCustomStyling gates theme colors and border styles beyond the
	// defaults.
	FeatureCustomStyling Feature = "custom_styling"
	// FeatureCustomFont gates font selection.
	FeatureCustomFont Feature = "custom_font"
	// FeatureAIAssist gates AI text generation.
	FeatureAIAssist Feature = "ai_assist"
)

// Entitlements is a user's plan consumption snapshot.
type Entitlements struct {
	Plan          string    `json:"plan"`
	MaxDocuments  int       `json:"maxDocuments"` // -1 means unlimited
	AICredits     int       `json:"aiCredits"`
	AICreditsUsed int       `json:"aiCreditsUsed"`
	ResetsAt      time.Time `json:"resetsAt"`
}

// HasFeature reports whether the snapshot's plan includes a feature.
func (e Entitlements) HasFeature(f Feature) bool {
	plan, ok := Plans[e.Plan]
	if !ok {
		return false
	}
	_, has := plan.Features[f]
	return has
}

// Plan defines the shape of a subscription tier.
type Plan struct {
	Name         string
	MaxDocuments int
	AICredits    int
	Features     map[Feature]struct{}
}

// Plans is the tier catalog.
var Plans = map[string]Plan{
	"Free": {
		Name:         "Free",
		MaxDocuments: 2,
		AICredits:    0,
		Features:     map[Feature]struct{}{},
	},
	"Pro": {
		Name:         "Pro",
		MaxDocuments: -1,
		AICredits:    200,
		Features: map[Feature]struct{}{
			FeatureCustomStyling: {},
			FeatureCustomFont:    {},
			FeatureAIAssist:      {},
		},
	},
}
