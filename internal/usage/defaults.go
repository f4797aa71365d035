package usage

import "time"

const creditPeriod = 30 * 24 * time.Hour

func defaultEntitlements() Entitlements {
	plan := Plans["Free"]
	return Entitlements{
		Plan:          plan.Name,
		MaxDocuments:  plan.MaxDocuments,
		AICredits:     plan.AICredits,
		AICreditsUsed: 0,
	}
}
