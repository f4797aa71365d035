package usage

import "errors"

// ErrLimitReached indicates the user ran out of AI credits for the period.
var ErrLimitReached = errors.New("limit reached")

// ErrUpgradeRequired indicates the user's plan does not include a feature.
var ErrUpgradeRequired = errors.New("upgrade required")
