package analysis

import (
	"fmt"

	"github.com/macrosnap/macrosnap/internal/nutrition"
)

// The escalation policy is kept as pure functions over outcomes so it
// can be tested without any network. The full table:
//
//	primary outcome        secondary?   action
//	success, conf != low   any          accept primary
//	success, conf == low   yes          escalate
//	success, conf == low   no           accept primary
//	failure                yes          escalate
//	failure                no           fail
type action int

const (
	actionAccept action = iota
	actionEscalate
	actionFail
)

func decidePrimary(est *nutrition.MacroEstimate, err error, hasSecondary bool) action {
	switch {
	case err != nil && hasSecondary:
		return actionEscalate
	case err != nil:
		return actionFail
	case est.Confidence == nutrition.ConfidenceLow && hasSecondary:
		return actionEscalate
	default:
		return actionAccept
	}
}

// resolveEscalation picks the surviving estimate after the secondary
// call. Fallback only upgrades: a usable low-confidence primary beats a
// failed secondary and a secondary that is just as uncertain.
func resolveEscalation(primaryEst, secondaryEst *nutrition.MacroEstimate, secondaryErr error) (est *nutrition.MacroEstimate, fromSecondary bool, err error) {
	if secondaryErr != nil {
		if primaryEst != nil {
			return primaryEst, false, nil
		}
		return nil, false, fmt.Errorf("%w: %w", ErrUnableToEstimate, secondaryErr)
	}

	if primaryEst != nil && secondaryEst.Confidence == nutrition.ConfidenceLow {
		return primaryEst, false, nil
	}
	return secondaryEst, true, nil
}
