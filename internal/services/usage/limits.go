package usage

import (
	"errors"
	"fmt"
	"time"

	"infinitiflow/internal/services/auth"
	"infinitiflow/internal/services/subscription"
)

// LimitType names a quota that can be checked.
type LimitType string

const (
	LimitContent  LimitType = "content"
	LimitWords    LimitType = "words"
	LimitAPICalls LimitType = "apiCalls"
)

var (
	ErrUnknownLimitType = errors.New("unknown limit type")
	ErrLimitReached     = errors.New("usage limit reached")
)

// limit pairs a counter with the ceiling it is compared against.
type limit struct {
	counter func(auth.UsageStats) int64
	ceiling func(subscription.Features) int64
}

var limits = map[LimitType]limit{
	LimitContent: {
		counter: func(u auth.UsageStats) int64 { return u.ContentGenerated },
		ceiling: func(f subscription.Features) int64 { return f.ContentLimit },
	},
	LimitWords: {
		counter: func(u auth.UsageStats) int64 { return u.WordsGenerated },
		ceiling: func(f subscription.Features) int64 { return f.WordsLimit },
	},
	// API calls have no numeric cap: either the plan has API access or it does not.
	LimitAPICalls: {
		counter: func(u auth.UsageStats) int64 { return u.APICalls },
		ceiling: func(f subscription.Features) int64 {
			if f.APIAccess {
				return subscription.Unlimited
			}
			return 0
		},
	},
}

// HasReachedLimit reports whether user has used up the quota for lt in now's month.
// Counters from an earlier month count as zero. The ceiling comes from the plan
// on the user at call time; -1 is never reached.
func HasReachedLimit(user *auth.User, lt LimitType, now time.Time) (bool, error) {
	l, ok := limits[lt]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownLimitType, lt)
	}
	ceiling := l.ceiling(subscription.FeaturesFor(user.Subscription.Plan))
	if ceiling == subscription.Unlimited {
		return false, nil
	}
	return l.counter(user.UsageStats.Current(now)) >= ceiling, nil
}

// Require returns ErrLimitReached naming the first exhausted quota among lts.
func Require(user *auth.User, now time.Time, lts ...LimitType) error {
	for _, lt := range lts {
		reached, err := HasReachedLimit(user, lt, now)
		if err != nil {
			return err
		}
		if reached {
			return fmt.Errorf("%w: %s", ErrLimitReached, lt)
		}
	}
	return nil
}

// Limits are the ceilings of a plan as shown to clients.
type Limits struct {
	Content   int64 `json:"content" example:"10"`
	Words     int64 `json:"words" example:"5000"`
	APIAccess bool  `json:"apiAccess"`
}

// Snapshot is the caller's usage for the current month against their plan.
type Snapshot struct {
	Plan      subscription.Plan  `json:"plan" example:"free"`
	Usage     auth.UsageStats    `json:"usage"`
	Limits    Limits             `json:"limits"`
	Remaining Limits             `json:"remaining"`
	Reached   map[LimitType]bool `json:"reached"`
}

// NewSnapshot computes a Snapshot for user at now.
func NewSnapshot(user *auth.User, now time.Time) Snapshot {
	f := subscription.FeaturesFor(user.Subscription.Plan)
	cur := user.UsageStats.Current(now)

	snap := Snapshot{
		Plan:  user.Subscription.Plan,
		Usage: cur,
		Limits: Limits{
			Content:   f.ContentLimit,
			Words:     f.WordsLimit,
			APIAccess: f.APIAccess,
		},
		Remaining: Limits{
			Content:   remaining(f.ContentLimit, cur.ContentGenerated),
			Words:     remaining(f.WordsLimit, cur.WordsGenerated),
			APIAccess: f.APIAccess,
		},
		Reached: make(map[LimitType]bool, len(limits)),
	}
	for lt := range limits {
		snap.Reached[lt], _ = HasReachedLimit(user, lt, now)
	}
	return snap
}

func remaining(ceiling, used int64) int64 {
	if ceiling == subscription.Unlimited {
		return subscription.Unlimited
	}
	if used >= ceiling {
		return 0
	}
	return ceiling - used
}
