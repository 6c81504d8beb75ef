// Package quota gates analyses for free accounts.
package quota

import "fmt"

// Limit is the lifetime number of analyses a free account may run
const Limit = 10

// Unlimited is reported by Remaining for subscribed accounts
const Unlimited = -1

// ExceededError is returned when a free account has used up its analyses
type ExceededError struct {
	Limit int
	Used  int
}

func (e ExceededError) Error() string {
	return fmt.Sprintf("free usage limit reached (%d/%d)", e.Used, e.Limit)
}

// CanProceed reports whether another analysis is allowed
func CanProceed(usage int, subscribed bool) bool {
	return subscribed || usage < Limit
}

// Check returns ExceededError when CanProceed is false
func Check(usage int, subscribed bool) error {
	if CanProceed(usage, subscribed) {
		return nil
	}
	return ExceededError{Limit: Limit, Used: usage}
}

// Remaining returns the free analyses left, or Unlimited for subscribers
func Remaining(usage int, subscribed bool) int {
	if subscribed {
		return Unlimited
	}
	if r := Limit - usage; r > 0 {
		return r
	}
	return 0
}
