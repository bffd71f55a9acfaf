// Package selector picks the account that receives an automatic bulk invite.
package selector

import (
	"errors"
	"sort"

	"github.com/xkilldash9x/seatctl/api/schemas"
)

// ErrNoEligibleAccount means no account can take more members right now. It is not retryable.
var ErrNoEligibleAccount = errors.New("no eligible account")

// ProfileChecker reports whether an account has a persistent browser profile.
// *browser.Profiles implements it.
type ProfileChecker interface {
	Exists(accountID string) bool
}

// Select returns the oldest, least-full active account below its member limit that can
// log in without an operator. limit applies to accounts without their own limit.
func Select(accounts []schemas.Account, limit int, profiles ProfileChecker) (schemas.Account, error) {
	candidates := make([]schemas.Account, 0, len(accounts))
	for _, a := range accounts {
		if a.Status == schemas.AccountActive && a.MemberCount < a.EffectiveLimit(limit) {
			candidates = append(candidates, a)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].MemberCount < candidates[j].MemberCount
	})

	for _, a := range candidates {
		if a.HasSession() || (profiles != nil && profiles.Exists(a.ID)) {
			return a, nil
		}
	}
	return schemas.Account{}, ErrNoEligibleAccount
}
