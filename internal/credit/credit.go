// Package credit provides the credit meter: balance checks against the
// external ledger and the single end-of-run charge commit.
package credit

import "context"

// Floor is the minimum balance required to start a run at all, checked
// once before a run enters the running state.
const Floor = 0.1

// Meter reads available balance and commits charges against the ledger.
// The engine commits once per run with the sum of executed step costs, so a
// crash mid-run can never double-charge.
type Meter interface {
	// Balance returns the credits currently available to the user.
	Balance(ctx context.Context, userID string) (float64, error)

	// Commit charges the user. Amount is always >= 0.
	Commit(ctx context.Context, userID string, amount float64) error
}
