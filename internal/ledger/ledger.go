// Package ledger computes expense splits, per-member balances and the
// transfers that settle them. Amounts are in minor currency units.
package ledger

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrNoParticipants    = errors.New("at least one participant is required")
	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrDuplicateMember   = errors.New("participant listed more than once")
	ErrSharesMismatch    = errors.New("shares do not add up to the expense amount")
	ErrNegativeShare     = errors.New("shares must not be negative")
	ErrAmountTooLarge    = fmt.Errorf("amount must not exceed %d", MaxAmount)
)

// MaxAmount caps a single expense so that summing every expense of a group
// stays far inside int64.
const MaxAmount int64 = 100_000_000_000

// Share is one member's portion of an expense
type Share struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
}

// Entry is an expense reduced to what the ledger needs
type Entry struct {
	PaidBy string
	Amount int64
	Shares []Share
}

// Balance is a member's net position: positive means the group owes them
type Balance struct {
	UserID string `json:"user_id"`
	Net    int64  `json:"net"`
}

// Transfer settles part of a debt
type Transfer struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// SplitEqual divides total across participants. Leftover minor units go to
// the first participants in the given order.
func SplitEqual(total int64, participants []string) ([]Share, error) {
	if total <= 0 {
		return nil, ErrNonPositiveAmount
	}
	if total > MaxAmount {
		return nil, ErrAmountTooLarge
	}
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}
	if err := checkUnique(participants); err != nil {
		return nil, err
	}

	n := int64(len(participants))
	base := total / n
	remainder := total % n

	shares := make([]Share, len(participants))
	for i, userID := range participants {
		amount := base
		if int64(i) < remainder {
			amount++
		}
		shares[i] = Share{UserID: userID, Amount: amount}
	}
	return shares, nil
}

// ValidateExact checks explicit shares against total
func ValidateExact(total int64, shares []Share) error {
	if total <= 0 {
		return ErrNonPositiveAmount
	}
	if total > MaxAmount {
		return ErrAmountTooLarge
	}
	if len(shares) == 0 {
		return ErrNoParticipants
	}

	ids := make([]string, len(shares))
	var sum int64
	for i, share := range shares {
		if share.Amount < 0 {
			return ErrNegativeShare
		}
		if share.Amount > total-sum {
			return fmt.Errorf("%w: shares exceed %d", ErrSharesMismatch, total)
		}
		ids[i] = share.UserID
		sum += share.Amount
	}
	if err := checkUnique(ids); err != nil {
		return err
	}
	if sum != total {
		return fmt.Errorf("%w: got %d, want %d", ErrSharesMismatch, sum, total)
	}
	return nil
}

// Balances returns each member's net position, sorted by user ID. Members
// with no activity are included with a zero balance.
func Balances(members []string, entries []Entry) []Balance {
	net := make(map[string]int64, len(members))
	for _, m := range members {
		net[m] = 0
	}

	for _, e := range entries {
		net[e.PaidBy] += e.Amount
		for _, s := range e.Shares {
			net[s.UserID] -= s.Amount
		}
	}

	balances := make([]Balance, 0, len(net))
	for userID, amount := range net {
		balances = append(balances, Balance{UserID: userID, Net: amount})
	}
	sort.Slice(balances, func(i, j int) bool {
		return balances[i].UserID < balances[j].UserID
	})
	return balances
}

// Settle pairs the largest debtor with the largest creditor until every
// balance is zero. The result has at most len(balances)-1 transfers.
func Settle(balances []Balance) []Transfer {
	var debtors, creditors []Balance
	for _, b := range balances {
		switch {
		case b.Net < 0:
			debtors = append(debtors, Balance{UserID: b.UserID, Net: -b.Net})
		case b.Net > 0:
			creditors = append(creditors, b)
		}
	}

	byAmount := func(list []Balance) {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Net != list[j].Net {
				return list[i].Net > list[j].Net
			}
			return list[i].UserID < list[j].UserID
		})
	}

	var transfers []Transfer
	for len(debtors) > 0 && len(creditors) > 0 {
		byAmount(debtors)
		byAmount(creditors)

		d, c := &debtors[0], &creditors[0]
		amount := min(d.Net, c.Net)
		transfers = append(transfers, Transfer{From: d.UserID, To: c.UserID, Amount: amount})

		d.Net -= amount
		c.Net -= amount
		if d.Net == 0 {
			debtors = debtors[1:]
		}
		if c.Net == 0 {
			creditors = creditors[1:]
		}
	}
	return transfers
}

func checkUnique(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateMember, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
