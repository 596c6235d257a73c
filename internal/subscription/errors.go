package subscription

import "errors"

// ErrCapacityExceeded is returned by AddSub when the table already holds
// MaxSubs live entries.
var ErrCapacityExceeded = errors.New("subscription: capacity exceeded")

// ErrAlreadySubscribed is returned when the same address is added twice for
// the same (connection, event) pair.
var ErrAlreadySubscribed = errors.New("subscription: address already subscribed")

// ErrNotAnAccount is returned when the subscribed address is not a plain
// externally-owned account.
var ErrNotAnAccount = errors.New("subscription: address is not an account")

// ErrNotAContract is returned when an entry in the token filter is actually
// an account rather than a contract.
var ErrNotAContract = errors.New("subscription: token address is not a contract")
