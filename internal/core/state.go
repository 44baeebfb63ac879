package core

import "time"

// AccountState is derived from the record every time it is queried.
type AccountState int

const (
	StateUnknown AccountState = iota
	StateOnline
	StateExpired
	StateDisabled
	StateGone
	StateRequiresAction
)

func (s AccountState) String() string {
	switch s {
	case StateOnline:
		return "Online"
	case StateExpired:
		return "Expired"
	case StateDisabled:
		return "Disabled"
	case StateGone:
		return "Gone"
	case StateRequiresAction:
		return "Requires action"
	default:
		return "Unknown"
	}
}

const (
	expiryBuffer   = 5 * time.Minute
	refreshHorizon = 12 * time.Hour
)

// State computes the account state from the last failure and token expiry.
func (a *Account) State(now time.Time) AccountState {
	if a.LastErrorKind == FailureHardTerminal {
		switch {
		case a.LastErrorReason == ReasonCredentialsGone:
			return StateGone
		case a.LastErrorReason.UserActionable():
			return StateRequiresAction
		default:
			return StateDisabled
		}
	}
	if !a.GameToken.IsValid() {
		return StateUnknown
	}
	if a.IsExpired(now) {
		return StateExpired
	}
	return StateOnline
}

// IsExpired checks if the game token is expired (with 5m buffer)
func (a *Account) IsExpired(now time.Time) bool {
	return a.GameToken.Expired(now.Add(expiryBuffer))
}

// ShouldRefresh reports whether a refresh run is worth doing now: the
// game token is missing, expired or close to expiring.
func (a *Account) ShouldRefresh(now time.Time) bool {
	if !a.GameToken.IsValid() {
		return a.MSAToken.RefreshToken != ""
	}
	return a.GameToken.Expired(now.Add(refreshHorizon))
}
