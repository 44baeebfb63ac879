package core

// FailureKind is the error taxonomy shared by every authentication step.
type FailureKind string

const (
	FailureNone FailureKind = ""

	// FailureTransient means the same step can be retried later without
	// losing anything (unreachable host, malformed error payload).
	FailureTransient FailureKind = "transient"

	// FailureSoftTerminal stops the run; the user may retry the whole
	// operation (hash mismatch, unparseable success response).
	FailureSoftTerminal FailureKind = "soft"

	// FailureHardTerminal stops the run; the account needs to log in again
	// or is blocked by the provider.
	FailureHardTerminal FailureKind = "hard"

	FailureBusy      FailureKind = "busy"
	FailureCancelled FailureKind = "cancelled"
)

// FailureReason narrows a hard failure down to what the provider said.
type FailureReason string

const (
	ReasonNone FailureReason = ""

	// The user can fix these outside of the launcher.
	ReasonFamilyPermission FailureReason = "family_permission"
	ReasonNoLicense        FailureReason = "no_license"
	ReasonTermsOfService   FailureReason = "terms_of_service"
	ReasonAgeVerification  FailureReason = "age_verification"
	ReasonUnderage         FailureReason = "underage"

	// Nothing the user does in the launcher will fix these.
	ReasonBanned        FailureReason = "banned"
	ReasonRegionBlocked FailureReason = "region_blocked"
	ReasonPlaytimeLimit FailureReason = "playtime_limit"
	ReasonUnknownCode   FailureReason = "unknown_code"

	// Stored credentials are no longer accepted.
	ReasonCredentialsGone FailureReason = "credentials_gone"
)

// UserActionable reports whether the user can resolve the reason on
// their own (accept terms, prove age, ask a parent, buy the game).
func (r FailureReason) UserActionable() bool {
	switch r {
	case ReasonFamilyPermission, ReasonNoLicense, ReasonTermsOfService,
		ReasonAgeVerification, ReasonUnderage:
		return true
	}
	return false
}
