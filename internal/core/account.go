// Package core contains the account record and the rules derived from it.
// Nothing in here talks to the network.
package core

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AccountType represents the type of account
type AccountType string

const (
	AccountTypeMSA AccountType = "msa"
)

// Relying parties an XSTS token can be scoped to.
const (
	RelyingPartyXbox     = "http://xboxlive.com"
	RelyingPartyServices = "rp://api.minecraftservices.com/"
)

// SkinModel is the player model variant a skin is drawn for.
type SkinModel string

const (
	SkinClassic SkinModel = "CLASSIC"
	SkinSlim    SkinModel = "SLIM"
)

// Token is one credential issued by a provider. A token is either wholly
// absent (zero value) or carries both a value and an expiry.
type Token struct {
	Value        string            `json:"token,omitempty"`
	IssuedAt     time.Time         `json:"issuedAt,omitzero"`
	ExpiresAt    time.Time         `json:"expiresAt,omitzero"`
	RefreshToken string            `json:"refreshToken,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`

	unknown unknownKeys
}

// IsValid reports whether the token has both a value and an expiry.
func (t Token) IsValid() bool {
	return t.Value != "" && !t.ExpiresAt.IsZero()
}

// Expired reports whether the token is past its validity at now.
func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// UserHash returns the uhs claim Xbox embeds in its tokens.
func (t Token) UserHash() string {
	return t.Extra["uhs"]
}

func (t Token) clone() Token {
	t.Extra = maps.Clone(t.Extra)
	t.unknown = t.unknown.clone()
	return t
}

// Skin is the active skin of a profile.
type Skin struct {
	ID      string    `json:"id,omitempty"`
	URL     string    `json:"url,omitempty"`
	Variant SkinModel `json:"variant,omitempty"`
	Data    []byte    `json:"data,omitempty"`

	unknown unknownKeys
}

// Cape is a cape owned by the profile.
type Cape struct {
	ID    string `json:"id"`
	URL   string `json:"url,omitempty"`
	Alias string `json:"alias,omitempty"`
}

// Profile is the game profile attached to the account.
type Profile struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Skin        Skin   `json:"skin,omitzero"`
	Capes       []Cape `json:"capes,omitempty"`
	CurrentCape string `json:"currentCape,omitempty"`

	unknown unknownKeys
}

// Entitlement records what the account owns.
type Entitlement struct {
	OwnsMinecraft    bool `json:"ownsMinecraft"`
	CanPlayMinecraft bool `json:"canPlayMinecraft"`

	unknown unknownKeys
}

// Account is the persistent record of one Microsoft account: every token,
// profile field and entitlement the authentication pipeline produces.
type Account struct {
	InternalID string      `json:"internalId"`
	Type       AccountType `json:"type"`

	MSAToken      Token `json:"msa,omitzero"`
	UserToken     Token `json:"userToken,omitzero"`
	XboxAPIToken  Token `json:"xboxApiToken,omitzero"`
	ServicesToken Token `json:"servicesToken,omitzero"`
	GameToken     Token `json:"gameToken,omitzero"`

	Profile         Profile     `json:"profile,omitzero"`
	Entitlement     Entitlement `json:"entitlement"`
	CanMigrateToMSA bool        `json:"canMigrateToMSA,omitempty"`

	LastError       string        `json:"lastError,omitempty"`
	LastErrorKind   FailureKind   `json:"lastErrorKind,omitempty"`
	LastErrorReason FailureReason `json:"lastErrorReason,omitempty"`

	unknown unknownKeys
}

// NewInternalID generates an id that is never reused across accounts.
func NewInternalID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewMSAAccount returns a blank MSA record with a fresh internal id.
func NewMSAAccount() *Account {
	return &Account{
		InternalID: NewInternalID(),
		Type:       AccountTypeMSA,
	}
}

// RelyingPartyToken returns the slot that holds the XSTS token for the
// given relying party, or nil if the party is not one we store.
func (a *Account) RelyingPartyToken(party string) *Token {
	switch party {
	case RelyingPartyXbox:
		return &a.XboxAPIToken
	case RelyingPartyServices:
		return &a.ServicesToken
	}
	return nil
}

// GamerTag returns the Xbox display name.
func (a *Account) GamerTag() string {
	return a.XboxAPIToken.Extra["gtg"]
}

// XID returns the Xbox user id.
func (a *Account) XID() string {
	return a.XboxAPIToken.Extra["xid"]
}

// AccessToken returns the game access token.
func (a *Account) AccessToken() string {
	return a.GameToken.Value
}

// HasProfile reports whether a game profile exists for the account.
func (a *Account) HasProfile() bool {
	return a.Profile.ID != ""
}

// DisplayName returns the best human name for the account.
func (a *Account) DisplayName() string {
	switch {
	case a.Profile.Name != "":
		return a.Profile.Name
	case a.GamerTag() != "":
		return a.GamerTag()
	default:
		return "(new account)"
	}
}

// SetError records the outcome of the last operation. Passing
// FailureNone clears it.
func (a *Account) SetError(kind FailureKind, reason FailureReason, msg string) {
	a.LastErrorKind = kind
	a.LastErrorReason = reason
	a.LastError = msg
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	c := *a
	c.MSAToken = a.MSAToken.clone()
	c.UserToken = a.UserToken.clone()
	c.XboxAPIToken = a.XboxAPIToken.clone()
	c.ServicesToken = a.ServicesToken.clone()
	c.GameToken = a.GameToken.clone()
	c.Profile.Skin.Data = slices.Clone(a.Profile.Skin.Data)
	c.Profile.Skin.unknown = a.Profile.Skin.unknown.clone()
	c.Profile.Capes = slices.Clone(a.Profile.Capes)
	c.Profile.unknown = a.Profile.unknown.clone()
	c.Entitlement.unknown = a.Entitlement.unknown.clone()
	c.unknown = a.unknown.clone()
	return &c
}
