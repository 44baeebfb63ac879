package auth

import "github.com/quasar/mcauth/internal/core"

// Operation names, used for task names and logs.
const (
	OpLogin         = "login"
	OpRefresh       = "refresh"
	OpCreateProfile = "create profile"
	OpSetSkin       = "set skin"
)

// tokenChain is everything after the Microsoft token: Xbox, XSTS for both
// relying parties, the game token, and what it unlocks.
func tokenChain(env *Env) []Step {
	return []Step{
		NewXboxUserStep(env),
		NewXboxAuthorizationStep(env, core.RelyingPartyXbox, "Xbox"),
		NewXboxAuthorizationStep(env, core.RelyingPartyServices, "Mojang"),
		NewLauncherLoginStep(env),
		NewEntitlementsStep(env),
		NewProfileStep(env),
		NewGetSkinStep(env),
	}
}

// LoginSteps signs in from scratch with the device-code flow.
func LoginSteps(env *Env) []Step {
	return append([]Step{NewMSALoginStep(env)}, tokenChain(env)...)
}

// RefreshSteps renews every token from the stored refresh token.
func RefreshSteps(env *Env) []Step {
	return append([]Step{NewMSARefreshStep(env)}, tokenChain(env)...)
}

// CreateProfileSteps claims a profile name.
func CreateProfileSteps(env *Env, name string) []Step {
	return []Step{
		NewCreateProfileStep(env, name),
		NewGetSkinStep(env),
	}
}

// SetSkinSteps uploads a skin and then selects the cape. An empty capeID
// hides the cape.
func SetSkinSteps(env *Env, model core.SkinModel, texture []byte, capeID string) []Step {
	return []Step{
		NewSetSkinStep(env, model, texture),
		NewSetCapeStep(env, capeID),
	}
}
