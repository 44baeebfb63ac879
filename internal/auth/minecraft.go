package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quasar/mcauth/internal/api"
	"github.com/quasar/mcauth/internal/core"
)

// LauncherLoginStep trades the Minecraft services XSTS token for the game
// access token.
type LauncherLoginStep struct {
	env *Env
}

func NewLauncherLoginStep(env *Env) *LauncherLoginStep {
	return &LauncherLoginStep{env: env}
}

func (s *LauncherLoginStep) Describe() string {
	return "Getting Minecraft access token."
}

func (s *LauncherLoginStep) Perform(ctx context.Context, acc *core.Account) StepResult {
	xsts := acc.ServicesToken
	if !xsts.IsValid() {
		return failedSoft("There is no Minecraft services authorization to log in with.")
	}

	body := api.MinecraftAuthRequest{
		IdentityToken: fmt.Sprintf("XBL3.0 x=%s;%s", xsts.UserHash(), xsts.Value),
	}
	resp, err := s.env.Transport.PostJSON(ctx, s.env.Endpoints.MinecraftLogin, body, nil)
	if c := ClassifyServices(resp, err, "logging in"); c.Failed() {
		return failed(c)
	}

	var result api.MinecraftAuthResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil || result.AccessToken == "" {
		return failedSoft("Could not parse the Minecraft login response.")
	}

	issued, expires := tokenLifetime(result.AccessToken)
	now := s.env.now()
	if issued.IsZero() {
		issued = now
	}
	if expires.IsZero() {
		if result.ExpiresIn <= 0 {
			return failedSoft("The Minecraft login response has no expiry.")
		}
		expires = now.Add(time.Duration(result.ExpiresIn) * time.Second)
	}

	token := core.Token{Value: result.AccessToken, IssuedAt: issued, ExpiresAt: expires}
	return working("Got Minecraft access token", func(a *core.Account) {
		a.GameToken.Replace(token)
	})
}

// tokenLifetime reads iat and exp from the game access token, which is a
// JWT. The signature is not ours to check; zero times mean the claims are
// not there.
func tokenLifetime(raw string) (issued, expires time.Time) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, time.Time{}
	}
	if claims.IssuedAt != nil {
		issued = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	return issued, expires
}

// EntitlementsStep checks whether the account owns the game.
type EntitlementsStep struct {
	env *Env
}

func NewEntitlementsStep(env *Env) *EntitlementsStep {
	return &EntitlementsStep{env: env}
}

func (s *EntitlementsStep) Describe() string {
	return "Checking game ownership."
}

func (s *EntitlementsStep) Perform(ctx context.Context, acc *core.Account) StepResult {
	resp, err := s.env.Transport.Get(ctx, s.env.Endpoints.Entitlements, api.Bearer(acc.AccessToken()))
	if c := ClassifyServices(resp, err, "checking game ownership"); c.Failed() {
		return failed(c)
	}

	var result api.EntitlementsResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return failedSoft("Could not parse the entitlements response.")
	}

	var ent core.Entitlement
	for _, item := range result.Items {
		switch item.Name {
		case "product_minecraft":
			ent.OwnsMinecraft = true
		case "game_minecraft":
			ent.CanPlayMinecraft = true
		}
	}
	return working("Got entitlements", func(a *core.Account) {
		a.Entitlement.OwnsMinecraft = ent.OwnsMinecraft
		a.Entitlement.CanPlayMinecraft = ent.CanPlayMinecraft
		// Only legacy Mojang accounts can migrate; an MSA account never can.
		a.CanMigrateToMSA = false
	})
}

// ProfileStep fetches the game profile. An account without a profile is
// not an error: the profile can be created afterwards.
type ProfileStep struct {
	env *Env
}

func NewProfileStep(env *Env) *ProfileStep {
	return &ProfileStep{env: env}
}

func (s *ProfileStep) Describe() string {
	return "Fetching Minecraft profile."
}

func (s *ProfileStep) Perform(ctx context.Context, acc *core.Account) StepResult {
	resp, err := s.env.Transport.Get(ctx, s.env.Endpoints.Profile, api.Bearer(acc.AccessToken()))
	if err == nil && resp.Status == http.StatusNotFound {
		return working("Account has no Minecraft profile yet", func(a *core.Account) {
			a.Profile = core.Profile{}
		})
	}
	if c := ClassifyServices(resp, err, "fetching the profile"); c.Failed() {
		return failed(c)
	}
	return profileResult(resp.Body, "Got Minecraft profile", nil)
}

// profileResult parses a profile body and applies it. skinData, when set,
// becomes the cached texture of the new active skin.
func profileResult(body []byte, msg string, skinData []byte) StepResult {
	var p api.MinecraftProfile
	if err := json.Unmarshal(body, &p); err != nil || p.ID == "" {
		return failedSoft("Could not parse the Minecraft profile response.")
	}
	return working(msg, func(a *core.Account) {
		applyProfile(a, &p, skinData)
	})
}

// applyProfile updates the profile fields in place so keys stored by
// other versions stay on the record.
func applyProfile(a *core.Account, p *api.MinecraftProfile, skinData []byte) {
	profile := &a.Profile
	oldURL, oldData := profile.Skin.URL, profile.Skin.Data

	profile.ID, profile.Name = p.ID, p.Name
	profile.Skin.ID, profile.Skin.URL, profile.Skin.Variant, profile.Skin.Data = "", "", "", nil
	for _, s := range p.Skins {
		if s.State != "ACTIVE" {
			continue
		}
		profile.Skin.ID, profile.Skin.URL, profile.Skin.Variant = s.ID, s.URL, core.SkinModel(s.Variant)
		break
	}
	switch {
	case skinData != nil:
		profile.Skin.Data = skinData
	case profile.Skin.URL != "" && profile.Skin.URL == oldURL:
		profile.Skin.Data = oldData
	}

	profile.Capes, profile.CurrentCape = nil, ""
	for _, c := range p.Capes {
		profile.Capes = append(profile.Capes, core.Cape{ID: c.ID, URL: c.URL, Alias: c.Alias})
		if c.State == "ACTIVE" {
			profile.CurrentCape = c.ID
		}
	}
}

// GetSkinStep downloads the texture of the active skin.
type GetSkinStep struct {
	env *Env
}

func NewGetSkinStep(env *Env) *GetSkinStep {
	return &GetSkinStep{env: env}
}

func (s *GetSkinStep) Describe() string {
	return "Downloading current skin."
}

func (s *GetSkinStep) Perform(ctx context.Context, acc *core.Account) StepResult {
	skin := acc.Profile.Skin
	if skin.URL == "" {
		return working("No skin to download", nil)
	}
	if len(skin.Data) > 0 {
		return working("Skin already cached", nil)
	}

	resp, err := s.env.Transport.Get(ctx, skin.URL, nil)
	if c := ClassifyDownload(resp, err, "the skin"); c.Failed() {
		return failed(c)
	}
	data := resp.Body
	return working("Got skin", func(a *core.Account) {
		if a.Profile.Skin.URL == skin.URL {
			a.Profile.Skin.Data = data
		}
	})
}

// CreateProfileStep creates the game profile for an account that owns the
// game but has never picked a name.
type CreateProfileStep struct {
	env  *Env
	name string
}

func NewCreateProfileStep(env *Env, name string) *CreateProfileStep {
	return &CreateProfileStep{env: env, name: name}
}

func (s *CreateProfileStep) Describe() string {
	return fmt.Sprintf("Creating Minecraft profile %s.", s.name)
}

func (s *CreateProfileStep) Perform(ctx context.Context, acc *core.Account) StepResult {
	if acc.HasProfile() {
		return failedSoft("This account already has the profile %s.", acc.Profile.Name)
	}

	body := api.CreateProfileRequest{ProfileName: s.name}
	resp, err := s.env.Transport.PostJSON(ctx, s.env.Endpoints.Profile, body, api.Bearer(acc.AccessToken()))
	if err == nil && resp.Status == http.StatusBadRequest {
		var e api.ServicesError
		_ = json.Unmarshal(resp.Body, &e)
		switch e.Details.Status {
		case "DUPLICATE":
			return failedSoft("The profile name %s is already taken.", s.name)
		case "NOT_ALLOWED":
			return failedSoft("The profile name %s is not allowed.", s.name)
		}
	}
	if c := ClassifyServices(resp, err, "creating the profile"); c.Failed() {
		return failed(c)
	}
	return profileResult(resp.Body, "Created Minecraft profile", nil)
}
