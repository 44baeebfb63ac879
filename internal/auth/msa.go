package auth

import (
	"context"
	"time"

	"github.com/quasar/mcauth/internal/api"
	"github.com/quasar/mcauth/internal/core"
)

// MSAStep obtains a Microsoft access token, either by a fresh device-code
// sign in or by redeeming the stored refresh token.
type MSAStep struct {
	env   *Env
	login bool
}

// NewMSALoginStep signs in through the device-code flow.
func NewMSALoginStep(env *Env) *MSAStep {
	return &MSAStep{env: env, login: true}
}

// NewMSARefreshStep redeems the stored refresh token.
func NewMSARefreshStep(env *Env) *MSAStep {
	return &MSAStep{env: env}
}

func (s *MSAStep) Describe() string {
	if s.login {
		return "Logging in with Microsoft account."
	}
	return "Refreshing Microsoft account token."
}

func (s *MSAStep) Perform(ctx context.Context, acc *core.Account) StepResult {
	var (
		resp *api.MSATokenResponse
		err  error
	)
	if s.login {
		resp, err = s.deviceLogin(ctx)
		if c := ClassifyMSA(err, "the sign in"); c.Failed() {
			return failed(c)
		}
	} else {
		if acc.MSAToken.RefreshToken == "" {
			return failed(Classification{
				Kind:    core.FailureHardTerminal,
				Reason:  core.ReasonCredentialsGone,
				Message: "There is no Microsoft refresh token stored for this account. Please log in again.",
			})
		}
		resp, err = s.env.MSA.RefreshToken(ctx, acc.MSAToken.RefreshToken)
		if c := ClassifyMSA(err, "the token refresh"); c.Failed() {
			return failed(c)
		}
	}

	now := s.env.now()
	token := core.Token{
		Value:        resp.AccessToken,
		IssuedAt:     now,
		ExpiresAt:    now.Add(time.Duration(resp.ExpiresIn) * time.Second),
		RefreshToken: resp.RefreshToken,
	}
	if token.RefreshToken == "" {
		// Microsoft does not always rotate the refresh token.
		token.RefreshToken = acc.MSAToken.RefreshToken
	}

	return working("Got Microsoft access token", func(a *core.Account) {
		a.MSAToken.Replace(token)
	})
}

func (s *MSAStep) deviceLogin(ctx context.Context) (*api.MSATokenResponse, error) {
	dc, err := s.env.MSA.RequestDeviceCode(ctx)
	if err != nil {
		return nil, err
	}
	if s.env.DevicePrompt != nil {
		s.env.DevicePrompt(dc)
	}
	return s.env.MSA.PollForToken(ctx, dc)
}
