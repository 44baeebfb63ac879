package auth

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"net/http"

	"github.com/quasar/mcauth/internal/api"
	"github.com/quasar/mcauth/internal/core"
)

var xblHeader = http.Header{"x-xbl-contract-version": {"1"}}

// parseXToken reads the token response shared by user authentication and
// XSTS. A token without a value, an expiry or a user hash is rejected.
func parseXToken(body []byte) (core.Token, error) {
	var resp api.XboxAuthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.Token{}, err
	}
	if resp.Token == "" {
		return core.Token{}, errors.New("token missing")
	}
	if resp.NotAfter.IsZero() {
		return core.Token{}, errors.New("NotAfter missing")
	}
	if len(resp.DisplayClaims.XUI) == 0 || resp.DisplayClaims.XUI[0]["uhs"] == "" {
		return core.Token{}, errors.New("uhs claim missing")
	}
	return core.Token{
		Value:     resp.Token,
		IssuedAt:  resp.IssueInstant,
		ExpiresAt: resp.NotAfter,
		Extra:     maps.Clone(resp.DisplayClaims.XUI[0]),
	}, nil
}

// XboxUserStep exchanges the MSA access token for an Xbox user token.
type XboxUserStep struct {
	env *Env
}

func NewXboxUserStep(env *Env) *XboxUserStep {
	return &XboxUserStep{env: env}
}

func (s *XboxUserStep) Describe() string {
	return "Logging in as an Xbox user."
}

func (s *XboxUserStep) Perform(ctx context.Context, acc *core.Account) StepResult {
	if !acc.MSAToken.IsValid() {
		return failedSoft("There is no Microsoft token to log in to Xbox Live with.")
	}

	body := api.XboxAuthRequest{
		Properties: api.XboxAuthProperties{
			AuthMethod: "RPS",
			SiteName:   "user.auth.xboxlive.com",
			RpsTicket:  "d=" + acc.MSAToken.Value,
		},
		RelyingParty: "http://auth.xboxlive.com",
		TokenType:    "JWT",
	}
	resp, err := s.env.Transport.PostJSON(ctx, s.env.Endpoints.XboxUserAuth, body, xblHeader)
	if c := ClassifyXSTS(resp, err, "Xbox user"); c.Failed() {
		return failed(c)
	}

	token, err := parseXToken(resp.Body)
	if err != nil {
		s.env.logger().Warn("cannot parse xbox user token", "error", err)
		return failedSoft("Could not parse the Xbox user authentication response.")
	}

	return working("Got Xbox user token", func(a *core.Account) {
		a.UserToken.Replace(token)
	})
}

// XboxAuthorizationStep gets an XSTS token for one relying party. The
// same step serves every relying party; the party decides which slot of
// the record is written.
type XboxAuthorizationStep struct {
	env          *Env
	relyingParty string
	kind         string
}

// NewXboxAuthorizationStep creates a step authorizing the user token for
// relyingParty. kind is the human name of the service, used in messages.
func NewXboxAuthorizationStep(env *Env, relyingParty, kind string) *XboxAuthorizationStep {
	return &XboxAuthorizationStep{env: env, relyingParty: relyingParty, kind: kind}
}

func (s *XboxAuthorizationStep) Describe() string {
	return "Getting authorization to access " + s.kind + " services."
}

func (s *XboxAuthorizationStep) Perform(ctx context.Context, acc *core.Account) StepResult {
	if acc.RelyingPartyToken(s.relyingParty) == nil {
		return failedSoft("Unsupported relying party %s.", s.relyingParty)
	}
	if !acc.UserToken.IsValid() {
		return failedSoft("There is no Xbox user token to authorize %s services with.", s.kind)
	}

	body := api.XboxAuthRequest{
		Properties: api.XboxAuthProperties{
			SandboxId:  "RETAIL",
			UserTokens: []string{acc.UserToken.Value},
		},
		RelyingParty: s.relyingParty,
		TokenType:    "JWT",
	}
	s.env.logger().Debug("getting authorization token", "relyingParty", s.relyingParty)

	resp, err := s.env.Transport.PostJSON(ctx, s.env.Endpoints.XSTSAuthorize, body, xblHeader)
	if c := ClassifyXSTS(resp, err, s.kind); c.Failed() {
		s.env.logger().Warn("xsts authorization failed", "relyingParty", s.relyingParty, "kind", c.Kind, "reason", c.Reason)
		return failed(c)
	}

	token, err := parseXToken(resp.Body)
	if err != nil {
		s.env.logger().Warn("cannot parse xsts token", "relyingParty", s.relyingParty, "error", err)
		return failedSoft("Could not parse authorization response for access to %s services.", s.kind)
	}

	if token.UserHash() != acc.UserToken.UserHash() {
		return failedSoft("Server has changed %s authorization user hash in the reply. Something is wrong.", s.kind)
	}

	party := s.relyingParty
	return working("Got authorization to access "+party, func(a *core.Account) {
		a.RelyingPartyToken(party).Replace(token)
	})
}
