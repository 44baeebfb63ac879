// Package authtest provides a fake of the Microsoft, Xbox Live and
// Minecraft services endpoints for tests.
package authtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quasar/mcauth/internal/api"
	"github.com/quasar/mcauth/internal/core"
)

// Now is the instant every fake token is issued at.
var Now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// GameTokenExpiry is the exp claim of the fake game access token.
var GameTokenExpiry = Now.Add(24 * time.Hour)

// SkinTexture is served for every skin URL.
var SkinTexture = []byte("fake-png-texture")

// Provider is a fake identity provider. Fields may be changed between
// runs; they are read under the provider's lock.
type Provider struct {
	Server *httptest.Server

	mu sync.Mutex

	// UserHash is the uhs claim of the user token.
	UserHash string
	// XSTSUserHash overrides the uhs claim per relying party.
	XSTSUserHash map[string]string
	// XErr makes XSTS for a relying party fail with a 401 and this code.
	XErr map[string]int64
	// XSTSBody replaces the XSTS success body per relying party.
	XSTSBody map[string]string
	// ProfileName is the profile served; empty means 404.
	ProfileName string
	// RevokedRefresh makes the refresh grant fail with invalid_grant.
	RevokedRefresh bool
	// ServicesStatus makes every api.minecraftservices.com call fail
	// with this status when non-zero.
	ServicesStatus int
	// TextureStatus makes texture downloads fail with this status when
	// non-zero.
	TextureStatus int

	skinID      string
	skinVariant string
	activeCape  string
	calls       []string
	// Block, when set, is waited on before answering any request.
	Block chan struct{}
}

// NewProvider starts a provider that is closed when the test ends.
func NewProvider(t testing.TB) *Provider {
	p := &Provider{
		UserHash:    "1234567890",
		ProfileName: "Notch",
		skinID:      "skin1",
		skinVariant: "CLASSIC",
	}
	p.Server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.Server.Close)
	return p
}

// Endpoints points at the fake.
func (p *Provider) Endpoints() api.Endpoints {
	return api.EndpointsAt(p.Server.URL)
}

// Calls returns the request paths seen so far, as "METHOD /path".
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Called reports whether any request hit path.
func (p *Provider) Called(path string) bool {
	for _, c := range p.Calls() {
		if strings.HasSuffix(c, " "+path) {
			return true
		}
	}
	return false
}

// Set runs fn under the provider's lock.
func (p *Provider) Set(fn func(p *Provider)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
}

func (p *Provider) serve(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.calls = append(p.calls, r.Method+" "+r.URL.Path)
	block := p.Block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-r.Context().Done():
			return
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if strings.HasPrefix(r.URL.Path, "/minecraft/") || strings.HasPrefix(r.URL.Path, "/entitlements/") ||
		strings.HasPrefix(r.URL.Path, "/authentication/") {
		if p.ServicesStatus != 0 {
			w.WriteHeader(p.ServicesStatus)
			return
		}
	}

	switch r.URL.Path {
	case "/consumers/oauth2/v2.0/devicecode":
		writeJSON(w, http.StatusOK, api.DeviceCodeResponse{
			DeviceCode:      "device-code",
			UserCode:        "ABCD-EFGH",
			VerificationURI: "https://microsoft.com/link",
			ExpiresIn:       60,
			Interval:        1,
		})
	case "/consumers/oauth2/v2.0/token":
		p.serveMSAToken(w, r)
	case "/user/authenticate":
		writeJSON(w, http.StatusOK, p.xToken("user-token", p.UserHash, nil))
	case "/xsts/authorize":
		p.serveXSTS(w, r)
	case "/authentication/login_with_xbox":
		p.serveLogin(w, r)
	case "/entitlements/mcstore":
		writeJSON(w, http.StatusOK, map[string]any{
			"items": []map[string]string{
				{"name": "product_minecraft", "signature": "sig"},
				{"name": "game_minecraft", "signature": "sig"},
			},
		})
	case "/minecraft/profile":
		p.serveProfile(w, r)
	case "/minecraft/profile/skins":
		p.serveSkinUpload(w, r)
	case "/minecraft/profile/capes/active":
		if r.Method == http.MethodDelete {
			p.activeCape = ""
		} else {
			var req api.CapeRequest
			json.NewDecoder(r.Body).Decode(&req)
			p.activeCape = req.CapeID
		}
		writeJSON(w, http.StatusOK, p.profile())
	default:
		if strings.HasPrefix(r.URL.Path, "/textures/") {
			if p.TextureStatus != 0 {
				w.WriteHeader(p.TextureStatus)
				return
			}
			w.Write(SkinTexture)
			return
		}
		http.NotFound(w, r)
	}
}

func (p *Provider) serveMSAToken(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	if r.PostForm.Get("grant_type") == "refresh_token" && p.RevokedRefresh {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "The refresh token has expired.",
		})
		return
	}
	writeJSON(w, http.StatusOK, api.MSATokenResponse{
		AccessToken:  "msa-access",
		RefreshToken: "msa-refresh",
		ExpiresIn:    3600,
	})
}

func (p *Provider) serveXSTS(w http.ResponseWriter, r *http.Request) {
	var req api.XboxAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	rp := req.RelyingParty

	if code, ok := p.XErr[rp]; ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"Identity": "0",
			"XErr":     code,
			"Message":  "",
			"Redirect": "https://start.ui.xboxlive.com/",
		})
		return
	}
	if body, ok := p.XSTSBody[rp]; ok {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
		return
	}

	uhs := p.UserHash
	if override, ok := p.XSTSUserHash[rp]; ok {
		uhs = override
	}
	var extra map[string]string
	if rp == core.RelyingPartyXbox {
		extra = map[string]string{"gtg": "Steve Gamer", "xid": "2535428504476914", "agg": "Adult"}
	}
	writeJSON(w, http.StatusOK, p.xToken("xsts-"+rp, uhs, extra))
}

func (p *Provider) xToken(token, uhs string, extra map[string]string) map[string]any {
	xui := map[string]string{"uhs": uhs}
	for k, v := range extra {
		xui[k] = v
	}
	return map[string]any{
		"IssueInstant": Now.Format(time.RFC3339Nano),
		"NotAfter":     Now.Add(16 * time.Hour).Format(time.RFC3339Nano),
		"Token":        token,
		"DisplayClaims": map[string]any{
			"xui": []map[string]string{xui},
		},
	}
}

func (p *Provider) serveLogin(w http.ResponseWriter, r *http.Request) {
	var req api.MinecraftAuthRequest
	json.NewDecoder(r.Body).Decode(&req)
	if !strings.HasPrefix(req.IdentityToken, "XBL3.0 x="+p.UserHash+";") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(Now),
		ExpiresAt: jwt.NewNumericDate(GameTokenExpiry),
		Subject:   "game-user",
	})
	signed, _ := token.SignedString([]byte("test-secret"))
	writeJSON(w, http.StatusOK, api.MinecraftAuthResponse{
		Username:    "game-user",
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   86400,
	})
}

func (p *Provider) serveProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req api.CreateProfileRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.ProfileName == "taken" {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"path":    "/minecraft/profile",
				"error":   "FORBIDDEN",
				"details": map[string]string{"status": "DUPLICATE"},
			})
			return
		}
		p.ProfileName = req.ProfileName
		writeJSON(w, http.StatusOK, p.profile())
		return
	}

	if p.ProfileName == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"path":  "/minecraft/profile",
			"error": "NOT_FOUND",
		})
		return
	}
	writeJSON(w, http.StatusOK, p.profile())
}

func (p *Provider) serveSkinUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if _, _, err := r.FormFile("file"); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	p.skinID = "skin2"
	p.skinVariant = strings.ToUpper(r.FormValue("variant"))
	writeJSON(w, http.StatusOK, p.profile())
}

func (p *Provider) profile() api.MinecraftProfile {
	prof := api.MinecraftProfile{
		ID:   "069a79f444e94726a5befca90e38aaf5",
		Name: p.ProfileName,
		Skins: []api.ProfileSkin{{
			ID:      p.skinID,
			State:   "ACTIVE",
			URL:     p.Server.URL + "/textures/" + p.skinID,
			Variant: p.skinVariant,
		}},
	}
	for _, id := range []string{"cape-migrator", "cape-vanilla"} {
		state := "INACTIVE"
		if id == p.activeCape {
			state = "ACTIVE"
		}
		prof.Capes = append(prof.Capes, api.ProfileCape{
			ID:    id,
			State: state,
			URL:   p.Server.URL + "/textures/" + id,
			Alias: strings.TrimPrefix(id, "cape-"),
		})
	}
	return prof
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
