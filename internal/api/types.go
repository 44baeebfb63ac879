package api

import "time"

type XboxAuthRequest struct {
	Properties   XboxAuthProperties `json:"Properties"`
	RelyingParty string             `json:"RelyingParty"`
	TokenType    string             `json:"TokenType"`
}

type XboxAuthProperties struct {
	AuthMethod string   `json:"AuthMethod,omitempty"`
	SiteName   string   `json:"SiteName,omitempty"`
	RpsTicket  string   `json:"RpsTicket,omitempty"`
	SandboxId  string   `json:"SandboxId,omitempty"`
	UserTokens []string `json:"UserTokens,omitempty"`
}

// XboxAuthResponse is returned by both user authentication and XSTS.
type XboxAuthResponse struct {
	IssueInstant  time.Time `json:"IssueInstant"`
	NotAfter      time.Time `json:"NotAfter"`
	Token         string    `json:"Token"`
	DisplayClaims struct {
		XUI []map[string]string `json:"xui"`
	} `json:"DisplayClaims"`
}

// XboxErrorResponse is the body XSTS sends with a 401.
type XboxErrorResponse struct {
	Identity string `json:"Identity"`
	XErr     *int64 `json:"XErr"`
	Message  string `json:"Message"`
	Redirect string `json:"Redirect"`
}

type MinecraftAuthRequest struct {
	IdentityToken string `json:"identityToken"`
}

type MinecraftAuthResponse struct {
	Username    string `json:"username"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type ProfileSkin struct {
	ID      string `json:"id"`
	State   string `json:"state"`
	URL     string `json:"url"`
	Variant string `json:"variant"`
}

type ProfileCape struct {
	ID    string `json:"id"`
	State string `json:"state"`
	URL   string `json:"url"`
	Alias string `json:"alias"`
}

// MinecraftProfile is returned by the profile, skin, cape and profile
// creation endpoints.
type MinecraftProfile struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Skins []ProfileSkin `json:"skins"`
	Capes []ProfileCape `json:"capes"`
}

type EntitlementsResponse struct {
	Items []struct {
		Name      string `json:"name"`
		Signature string `json:"signature"`
	} `json:"items"`
	Signature string `json:"signature"`
	KeyID     string `json:"keyId"`
}

type CreateProfileRequest struct {
	ProfileName string `json:"profileName"`
}

type CapeRequest struct {
	CapeID string `json:"capeId"`
}

// ServicesError is the error body of api.minecraftservices.com.
type ServicesError struct {
	Path             string `json:"path"`
	ErrorType        string `json:"errorType"`
	Error            string `json:"error"`
	ErrorMessage     string `json:"errorMessage"`
	DeveloperMessage string `json:"developerMessage"`
	Details          struct {
		Status string `json:"status"`
	} `json:"details"`
}
