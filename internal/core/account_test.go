package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func onlineAccount() *Account {
	return &Account{
		InternalID: "abc123",
		Type:       AccountTypeMSA,
		MSAToken: Token{
			Value:        "msa",
			RefreshToken: "refresh",
			IssuedAt:     testNow,
			ExpiresAt:    testNow.Add(time.Hour),
		},
		UserToken: Token{
			Value:     "user",
			ExpiresAt: testNow.Add(14 * 24 * time.Hour),
			Extra:     map[string]string{"uhs": "1234"},
		},
		XboxAPIToken: Token{
			Value:     "xbox",
			ExpiresAt: testNow.Add(16 * time.Hour),
			Extra:     map[string]string{"uhs": "1234", "gtg": "Steve Gamer", "xid": "2535"},
		},
		GameToken: Token{
			Value:     "game",
			ExpiresAt: testNow.Add(24 * time.Hour),
		},
		Profile: Profile{
			ID:   "069a79f444e94726a5befca90e38aaf5",
			Name: "Notch",
			Skin: Skin{ID: "skin1", Variant: SkinClassic, Data: []byte{1, 2, 3}},
			Capes: []Cape{
				{ID: "cape1", Alias: "Migrator"},
			},
			CurrentCape: "cape1",
		},
		Entitlement: Entitlement{OwnsMinecraft: true, CanPlayMinecraft: true},
	}
}

func TestToken_IsValid(t *testing.T) {
	assert.False(t, Token{}.IsValid())
	assert.False(t, Token{Value: "x"}.IsValid(), "value without expiry is not a token")
	assert.False(t, Token{ExpiresAt: testNow}.IsValid())
	assert.True(t, Token{Value: "x", ExpiresAt: testNow}.IsValid())
}

func TestAccount_State(t *testing.T) {
	tests := []struct {
		name  string
		setup func(a *Account)
		want  AccountState
	}{
		{"online", func(a *Account) {}, StateOnline},
		{"no tokens", func(a *Account) { *a = Account{InternalID: "x"} }, StateUnknown},
		{"expired", func(a *Account) { a.GameToken.ExpiresAt = testNow.Add(-time.Minute) }, StateExpired},
		{"inside expiry buffer", func(a *Account) { a.GameToken.ExpiresAt = testNow.Add(2 * time.Minute) }, StateExpired},
		{"banned", func(a *Account) { a.SetError(FailureHardTerminal, ReasonBanned, "banned") }, StateDisabled},
		{"region", func(a *Account) { a.SetError(FailureHardTerminal, ReasonRegionBlocked, "blocked") }, StateDisabled},
		{"unknown code", func(a *Account) { a.SetError(FailureHardTerminal, ReasonUnknownCode, "?") }, StateDisabled},
		{"underage", func(a *Account) { a.SetError(FailureHardTerminal, ReasonUnderage, "family") }, StateRequiresAction},
		{"terms", func(a *Account) { a.SetError(FailureHardTerminal, ReasonTermsOfService, "tos") }, StateRequiresAction},
		{"gone", func(a *Account) { a.SetError(FailureHardTerminal, ReasonCredentialsGone, "gone") }, StateGone},
		{"soft failure keeps tokens usable", func(a *Account) { a.SetError(FailureSoftTerminal, ReasonNone, "hash") }, StateOnline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := onlineAccount()
			tt.setup(acc)
			assert.Equal(t, tt.want, acc.State(testNow))
		})
	}
}

func TestAccount_ShouldRefresh(t *testing.T) {
	acc := onlineAccount()
	assert.False(t, acc.ShouldRefresh(testNow))

	acc.GameToken.ExpiresAt = testNow.Add(6 * time.Hour)
	assert.True(t, acc.ShouldRefresh(testNow))

	blank := NewMSAAccount()
	assert.False(t, blank.ShouldRefresh(testNow), "nothing to refresh with")
}

func TestAccount_RelyingPartyToken(t *testing.T) {
	acc := onlineAccount()
	assert.Same(t, &acc.XboxAPIToken, acc.RelyingPartyToken(RelyingPartyXbox))
	assert.Same(t, &acc.ServicesToken, acc.RelyingPartyToken(RelyingPartyServices))
	assert.Nil(t, acc.RelyingPartyToken("rp://elsewhere"))
}

func TestAccount_Queries(t *testing.T) {
	acc := onlineAccount()
	assert.Equal(t, "Steve Gamer", acc.GamerTag())
	assert.Equal(t, "2535", acc.XID())
	assert.Equal(t, "game", acc.AccessToken())
	assert.True(t, acc.HasProfile())
	assert.Equal(t, "Notch", acc.DisplayName())

	acc.Profile = Profile{}
	assert.Equal(t, "Steve Gamer", acc.DisplayName())
}

func TestAccount_JSONRoundTrip(t *testing.T) {
	acc := onlineAccount()
	acc.SetError(FailureSoftTerminal, ReasonNone, "server hiccup")

	data, err := json.Marshal(acc)
	require.NoError(t, err)

	var loaded Account
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, acc, &loaded)
}

func TestAccount_JSONPreservesUnknownFields(t *testing.T) {
	input := []byte(`{
		"internalId": "abc",
		"type": "msa",
		"entitlement": {"ownsMinecraft": true, "canPlayMinecraft": false},
		"futureField": {"nested": [1, 2, 3]},
		"anotherOne": "kept"
	}`)

	var acc Account
	require.NoError(t, json.Unmarshal(input, &acc))
	assert.Equal(t, "abc", acc.InternalID)
	assert.True(t, acc.Entitlement.OwnsMinecraft)

	out, err := json.Marshal(&acc)
	require.NoError(t, err)

	var obj map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &obj))
	assert.JSONEq(t, `{"nested":[1,2,3]}`, string(obj["futureField"]))
	assert.JSONEq(t, `"kept"`, string(obj["anotherOne"]))
}

func TestAccount_JSONPreservesNestedUnknownFields(t *testing.T) {
	input := []byte(`{
		"internalId": "abc",
		"type": "msa",
		"msa": {"token": "t", "expiresAt": "2030-01-01T00:00:00Z", "futureNested": 42},
		"userToken": {"token": "u", "expiresAt": "2030-01-01T00:00:00Z", "extra": {"uhs": "1234"}, "scope": "xbl"},
		"profile": {
			"id": "p",
			"name": "n",
			"futureProfileKey": "x",
			"skin": {"id": "s", "url": "https://textures/s", "futureSkinKey": true}
		},
		"entitlement": {"ownsMinecraft": true, "canPlayMinecraft": true, "gamePass": false}
	}`)

	var acc Account
	require.NoError(t, json.Unmarshal(input, &acc))
	assert.Equal(t, "t", acc.MSAToken.Value)
	assert.Equal(t, "1234", acc.UserToken.UserHash())
	assert.Equal(t, "s", acc.Profile.Skin.ID)

	// A refreshed credential keeps the keys attached to its slot.
	acc.MSAToken.Replace(Token{Value: "t2", ExpiresAt: time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)})

	out, err := json.Marshal(acc.Clone())
	require.NoError(t, err)

	var doc struct {
		MSA         map[string]json.RawMessage `json:"msa"`
		UserToken   map[string]json.RawMessage `json:"userToken"`
		Profile     map[string]json.RawMessage `json:"profile"`
		Entitlement map[string]json.RawMessage `json:"entitlement"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.JSONEq(t, `42`, string(doc.MSA["futureNested"]))
	assert.JSONEq(t, `"t2"`, string(doc.MSA["token"]))
	assert.JSONEq(t, `"xbl"`, string(doc.UserToken["scope"]))
	assert.JSONEq(t, `"x"`, string(doc.Profile["futureProfileKey"]))
	assert.JSONEq(t, `{"id":"s","url":"https://textures/s","futureSkinKey":true}`, string(doc.Profile["skin"]))
	assert.JSONEq(t, `false`, string(doc.Entitlement["gamePass"]))
}

func TestAccount_CloneIsDeep(t *testing.T) {
	acc := onlineAccount()
	c := acc.Clone()

	c.UserToken.Extra["uhs"] = "changed"
	c.Profile.Skin.Data[0] = 9
	c.Profile.Capes[0].ID = "other"

	assert.Equal(t, "1234", acc.UserToken.UserHash())
	assert.Equal(t, byte(1), acc.Profile.Skin.Data[0])
	assert.Equal(t, "cape1", acc.Profile.Capes[0].ID)
}

func TestNewInternalID(t *testing.T) {
	a, b := NewInternalID(), NewInternalID()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
