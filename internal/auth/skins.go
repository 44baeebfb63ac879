package auth

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"slices"
	"strings"

	"github.com/quasar/mcauth/internal/api"
	"github.com/quasar/mcauth/internal/core"
)

// SetSkinStep uploads a new skin texture. The texture must already be
// validated; this step does not look at the pixels.
type SetSkinStep struct {
	env     *Env
	model   core.SkinModel
	texture []byte
}

func NewSetSkinStep(env *Env, model core.SkinModel, texture []byte) *SetSkinStep {
	return &SetSkinStep{env: env, model: model, texture: slices.Clone(texture)}
}

func (s *SetSkinStep) Describe() string {
	return "Uploading skin."
}

func (s *SetSkinStep) Perform(ctx context.Context, acc *core.Account) StepResult {
	if !acc.HasProfile() {
		return failedSoft("This account has no Minecraft profile to set a skin on.")
	}

	body, contentType, err := skinForm(s.model, s.texture)
	if err != nil {
		return failedSoft("Could not prepare the skin upload: %v", err)
	}

	header := api.Bearer(acc.AccessToken())
	header.Set("Content-Type", contentType)
	resp, err := s.env.Transport.Do(ctx, api.Request{
		Method: http.MethodPost,
		URL:    s.env.Endpoints.ProfileSkins,
		Header: header,
		Body:   body,
	})
	if c := ClassifyServices(resp, err, "uploading the skin"); c.Failed() {
		return failed(c)
	}
	return profileResult(resp.Body, "Skin uploaded", s.texture)
}

func skinForm(model core.SkinModel, texture []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("variant", strings.ToLower(string(model))); err != nil {
		return nil, "", err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="skin.png"`)
	h.Set("Content-Type", "image/png")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(texture); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// SetCapeStep shows the given cape, or hides the current one when the id
// is empty.
type SetCapeStep struct {
	env    *Env
	capeID string
}

func NewSetCapeStep(env *Env, capeID string) *SetCapeStep {
	return &SetCapeStep{env: env, capeID: capeID}
}

func (s *SetCapeStep) Describe() string {
	if s.capeID == "" {
		return "Hiding cape."
	}
	return "Changing cape."
}

func (s *SetCapeStep) Perform(ctx context.Context, acc *core.Account) StepResult {
	if !acc.HasProfile() {
		return failedSoft("This account has no Minecraft profile to set a cape on.")
	}

	var (
		resp *api.Response
		err  error
	)
	header := api.Bearer(acc.AccessToken())
	if s.capeID == "" {
		resp, err = s.env.Transport.Delete(ctx, s.env.Endpoints.ProfileCape, header)
	} else {
		resp, err = s.env.Transport.PutJSON(ctx, s.env.Endpoints.ProfileCape, api.CapeRequest{CapeID: s.capeID}, header)
	}
	if c := ClassifyServices(resp, err, "changing the cape"); c.Failed() {
		return failed(c)
	}
	return profileResult(resp.Body, "Cape changed", nil)
}
