package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/quasar/mcauth/internal/api"
	"github.com/quasar/mcauth/internal/core"
)

// Classification is the verdict on one provider exchange. The zero value
// means the exchange succeeded.
type Classification struct {
	Kind    core.FailureKind
	Reason  core.FailureReason
	Message string
}

// Failed reports whether the exchange should stop the step.
func (c Classification) Failed() bool {
	return c.Kind != core.FailureNone
}

// XSTS error codes carried in the XErr field of a 401 response.
const (
	XErrBanned           int64 = 2148916227
	XErrFamilyPermission int64 = 2148916229
	XErrNoXboxProfile    int64 = 2148916233
	XErrTermsOfService   int64 = 2148916234
	XErrRegionBlocked    int64 = 2148916235
	XErrProofOfAge       int64 = 2148916236
	XErrPlaytimeLimit    int64 = 2148916237
	XErrUnderage         int64 = 2148916238
)

type xerrEntry struct {
	reason  core.FailureReason
	message string
}

var xerrTable = map[int64]xerrEntry{
	XErrBanned: {
		core.ReasonBanned,
		"Your Xbox Live account has been banned by Microsoft for violating the Xbox Community Standards. " +
			"This may happen if your account was shared or resold.",
	},
	XErrFamilyPermission: {
		core.ReasonFamilyPermission,
		"This Microsoft account is linked to a family and your parent or guardian has not given you permission to play online.",
	},
	XErrNoXboxProfile: {
		core.ReasonNoLicense,
		"This Microsoft account does not have an Xbox Live profile. " +
			"Buy the game on minecraft.net (https://www.minecraft.net/en-us/store/minecraft-java-edition) first.",
	},
	XErrTermsOfService: {
		core.ReasonTermsOfService,
		"This account has not accepted the Xbox Terms of Service. Please log in online and accept them.",
	},
	XErrRegionBlocked: {
		core.ReasonRegionBlocked,
		"Xbox Live is not available in your country. You've been blocked.",
	},
	XErrProofOfAge: {
		core.ReasonAgeVerification,
		"This Microsoft account requires proof of age to play. " +
			"Please log in to https://login.live.com/login.srf to provide proof of age.",
	},
	XErrPlaytimeLimit: {
		core.ReasonPlaytimeLimit,
		"This Microsoft account has reached its playtime limit and has been blocked from logging in.",
	},
	XErrUnderage: {
		core.ReasonUnderage,
		"This Microsoft account is underaged and is not linked to a family. " +
			"Please set up your account according to https://help.minecraft.net/hc/en-us/articles/4408968616077.",
	},
}

// ClassifyXErr maps an XSTS error code to its terminal classification.
// Unknown codes are terminal too and keep the number in the message.
func ClassifyXErr(code int64, kind string) Classification {
	if e, ok := xerrTable[code]; ok {
		return Classification{Kind: core.FailureHardTerminal, Reason: e.reason, Message: e.message}
	}
	return Classification{
		Kind:    core.FailureHardTerminal,
		Reason:  core.ReasonUnknownCode,
		Message: fmt.Sprintf("%s authorization ended with unrecognized provider error %d.", kind, code),
	}
}

// ClassifyXSTS classifies an exchange with Xbox user authentication or
// XSTS. kind names the service being authorized and only shows up in
// messages.
func ClassifyXSTS(resp *api.Response, err error, kind string) Classification {
	if err != nil {
		return classifyTransport(err, fmt.Sprintf("Failed to get authorization for %s services: %v", kind, err))
	}
	if resp.OK() {
		return Classification{}
	}

	switch {
	case resp.Status == http.StatusUnauthorized:
		var body api.XboxErrorResponse
		if err := json.Unmarshal(resp.Body, &body); err != nil {
			return Classification{
				Kind:    core.FailureTransient,
				Message: fmt.Sprintf("Cannot parse %s authorization error response as JSON: %v", kind, err),
			}
		}
		if body.XErr == nil {
			return Classification{
				Kind:    core.FailureTransient,
				Message: fmt.Sprintf("XErr element is missing from %s authorization error response.", kind),
			}
		}
		return ClassifyXErr(*body.XErr, kind)
	case retryableStatus(resp.Status):
		return Classification{
			Kind:    core.FailureTransient,
			Message: fmt.Sprintf("%s authorization is unavailable right now (HTTP %d).", kind, resp.Status),
		}
	default:
		return Classification{
			Kind:    core.FailureSoftTerminal,
			Message: fmt.Sprintf("Failed to get authorization for %s services. HTTP status %d.", kind, resp.Status),
		}
	}
}

// ClassifyServices classifies an exchange with api.minecraftservices.com.
// operation completes the sentence "... while <operation>".
func ClassifyServices(resp *api.Response, err error, operation string) Classification {
	if err != nil {
		return classifyTransport(err, fmt.Sprintf("Failed to reach Minecraft services while %s: %v", operation, err))
	}
	if resp.OK() {
		return Classification{}
	}

	switch {
	case resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden:
		return Classification{
			Kind:    core.FailureHardTerminal,
			Reason:  core.ReasonCredentialsGone,
			Message: fmt.Sprintf("Minecraft services rejected the access token while %s. Please log in again.", operation),
		}
	case retryableStatus(resp.Status):
		return Classification{
			Kind:    core.FailureTransient,
			Message: fmt.Sprintf("Minecraft services are unavailable right now (HTTP %d) while %s.", resp.Status, operation),
		}
	default:
		msg := fmt.Sprintf("Minecraft services returned HTTP %d while %s.", resp.Status, operation)
		if detail := servicesErrorDetail(resp.Body); detail != "" {
			msg = fmt.Sprintf("Minecraft services returned HTTP %d while %s: %s", resp.Status, operation, detail)
		}
		return Classification{Kind: core.FailureSoftTerminal, Message: msg}
	}
}

// ClassifyDownload classifies a plain file download, such as a texture
// from the skin CDN. It never reports a failure reason.
func ClassifyDownload(resp *api.Response, err error, what string) Classification {
	if err != nil {
		return classifyTransport(err, fmt.Sprintf("Failed to download %s: %v", what, err))
	}
	if resp.OK() {
		return Classification{}
	}
	kind := core.FailureSoftTerminal
	if retryableStatus(resp.Status) {
		kind = core.FailureTransient
	}
	return Classification{
		Kind:    kind,
		Message: fmt.Sprintf("Failed to download %s. HTTP status %d.", what, resp.Status),
	}
}

// ClassifyMSA classifies an error from the Microsoft token endpoint.
func ClassifyMSA(err error, operation string) Classification {
	if err == nil {
		return Classification{}
	}

	var oauthErr *api.OAuthError
	switch {
	case errors.As(err, &oauthErr):
		switch oauthErr.Code {
		case "invalid_grant", "interaction_required", "consent_required":
			return Classification{
				Kind:    core.FailureHardTerminal,
				Reason:  core.ReasonCredentialsGone,
				Message: "The Microsoft account sign in is no longer valid. Please log in again.",
			}
		}
		return Classification{
			Kind:    core.FailureSoftTerminal,
			Message: fmt.Sprintf("Microsoft rejected %s: %v", operation, oauthErr),
		}
	case errors.Is(err, api.ErrDeviceCodeExpired):
		return Classification{
			Kind:    core.FailureSoftTerminal,
			Message: "The sign in code expired before it was used. Please try again.",
		}
	case errors.Is(err, api.ErrMalformedResponse):
		return Classification{
			Kind:    core.FailureSoftTerminal,
			Message: fmt.Sprintf("Could not parse the Microsoft response to %s: %v", operation, err),
		}
	}
	return classifyTransport(err, fmt.Sprintf("Failed to reach Microsoft while %s: %v", operation, err))
}

func classifyTransport(err error, msg string) Classification {
	if errors.Is(err, context.Canceled) {
		return Classification{Kind: core.FailureCancelled, Message: "Cancelled."}
	}
	return Classification{Kind: core.FailureTransient, Message: msg}
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func servicesErrorDetail(body []byte) string {
	var e api.ServicesError
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	switch {
	case e.ErrorMessage != "":
		return e.ErrorMessage
	case e.DeveloperMessage != "":
		return e.DeveloperMessage
	case e.Details.Status != "":
		return e.Details.Status
	}
	return e.Error
}
