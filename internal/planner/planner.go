// Package planner turns a free-text request into a validated plan.
package planner

import (
	"context"
	"log/slog"
	"strings"

	"github.com/TheLazyLemur/graphpilot/internal/apperr"
	"github.com/TheLazyLemur/graphpilot/internal/gateway"
	"github.com/TheLazyLemur/graphpilot/internal/plan"
	"github.com/pkg/errors"
)

// Mode selects how decode and validation failures are handled.
type Mode string

const (
	// ModeConversational degrades bad model turns into a fallback chat_reply plan.
	ModeConversational Mode = "conversational"
	// ModeStrict plans API actions only and returns decode and validation failures to the caller.
	ModeStrict Mode = "strict"
)

// ParseMode accepts "conversational" or "strict". Empty means conversational.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeConversational:
		return ModeConversational, nil
	case ModeStrict:
		return ModeStrict, nil
	default:
		return "", errors.Errorf("invalid planner mode %q (want conversational or strict)", s)
	}
}

const (
	fallbackConfidence = 0.4

	decodeFailedReason  = "failed to decode model JSON"
	decodeFailedMessage = "I got your message but tripped over my parser. Could you repeat in one short sentence what you want me to do?"
	invalidPlanMessage  = "Alright, but something did not add up in the plan. Could you tell me again what you need, like: 'list my 10 latest inbox emails'?"
	defaultMessage      = "All set! I will run this action. If you want to adjust any parameter, just tell me."
)

// Planner turns a prompt into a validated plan through the model gateway.
type Planner struct {
	gateway   gateway.Gateway
	composer  *Composer
	validator *plan.Validator
	mode      Mode
}

// New returns a planner for mode. The catalog is fixed by the mode.
func New(gw gateway.Gateway, mode Mode) *Planner {
	catalog := plan.StrictCatalog()
	if mode == ModeConversational {
		catalog = plan.ConversationalCatalog()
	}
	return &Planner{
		gateway:   gw,
		composer:  NewComposer(catalog, mode == ModeConversational),
		validator: plan.NewValidator(catalog),
		mode:      mode,
	}
}

// Mode reports which prompt and catalog the planner was built with.
func (p *Planner) Mode() Mode { return p.mode }

// Catalog returns the actions this planner may produce.
func (p *Planner) Catalog() *plan.Catalog { return p.validator.Catalog() }

// Plan runs compose, send, decode and validate. Model failures always propagate; decode and
// validation failures propagate only in strict mode.
func (p *Planner) Plan(ctx context.Context, userPrompt string) (*plan.CleanPlan, error) {
	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return nil, apperr.New(apperr.KindValidation, "field 'prompt' is required")
	}

	raw, err := p.gateway.Send(ctx, p.composer.Compose(userPrompt))
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.KindModelUnavailable, err, "model request failed")
	}

	decoded, err := plan.Decode(raw)
	if err != nil {
		if p.mode == ModeStrict {
			return nil, err
		}
		slog.Warn("model reply not decodable, using fallback plan", "error", err)
		return fallback(decodeFailedReason, decodeFailedMessage), nil
	}

	res := p.validator.Validate(decoded, raw)
	if !res.Valid {
		if p.mode == ModeStrict {
			return nil, res.Err()
		}
		slog.Warn("model plan rejected, using fallback plan", "reason", res.Message)
		return fallback("invalid plan: "+res.Message, invalidPlanMessage), nil
	}

	clean := res.Clean
	if p.mode == ModeConversational {
		normalize(clean)
	}
	slog.Info("plan ready", "action", clean.Action, "confidence", clean.Confidence)
	return clean, nil
}

func fallback(reason, message string) *plan.CleanPlan {
	return &plan.CleanPlan{
		Action:      plan.ActionChatReply,
		Params:      map[string]any{"tone": "friendly"},
		Reason:      reason,
		Confidence:  fallbackConfidence,
		Message:     message,
		MessageType: plan.MessageError,
		Typed:       plan.ChatReply{Tone: "friendly"},
	}
}

func normalize(clean *plan.CleanPlan) {
	if strings.TrimSpace(clean.Message) == "" {
		clean.Message = defaultMessage
	}
	if !plan.ValidMessageType(clean.MessageType) {
		clean.MessageType = plan.MessageTypeFor(clean.Action)
	}
}
