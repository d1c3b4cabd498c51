// Package dispatch executes validated plans against Microsoft Graph.
package dispatch

import (
	"context"
	"log/slog"

	"github.com/TheLazyLemur/graphpilot/internal/apperr"
	"github.com/TheLazyLemur/graphpilot/internal/graph"
	"github.com/TheLazyLemur/graphpilot/internal/plan"
)

// Upstream page-size limits enforced by Graph.
const (
	maxContactsTop = 999
	maxMailTop     = 100

	defaultContactsTop = 100
	defaultMailTop     = 25
)

// Graph is the part of the Graph client the dispatcher calls.
type Graph interface {
	ListContacts(ctx context.Context, token string, top int) ([]graph.ContactSummary, error)
	GetContact(ctx context.Context, token, id string, fields []string) (map[string]any, error)
	CreateContact(ctx context.Context, token string, in graph.NewContact) (map[string]any, error)
	ListInbox(ctx context.Context, token string, top int, fields []string) (map[string]any, error)
	ListSent(ctx context.Context, token string, top int) (map[string]any, error)
	GetMessage(ctx context.Context, token, id string, includeBody bool) (map[string]any, error)
	SendMail(ctx context.Context, token, subject, bodyHTML string, to []string) (map[string]any, error)
}

var _ Graph = (*graph.Client)(nil)

// Result pairs the executed plan with the shaped upstream answer.
type Result struct {
	Plan   *plan.CleanPlan `json:"plan"`
	Result any             `json:"result"`
}

// ContactList is the list_contacts result.
type ContactList struct {
	Count int                    `json:"count"`
	Items []graph.ContactSummary `json:"items"`
}

// Reply is the chat_reply result. No upstream call is made.
type Reply struct {
	Message string `json:"message"`
	Tone    string `json:"tone"`
}

// Dispatcher executes clean plans against Graph.
type Dispatcher struct {
	graph     Graph
	validator *plan.Validator
}

// New returns a dispatcher that accepts any action in the conversational catalog.
func New(g Graph) *Dispatcher {
	return &Dispatcher{graph: g, validator: plan.NewValidator(plan.ConversationalCatalog())}
}

// Dispatch runs exactly one upstream operation for clean. Upstream failures are
// classified and annotated with the plan.
func (d *Dispatcher) Dispatch(ctx context.Context, clean *plan.CleanPlan, token string) (*Result, error) {
	if clean == nil {
		return nil, apperr.New(apperr.KindValidation, "no plan to dispatch")
	}
	action := clean.Typed
	if action == nil {
		res := d.validator.Validate(clean.Raw(), "")
		if !res.Valid {
			return nil, apperr.WithPlan(apperr.New(apperr.KindUnknownAction, res.Message), clean)
		}
		action = res.Clean.Typed
	}

	if _, chat := action.(plan.ChatReply); !chat && token == "" {
		return nil, apperr.New(apperr.KindNotAuthenticated,
			"Provide Authorization: Bearer <MS_ACCESS_TOKEN> or log in at /auth/login.")
	}

	slog.Info("dispatching plan", "action", action.Name())
	result, err := d.execute(ctx, action, clean, token)
	if err != nil {
		slog.Warn("dispatch failed", "action", action.Name(), "error", err)
		return nil, apperr.WithPlan(graph.Classify(err, apperr.KindExecutionFailed), clean)
	}
	return &Result{Plan: clean, Result: result}, nil
}

func (d *Dispatcher) execute(ctx context.Context, action plan.Action, clean *plan.CleanPlan, token string) (any, error) {
	switch a := action.(type) {
	case plan.ChatReply:
		return Reply{Message: clean.Message, Tone: a.Tone}, nil

	case plan.ListContacts:
		items, err := d.graph.ListContacts(ctx, token, clamp(a.Top, defaultContactsTop, maxContactsTop))
		if err != nil {
			return nil, err
		}
		if a.Domain != "" {
			items = graph.FilterByDomain(items, a.Domain)
		}
		if a.Query != "" {
			items = graph.FilterByQuery(items, a.Query)
		}
		return ContactList{Count: len(items), Items: items}, nil

	case plan.GetContact:
		return d.graph.GetContact(ctx, token, a.ContactID, nil)

	case plan.CreateContact:
		return d.graph.CreateContact(ctx, token, graph.NewContact{
			GivenName:      a.GivenName,
			Surname:        a.Surname,
			Email:          a.Email,
			BusinessPhones: a.BusinessPhones,
			Extra:          a.Extra,
		})

	case plan.ListInbox:
		return d.graph.ListInbox(ctx, token, clamp(a.Top, defaultMailTop, maxMailTop), nil)

	case plan.ListSent:
		return d.graph.ListSent(ctx, token, clamp(a.Top, defaultMailTop, maxMailTop))

	case plan.GetMessageDetail:
		return d.graph.GetMessage(ctx, token, a.MessageID, a.IncludeBody)

	case plan.SendMail:
		return d.graph.SendMail(ctx, token, a.Subject, a.BodyHTML, a.To)

	default:
		return nil, apperr.New(apperr.KindUnknownAction, "unknown action: "+action.Name())
	}
}

// clamp re-applies Graph's page-size bounds. Zero selects def.
func clamp(top, def, max int) int {
	if top == 0 {
		top = def
	}
	if top < 1 {
		return 1
	}
	if top > max {
		return max
	}
	return top
}
