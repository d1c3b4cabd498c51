package dispatch

import (
	"context"
	"net/http"
	"testing"

	"github.com/TheLazyLemur/graphpilot/internal/apperr"
	"github.com/TheLazyLemur/graphpilot/internal/graph"
	"github.com/TheLazyLemur/graphpilot/internal/graph/graphtest"
	"github.com/TheLazyLemur/graphpilot/internal/plan"
	"github.com/TheLazyLemur/graphpilot/internal/planner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct{ reply string }

func (s stubGateway) Send(context.Context, string) (string, error) { return s.reply, nil }

func validated(t *testing.T, action string, params map[string]any) *plan.CleanPlan {
	t.Helper()
	res := plan.NewValidator(plan.ConversationalCatalog()).Validate(map[string]any{"action": action, "params": params}, "")
	require.True(t, res.Valid, res.Message)
	return res.Clean
}

func newDispatcher(t *testing.T) (*Dispatcher, *graphtest.Server) {
	fake := graphtest.New(t)
	return New(graph.New(fake.BaseURL(), fake.Client())), fake
}

func TestDispatch_EndToEnd(t *testing.T) {
	// given
	reply := `{"action":"list_contacts","params":{"domain":"gmail.com"},"reason":"user asked for gmail contacts","confidence":0.9}`
	p := planner.New(stubGateway{reply: reply}, planner.ModeConversational)
	d, fake := newDispatcher(t)

	// when
	clean, err := p.Plan(context.Background(), "Liste contatos do domínio gmail.com")
	require.NoError(t, err)
	res, err := d.Dispatch(context.Background(), clean, graphtest.GoodToken)

	// then
	require.NoError(t, err)
	assert.Same(t, clean, res.Plan)
	assert.Equal(t, plan.ListContacts{Top: 100, Domain: "gmail.com"}, res.Plan.Typed)

	list, ok := res.Result.(ContactList)
	require.True(t, ok)
	assert.Equal(t, 2, list.Count)
	for _, it := range list.Items {
		assert.NotEmpty(t, graph.FilterByDomain([]graph.ContactSummary{it}, "gmail.com"))
	}

	req := fake.Last()
	assert.Equal(t, "/me/contacts", req.Path)
	assert.Equal(t, "100", req.Query.Get("$top"))
}

func TestDispatch_Actions(t *testing.T) {
	ctx := context.Background()

	t.Run("list contacts with query", func(t *testing.T) {
		d, _ := newDispatcher(t)
		res, err := d.Dispatch(ctx, validated(t, plan.ActionListContacts, map[string]any{"query": "bruno"}), graphtest.GoodToken)

		require.NoError(t, err)
		list := res.Result.(ContactList)
		require.Equal(t, 1, list.Count)
		assert.Equal(t, "c3", list.Items[0].ID)
	})

	t.Run("get contact", func(t *testing.T) {
		d, fake := newDispatcher(t)
		res, err := d.Dispatch(ctx, validated(t, plan.ActionGetContact, map[string]any{"contact_id": "c2"}), graphtest.GoodToken)

		require.NoError(t, err)
		assert.Equal(t, "Ana Lima", res.Result.(map[string]any)["displayName"])
		assert.Equal(t, "/me/contacts/c2", fake.Last().Path)
	})

	t.Run("create contact", func(t *testing.T) {
		d, fake := newDispatcher(t)
		_, err := d.Dispatch(ctx, validated(t, plan.ActionCreateContact, map[string]any{
			"givenName": "Maria", "businessPhones": []any{"+55 11 5555-0100"},
		}), graphtest.GoodToken)

		require.NoError(t, err)
		assert.Equal(t, http.MethodPost, fake.Last().Method)
		assert.Equal(t, []any{"+55 11 5555-0100"}, fake.Last().Body["businessPhones"])
	})

	t.Run("inbox", func(t *testing.T) {
		d, fake := newDispatcher(t)
		_, err := d.Dispatch(ctx, validated(t, plan.ActionListInbox, map[string]any{"top": 10}), graphtest.GoodToken)

		require.NoError(t, err)
		assert.Equal(t, "10", fake.Last().Query.Get("$top"))
	})

	t.Run("sent", func(t *testing.T) {
		d, fake := newDispatcher(t)
		_, err := d.Dispatch(ctx, validated(t, plan.ActionListSent, map[string]any{}), graphtest.GoodToken)

		require.NoError(t, err)
		assert.Equal(t, "25", fake.Last().Query.Get("$top"))
	})

	t.Run("message detail", func(t *testing.T) {
		d, fake := newDispatcher(t)
		_, err := d.Dispatch(ctx, validated(t, plan.ActionGetMessageDetail, map[string]any{"message_id": "m2", "include_body": true}), graphtest.GoodToken)

		require.NoError(t, err)
		assert.Equal(t, "/me/messages/m2", fake.Last().Path)
	})

	t.Run("send mail", func(t *testing.T) {
		d, fake := newDispatcher(t)
		res, err := d.Dispatch(ctx, validated(t, plan.ActionSendMail, map[string]any{
			"subject": "Hi", "body_html": "<p>hi</p>", "to": []any{"a@b.com"},
		}), graphtest.GoodToken)

		require.NoError(t, err)
		assert.Equal(t, map[string]any{"status": http.StatusAccepted}, res.Result)
		assert.Equal(t, "/me/sendMail", fake.Last().Path)
	})

	t.Run("chat reply makes no upstream call and needs no token", func(t *testing.T) {
		d, fake := newDispatcher(t)
		clean := validated(t, plan.ActionChatReply, map[string]any{})
		clean.Message = "Hi!"

		res, err := d.Dispatch(ctx, clean, "")

		require.NoError(t, err)
		assert.Equal(t, Reply{Message: "Hi!", Tone: "friendly"}, res.Result)
		assert.Empty(t, fake.Requests())
	})
}

func TestDispatch_Clamps(t *testing.T) {
	d, fake := newDispatcher(t)
	clean := validated(t, plan.ActionListInbox, map[string]any{})
	clean.Typed = plan.ListInbox{Top: 5000}

	_, err := d.Dispatch(context.Background(), clean, graphtest.GoodToken)

	require.NoError(t, err)
	assert.Equal(t, "100", fake.Last().Query.Get("$top"))

	assert.Equal(t, 1, clamp(-3, 25, 100))
	assert.Equal(t, 25, clamp(0, 25, 100))
	assert.Equal(t, 999, clamp(1000, 100, 999))
}

func TestDispatch_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("expired token", func(t *testing.T) {
		d, _ := newDispatcher(t)
		clean := validated(t, plan.ActionListInbox, map[string]any{})

		_, err := d.Dispatch(ctx, clean, "expired")

		e, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, apperr.KindUnauthorized, e.Kind)
		assert.Equal(t, http.StatusUnauthorized, e.Kind.Status())
		assert.Same(t, clean, e.Plan)
	})

	t.Run("missing token", func(t *testing.T) {
		d, _ := newDispatcher(t)
		_, err := d.Dispatch(ctx, validated(t, plan.ActionListInbox, map[string]any{}), "")

		assert.True(t, apperr.Is(err, apperr.KindNotAuthenticated))
	})

	t.Run("upstream failure carries status and plan", func(t *testing.T) {
		d, fake := newDispatcher(t)
		fake.Fail["GET /me/mailFolders/SentItems/messages"] = http.StatusInternalServerError
		clean := validated(t, plan.ActionListSent, map[string]any{})

		_, err := d.Dispatch(ctx, clean, graphtest.GoodToken)

		e, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, apperr.KindExecutionFailed, e.Kind)
		assert.Equal(t, http.StatusBadGateway, e.Kind.Status())
		assert.Equal(t, http.StatusInternalServerError, e.Upstream)
		assert.Same(t, clean, e.Plan)
	})

	t.Run("not found", func(t *testing.T) {
		d, _ := newDispatcher(t)
		_, err := d.Dispatch(ctx, validated(t, plan.ActionGetContact, map[string]any{"contact_id": "missing"}), graphtest.GoodToken)

		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("unknown action is a client error", func(t *testing.T) {
		d, _ := newDispatcher(t)
		clean := &plan.CleanPlan{Action: "format_disk", Params: map[string]any{}}

		_, err := d.Dispatch(ctx, clean, graphtest.GoodToken)

		require.Error(t, err)
		assert.Equal(t, apperr.KindUnknownAction, apperr.KindOf(err))
		assert.Equal(t, http.StatusBadRequest, apperr.KindOf(err).Status())
	})

	t.Run("untyped plan is revalidated", func(t *testing.T) {
		d, fake := newDispatcher(t)
		clean := &plan.CleanPlan{Action: plan.ActionListSent, Params: map[string]any{"top": 3}}

		_, err := d.Dispatch(ctx, clean, graphtest.GoodToken)

		require.NoError(t, err)
		assert.Equal(t, "3", fake.Last().Query.Get("$top"))
	})
}
