package planner

import (
	"encoding/json"
	"strings"

	"github.com/TheLazyLemur/graphpilot/internal/plan"
)

const conversationalRules = `You are an API call planner and conversational assistant.
Reply ONLY with JSON that follows the "output_format" of the CATALOG.
RULES:
- ALWAYS include "message" and "message_type".
- "message_type" must be one of: %TYPES%.
- If the user is only chatting (greeting, thanks, small talk), use the "chat_reply" action and "message_type" = "small_talk".
- If there is a concrete action, pick the correct action and write a short "message" explaining what will be done.
- Use STRICTLY the parameters defined for the chosen action; never invent fields or keys outside the catalog.
- Reply in the SAME LANGUAGE as the user.
- Output: plain JSON (no markdown, no code fences).`

const strictRules = `You are an API call planner.
Reply ONLY with JSON that follows the "output_format" of the CATALOG.
RULES:
- Choose exactly one action from the catalog.
- Use STRICTLY the parameters defined for the chosen action; never invent fields or keys outside the catalog.
- Write "reason" in the SAME LANGUAGE as the user.
- Output: plain JSON (no markdown, no code fences).`

type example struct {
	Title       string         `json:"-"`
	Action      string         `json:"action"`
	Params      map[string]any `json:"params"`
	Reason      string         `json:"reason"`
	Confidence  float64        `json:"confidence"`
	Message     string         `json:"message,omitempty"`
	MessageType string         `json:"message_type,omitempty"`
}

var examples = []example{
	{
		Title:  "greeting",
		Action: plan.ActionChatReply, Params: map[string]any{"tone": "friendly"},
		Reason: "User only greeted", Confidence: 0.8,
		Message: "Hey, all good here! How can I help you right now?", MessageType: plan.MessageSmallTalk,
	},
	{
		Title:  "list contacts by domain",
		Action: plan.ActionListContacts, Params: map[string]any{"domain": "gmail.com", "top": 100},
		Reason: "User asked for contacts on the gmail.com domain", Confidence: 0.9,
		Message: "Sure! Listing your contacts on gmail.com. Want to filter by name too?", MessageType: plan.MessageContactsList,
	},
	{
		Title:  "contact detail",
		Action: plan.ActionGetContact, Params: map[string]any{"contact_id": "AAMkAGI2...AAA="},
		Reason: "User wants the details of one contact", Confidence: 0.85,
		Message: "Opening that contact for you.", MessageType: plan.MessageContactDetail,
	},
	{
		Title:  "create contact",
		Action: plan.ActionCreateContact,
		Params: map[string]any{"givenName": "Maria", "surname": "Silva", "email": "maria@example.com", "businessPhones": []string{"+55 11 5555-0100"}},
		Reason: "User asked to save a new contact", Confidence: 0.86,
		Message: "Done deal, saving Maria Silva to your contacts.", MessageType: plan.MessageContactDetail,
	},
	{
		Title:  "list inbox",
		Action: plan.ActionListInbox, Params: map[string]any{"top": 10},
		Reason: "User wants the most recent Inbox emails", Confidence: 0.85,
		Message: "Right! Fetching the 10 most recent emails in your inbox.", MessageType: plan.MessageEmailList,
	},
	{
		Title:  "list sent",
		Action: plan.ActionListSent, Params: map[string]any{"top": 10},
		Reason: "User wants the most recent sent emails", Confidence: 0.84,
		Message: "Ok! Listing the 10 most recent emails in Sent Items.", MessageType: plan.MessageEmailList,
	},
	{
		Title:  "email detail",
		Action: plan.ActionGetMessageDetail, Params: map[string]any{"message_id": "AAMkADk...AAA=", "include_body": true},
		Reason: "User wants to open a specific email", Confidence: 0.84,
		Message: "Opening the details of that message.", MessageType: plan.MessageEmailDetail,
	},
	{
		Title:  "send email",
		Action: plan.ActionSendMail,
		Params: map[string]any{"subject": "Project update", "body_html": "<p>Here is the update...</p>", "to": []string{"someone@example.com"}},
		Reason: "User asked to send an email", Confidence: 0.87,
		Message: "Great! Preparing to send 'Project update'. Want to cc anyone?", MessageType: plan.MessageEmailSent,
	},
}

// Composer renders the fixed planning prompt. Only the trailing user text varies between calls.
type Composer struct {
	head string
}

// NewComposer renders the rules, catalog and examples for catalog once.
func NewComposer(catalog *plan.Catalog, conversational bool) *Composer {
	var b strings.Builder
	if conversational {
		b.WriteString(strings.Replace(conversationalRules, "%TYPES%", strings.Join(plan.MessageTypes(), ", "), 1))
	} else {
		b.WriteString(strictRules)
	}

	b.WriteString("\n\nTOOL CATALOG AND OUTPUT FORMAT:\n")
	b.Write(catalogJSON(catalog, conversational))

	b.WriteString("\n\nEXAMPLES:\n")
	for _, ex := range examples {
		if !catalog.Has(ex.Action) {
			continue
		}
		if !conversational {
			ex.Message, ex.MessageType = "", ""
		}
		out, _ := json.MarshalIndent(ex, "", "  ")
		b.WriteString("\nExample (" + ex.Title + "):\n")
		b.Write(out)
		b.WriteString("\n")
	}

	b.WriteString("\n\nUSER REQUEST:\n")
	return &Composer{head: b.String()}
}

// Compose returns the full prompt for userPrompt.
func (c *Composer) Compose(userPrompt string) string {
	return c.head + userPrompt + "\n\nReply only with the JSON required by \"output_format\"."
}

func catalogJSON(catalog *plan.Catalog, conversational bool) []byte {
	props := map[string]string{
		"action":     "string (one of the actions listed in tools.action)",
		"params":     "object (valid parameters for the chosen action)",
		"reason":     "short string explaining the choice",
		"confidence": "number 0..1 (confidence in the choice)",
	}
	required := []string{"action", "params", "reason", "confidence"}
	if conversational {
		props["message"] = "string (conversational reply to the user, in the language of the request)"
		props["message_type"] = "string (one of: " + strings.Join(plan.MessageTypes(), ", ") + ")"
		required = append(required, "message", "message_type")
	}

	doc := struct {
		Tools        []plan.ToolSpec `json:"tools"`
		OutputFormat any             `json:"output_format"`
	}{
		Tools: catalog.Tools(),
		OutputFormat: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
	}
	out, _ := json.MarshalIndent(doc, "", "  ")
	return out
}
