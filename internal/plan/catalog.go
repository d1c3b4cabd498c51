package plan

// ParamType is the declared type of a catalog parameter.
type ParamType string

const (
	TypeString        ParamType = "string"
	TypeInteger       ParamType = "integer"
	TypeBoolean       ParamType = "boolean"
	TypeArrayOfString ParamType = "array_of_string"
	TypeObject        ParamType = "object"
)

// Action names.
const (
	ActionChatReply        = "chat_reply"
	ActionListContacts     = "list_contacts"
	ActionGetContact       = "get_contact"
	ActionCreateContact    = "create_contact"
	ActionListInbox        = "list_inbox"
	ActionListSent         = "list_sent"
	ActionGetMessageDetail = "get_message_detail"
	ActionSendMail         = "send_mail"
)

// ParamSpec declares one parameter of an action.
type ParamSpec struct {
	Name     string    `json:"name"`
	Type     ParamType `json:"type"`
	Required bool      `json:"required"`
	Default  any       `json:"default,omitempty"`
	Min      *int64    `json:"min,omitempty"`
	Max      *int64    `json:"max,omitempty"`
}

// ToolSpec describes one permitted action.
type ToolSpec struct {
	Action      string      `json:"action"`
	Description string      `json:"description"`
	Params      []ParamSpec `json:"params"`
}

// Param looks up a parameter spec by name.
func (t ToolSpec) Param(name string) (ParamSpec, bool) {
	for _, p := range t.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// Catalog is an immutable, ordered set of tool specs.
type Catalog struct {
	tools []ToolSpec
	index map[string]int
}

func newCatalog(tools ...ToolSpec) *Catalog {
	c := &Catalog{tools: tools, index: make(map[string]int, len(tools))}
	for i, t := range tools {
		c.index[t.Action] = i
	}
	return c
}

// Lookup returns the spec for action.
func (c *Catalog) Lookup(action string) (ToolSpec, bool) {
	i, ok := c.index[action]
	if !ok {
		return ToolSpec{}, false
	}
	return c.tools[i], true
}

// Tools returns the specs in catalog order.
func (c *Catalog) Tools() []ToolSpec {
	out := make([]ToolSpec, len(c.tools))
	copy(out, c.tools)
	return out
}

// Has reports whether action is part of the catalog.
func (c *Catalog) Has(action string) bool {
	_, ok := c.index[action]
	return ok
}

func bound(v int64) *int64 { return &v }

func apiTools() []ToolSpec {
	return []ToolSpec{
		{
			Action:      ActionListContacts,
			Description: "List contacts. Can filter by email domain (e.g. gmail.com) and/or search name/email with 'query'.",
			Params: []ParamSpec{
				{Name: "top", Type: TypeInteger, Default: 100, Min: bound(1), Max: bound(999)},
				{Name: "domain", Type: TypeString},
				{Name: "query", Type: TypeString},
			},
		},
		{
			Action:      ActionGetContact,
			Description: "Details of one contact by ID.",
			Params: []ParamSpec{
				{Name: "contact_id", Type: TypeString, Required: true},
			},
		},
		{
			Action:      ActionCreateContact,
			Description: "Create a contact.",
			Params: []ParamSpec{
				{Name: "givenName", Type: TypeString, Required: true},
				{Name: "surname", Type: TypeString},
				{Name: "email", Type: TypeString},
				{Name: "businessPhones", Type: TypeArrayOfString},
				{Name: "extra", Type: TypeObject},
			},
		},
		{
			Action:      ActionListInbox,
			Description: "List the most recent Inbox emails.",
			Params: []ParamSpec{
				{Name: "top", Type: TypeInteger, Default: 25, Min: bound(1), Max: bound(100)},
			},
		},
		{
			Action:      ActionListSent,
			Description: "List the most recent sent emails.",
			Params: []ParamSpec{
				{Name: "top", Type: TypeInteger, Default: 25, Min: bound(1), Max: bound(100)},
			},
		},
		{
			Action:      ActionGetMessageDetail,
			Description: "Details of one email by ID. With include_body=true the HTML body is included.",
			Params: []ParamSpec{
				{Name: "message_id", Type: TypeString, Required: true},
				{Name: "include_body", Type: TypeBoolean, Default: false},
			},
		},
		{
			Action:      ActionSendMail,
			Description: "Send an email.",
			Params: []ParamSpec{
				{Name: "subject", Type: TypeString, Required: true},
				{Name: "body_html", Type: TypeString, Required: true},
				{Name: "to", Type: TypeArrayOfString, Required: true},
			},
		},
	}
}

func chatTool() ToolSpec {
	return ToolSpec{
		Action:      ActionChatReply,
		Description: "Reply conversationally without calling any external action.",
		Params: []ParamSpec{
			{Name: "tone", Type: TypeString, Default: "friendly"},
		},
	}
}

var (
	strictCatalog         = newCatalog(apiTools()...)
	conversationalCatalog = newCatalog(append([]ToolSpec{chatTool()}, apiTools()...)...)
)

// StrictCatalog returns the API-only catalog (no chat_reply).
func StrictCatalog() *Catalog { return strictCatalog }

// ConversationalCatalog returns the catalog including chat_reply.
func ConversationalCatalog() *Catalog { return conversationalCatalog }
