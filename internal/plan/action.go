package plan

// Action is the typed form of a validated plan. Exactly one variant exists per catalog entry.
type Action interface {
	Name() string
}

// ChatReply answers in text without calling Graph.
type ChatReply struct {
	Tone string
}

// ListContacts lists contacts, optionally filtered by email domain or a search query.
type ListContacts struct {
	Top    int
	Domain string
	Query  string
}

// GetContact fetches one contact by id.
type GetContact struct {
	ContactID string
}

// CreateContact creates a contact. Extra carries catalog fields without a typed slot.
type CreateContact struct {
	GivenName      string
	Surname        string
	Email          string
	BusinessPhones []string
	Extra          map[string]any
}

// ListInbox lists the newest Top inbox messages.
type ListInbox struct {
	Top int
}

// ListSent lists the newest Top sent messages.
type ListSent struct {
	Top int
}

// GetMessageDetail fetches one message, with its body when IncludeBody is set.
type GetMessageDetail struct {
	MessageID   string
	IncludeBody bool
}

// SendMail sends an HTML message to every address in To.
type SendMail struct {
	Subject  string
	BodyHTML string
	To       []string
}

func (ChatReply) Name() string        { return ActionChatReply }
func (ListContacts) Name() string     { return ActionListContacts }
func (GetContact) Name() string       { return ActionGetContact }
func (CreateContact) Name() string    { return ActionCreateContact }
func (ListInbox) Name() string        { return ActionListInbox }
func (ListSent) Name() string         { return ActionListSent }
func (GetMessageDetail) Name() string { return ActionGetMessageDetail }
func (SendMail) Name() string         { return ActionSendMail }

// Message categories accepted in conversational plans.
const (
	MessageSmallTalk     = "small_talk"
	MessageText          = "text"
	MessageContactsList  = "contacts_list"
	MessageContactDetail = "contact_detail"
	MessageEmailList     = "email_list"
	MessageEmailDetail   = "email_detail"
	MessageEmailSent     = "email_sent"
	MessageSystem        = "system"
	MessageError         = "error"
)

var messageTypes = map[string]bool{
	MessageSmallTalk: true, MessageText: true, MessageContactsList: true, MessageContactDetail: true,
	MessageEmailList: true, MessageEmailDetail: true, MessageEmailSent: true, MessageSystem: true, MessageError: true,
}

// MessageTypes lists the accepted categories in prompt order.
func MessageTypes() []string {
	return []string{
		MessageSmallTalk, MessageText, MessageContactsList, MessageContactDetail,
		MessageEmailList, MessageEmailDetail, MessageEmailSent, MessageSystem, MessageError,
	}
}

// ValidMessageType reports whether t is an accepted category.
func ValidMessageType(t string) bool { return messageTypes[t] }

// MessageTypeFor derives the category for an action.
func MessageTypeFor(action string) string {
	switch action {
	case ActionListContacts:
		return MessageContactsList
	case ActionGetContact, ActionCreateContact:
		return MessageContactDetail
	case ActionListInbox, ActionListSent:
		return MessageEmailList
	case ActionGetMessageDetail:
		return MessageEmailDetail
	case ActionSendMail:
		return MessageEmailSent
	default:
		return MessageText
	}
}

// CleanPlan is a validated plan, safe to dispatch.
type CleanPlan struct {
	Action      string         `json:"action"`
	Params      map[string]any `json:"params"`
	Reason      string         `json:"reason"`
	Confidence  float64        `json:"confidence"`
	Message     string         `json:"message,omitempty"`
	MessageType string         `json:"message_type,omitempty"`

	Typed Action `json:"-"`
}

// Raw returns the plan as an untyped object, the shape Validate accepts.
func (p *CleanPlan) Raw() map[string]any {
	params := make(map[string]any, len(p.Params))
	for k, v := range p.Params {
		params[k] = v
	}
	raw := map[string]any{
		"action":     p.Action,
		"params":     params,
		"reason":     p.Reason,
		"confidence": p.Confidence,
	}
	if p.Message != "" {
		raw["message"] = p.Message
	}
	if p.MessageType != "" {
		raw["message_type"] = p.MessageType
	}
	return raw
}
