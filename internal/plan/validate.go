package plan

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/TheLazyLemur/graphpilot/internal/apperr"
)

var integerString = regexp.MustCompile(`^-?[0-9]+$`)

// ValidationResult is the only channel the validator reports through.
// Clean is set if and only if Valid is true.
type ValidationResult struct {
	Valid   bool
	Message string
	Clean   *CleanPlan

	unsafe bool
}

// Err converts an invalid result into a typed error. It returns nil for valid results.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	if r.unsafe {
		return apperr.New(apperr.KindUnsafeContent, r.Message)
	}
	return apperr.New(apperr.KindValidation, r.Message)
}

func invalid(format string, args ...any) ValidationResult {
	return ValidationResult{Message: fmt.Sprintf(format, args...)}
}

func unsafeContent(msg string) ValidationResult {
	return ValidationResult{Message: msg, unsafe: true}
}

// Validator checks untrusted plans against a catalog.
type Validator struct {
	catalog *Catalog
}

// NewValidator returns a validator bound to catalog.
func NewValidator(catalog *Catalog) *Validator {
	return &Validator{catalog: catalog}
}

// Catalog returns the catalog the validator enforces.
func (v *Validator) Catalog() *Catalog { return v.catalog }

// Validate type-checks raw, applies defaults and screens both the structured fields and the raw model text.
func (v *Validator) Validate(raw any, rawModelText string) ValidationResult {
	obj, ok := raw.(map[string]any)
	if !ok {
		return invalid("plan is not a JSON object")
	}

	action, _ := obj["action"].(string)
	spec, ok := v.catalog.Lookup(action)
	if !ok {
		return invalid("invalid action: %v", obj["action"])
	}

	params, ok := obj["params"].(map[string]any)
	if !ok {
		return invalid("field 'params' must be an object")
	}

	clean := make(map[string]any, len(spec.Params))
	for _, p := range spec.Params {
		value, present := params[p.Name]
		if !present {
			if p.Required {
				return invalid("missing required param: '%s'", p.Name)
			}
			if p.Default != nil {
				clean[p.Name] = p.Default
			}
			continue
		}
		coerced, msg := coerce(p, value)
		if msg != "" {
			return invalid("%s", msg)
		}
		clean[p.Name] = coerced
	}

	if action == ActionSendMail {
		if to, _ := clean["to"].([]string); len(to) == 0 {
			return invalid("send_mail requires at least one recipient in 'to'")
		}
		subject, _ := clean["subject"].(string)
		if subject == "" {
			return invalid("send_mail requires a non-empty 'subject'")
		}
		body, _ := clean["body_html"].(string)
		if body == "" {
			return invalid("send_mail requires a non-empty 'body_html'")
		}
		if containsOffensive(subject) || containsOffensive(body) {
			return unsafeContent("offensive or explicit content detected in the email")
		}
	}

	if containsForbiddenMarker(rawModelText) {
		return unsafeContent("content potentially outside the allowed scope")
	}
	if containsOffensive(rawModelText) {
		return unsafeContent("offensive or inappropriate content is not allowed")
	}

	reason := ""
	if r, present := obj["reason"]; present && r != nil {
		s, ok := r.(string)
		if !ok {
			return invalid("field 'reason' must be a string")
		}
		reason = strings.TrimSpace(s)
	}

	confidence := 0.0
	if c, present := obj["confidence"]; present && c != nil {
		f, ok := toFloat(c)
		if !ok {
			return invalid("field 'confidence' must be a number")
		}
		confidence = f
	}

	out := &CleanPlan{
		Action:     action,
		Params:     clean,
		Reason:     reason,
		Confidence: confidence,
		Typed:      typedAction(action, clean),
	}
	if m, ok := obj["message"].(string); ok {
		out.Message = strings.TrimSpace(m)
	}
	if m, ok := obj["message_type"].(string); ok {
		out.MessageType = strings.TrimSpace(m)
	}
	return ValidationResult{Valid: true, Message: "ok", Clean: out}
}

func coerce(p ParamSpec, value any) (any, string) {
	switch p.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Sprintf("param '%s' must be a string", p.Name)
		}
		return strings.TrimSpace(s), ""

	case TypeInteger:
		if _, isBool := value.(bool); isBool {
			return nil, fmt.Sprintf("param '%s' must be an integer (not a boolean)", p.Name)
		}
		n, ok := toInt(value)
		if !ok {
			return nil, fmt.Sprintf("param '%s' must be an integer", p.Name)
		}
		if p.Min != nil && n < *p.Min {
			return nil, fmt.Sprintf("param '%s' minimum is %d", p.Name, *p.Min)
		}
		if p.Max != nil && n > *p.Max {
			return nil, fmt.Sprintf("param '%s' maximum is %d", p.Name, *p.Max)
		}
		return int(n), ""

	case TypeBoolean:
		b, ok := toBool(value)
		if !ok {
			return nil, fmt.Sprintf("param '%s' must be a boolean", p.Name)
		}
		return b, ""

	case TypeArrayOfString:
		items, ok := toStrings(value)
		if !ok {
			return nil, fmt.Sprintf("param '%s' must be an array of strings", p.Name)
		}
		return items, ""

	case TypeObject:
		m, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Sprintf("param '%s' must be an object", p.Name)
		}
		return m, ""

	default:
		return nil, fmt.Sprintf("invalid type '%s' in spec of param '%s'", p.Type, p.Name)
	}
}

func toInt(value any) (int64, bool) {
	switch n := value.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.Abs(n) > math.MaxInt32 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		s := strings.TrimSpace(n)
		if !integerString.MatchString(s) {
			return 0, false
		}
		var i int64
		if _, err := fmt.Sscan(s, &i); err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toBool(value any) (bool, bool) {
	switch b := value.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes", "y":
			return true, true
		case "false", "0", "no", "n":
			return false, true
		}
	}
	return false, false
}

func toStrings(value any) ([]string, bool) {
	switch items := value.(type) {
	case []string:
		out := make([]string, len(items))
		for i, s := range items {
			out[i] = strings.TrimSpace(s)
		}
		return out, true
	case []any:
		out := make([]string, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out[i] = strings.TrimSpace(s)
		}
		return out, true
	default:
		return nil, false
	}
}

func typedAction(action string, p map[string]any) Action {
	str := func(k string) string { s, _ := p[k].(string); return s }
	num := func(k string) int { n, _ := p[k].(int); return n }
	list := func(k string) []string { l, _ := p[k].([]string); return l }

	switch action {
	case ActionChatReply:
		return ChatReply{Tone: str("tone")}
	case ActionListContacts:
		return ListContacts{Top: num("top"), Domain: str("domain"), Query: str("query")}
	case ActionGetContact:
		return GetContact{ContactID: str("contact_id")}
	case ActionCreateContact:
		extra, _ := p["extra"].(map[string]any)
		return CreateContact{
			GivenName:      str("givenName"),
			Surname:        str("surname"),
			Email:          str("email"),
			BusinessPhones: list("businessPhones"),
			Extra:          extra,
		}
	case ActionListInbox:
		return ListInbox{Top: num("top")}
	case ActionListSent:
		return ListSent{Top: num("top")}
	case ActionGetMessageDetail:
		include, _ := p["include_body"].(bool)
		return GetMessageDetail{MessageID: str("message_id"), IncludeBody: include}
	case ActionSendMail:
		return SendMail{Subject: str("subject"), BodyHTML: str("body_html"), To: list("to")}
	default:
		return nil
	}
}
