package graph

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Field lists requested from Graph. Downstream shaping depends on them staying fixed.
var (
	ContactListFields = []string{"id", "displayName", "emailAddresses", "businessPhones", "mobilePhone", "companyName", "jobTitle"}

	ContactDetailFields = []string{
		"id", "displayName", "givenName", "surname",
		"emailAddresses", "businessPhones", "homePhones", "mobilePhone",
		"companyName", "jobTitle", "department", "officeLocation",
		"imAddresses", "birthday", "personalNotes", "categories",
		"createdDateTime", "lastModifiedDateTime",
	}

	contactDomainFields = []string{"id", "displayName", "emailAddresses"}
)

type emailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

type contact struct {
	ID             string         `json:"id"`
	DisplayName    string         `json:"displayName"`
	EmailAddresses []emailAddress `json:"emailAddresses"`
	BusinessPhones []string       `json:"businessPhones"`
	MobilePhone    *string        `json:"mobilePhone"`
	CompanyName    *string        `json:"companyName"`
	JobTitle       *string        `json:"jobTitle"`
}

// ContactSummary is the flattened list shape returned to callers.
type ContactSummary struct {
	ID             string   `json:"id"`
	DisplayName    string   `json:"displayName"`
	Emails         []string `json:"emails"`
	BusinessPhones []string `json:"businessPhones"`
	MobilePhone    *string  `json:"mobilePhone"`
	CompanyName    *string  `json:"companyName"`
	JobTitle       *string  `json:"jobTitle"`
}

// DomainContact is one (contact, address) pair in the by-domain view.
type DomainContact struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// NewContact is the input to CreateContact.
type NewContact struct {
	GivenName      string
	Surname        string
	Email          string
	BusinessPhones []string
	Extra          map[string]any
}

func (c *Client) listContacts(ctx context.Context, token string, top int, fields []string) ([]contact, error) {
	q := url.Values{}
	q.Set("$select", strings.Join(fields, ","))
	q.Set("$top", strconv.Itoa(top))

	var page struct {
		Value []contact `json:"value"`
	}
	if err := c.getInto(ctx, token, "/me/contacts", q, &page); err != nil {
		return nil, err
	}
	return page.Value, nil
}

// ListContacts returns up to top contacts flattened to ContactSummary.
func (c *Client) ListContacts(ctx context.Context, token string, top int) ([]ContactSummary, error) {
	contacts, err := c.listContacts(ctx, token, top, ContactListFields)
	if err != nil {
		return nil, err
	}
	items := make([]ContactSummary, 0, len(contacts))
	for _, ct := range contacts {
		emails := []string{}
		for _, e := range ct.EmailAddresses {
			if e.Address != "" {
				emails = append(emails, e.Address)
			}
		}
		phones := ct.BusinessPhones
		if phones == nil {
			phones = []string{}
		}
		items = append(items, ContactSummary{
			ID:             ct.ID,
			DisplayName:    ct.DisplayName,
			Emails:         emails,
			BusinessPhones: phones,
			MobilePhone:    ct.MobilePhone,
			CompanyName:    ct.CompanyName,
			JobTitle:       ct.JobTitle,
		})
	}
	return items, nil
}

// FilterByDomain keeps contacts with at least one address on domain.
func FilterByDomain(items []ContactSummary, domain string) []ContactSummary {
	domain = strings.ToLower(strings.TrimSpace(domain))
	out := []ContactSummary{}
	for _, it := range items {
		for _, e := range it.Emails {
			if _, d, ok := strings.Cut(e, "@"); ok && strings.ToLower(d) == domain {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

// FilterByQuery keeps contacts whose display name or addresses contain query.
func FilterByQuery(items []ContactSummary, query string) []ContactSummary {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []ContactSummary{}
	for _, it := range items {
		hay := strings.ToLower(strings.Join(append([]string{it.DisplayName}, it.Emails...), " "))
		if strings.Contains(hay, q) {
			out = append(out, it)
		}
	}
	return out
}

// ContactsByDomain groups contact addresses by lowercased domain. Entries are unique per
// (id, address) and sorted by name then address.
func (c *Client) ContactsByDomain(ctx context.Context, token string, top int) (map[string][]DomainContact, error) {
	contacts, err := c.listContacts(ctx, token, top, contactDomainFields)
	if err != nil {
		return nil, err
	}

	grouped := map[string][]DomainContact{}
	seen := map[[2]string]bool{}
	for _, ct := range contacts {
		for _, e := range ct.EmailAddresses {
			addr := strings.TrimSpace(e.Address)
			_, domain, ok := strings.Cut(addr, "@")
			if !ok || addr == "" {
				continue
			}
			key := [2]string{ct.ID, strings.ToLower(addr)}
			if seen[key] {
				continue
			}
			seen[key] = true
			domain = strings.ToLower(domain)
			grouped[domain] = append(grouped[domain], DomainContact{ID: ct.ID, DisplayName: ct.DisplayName, Email: addr})
		}
	}

	for _, list := range grouped {
		sort.SliceStable(list, func(i, j int) bool {
			ni, nj := strings.ToLower(list[i].DisplayName), strings.ToLower(list[j].DisplayName)
			if ni != nj {
				return ni < nj
			}
			return strings.ToLower(list[i].Email) < strings.ToLower(list[j].Email)
		})
	}
	return grouped, nil
}

// GetContact fetches one contact. An empty fields list selects ContactDetailFields.
func (c *Client) GetContact(ctx context.Context, token, id string, fields []string) (map[string]any, error) {
	if len(fields) == 0 {
		fields = ContactDetailFields
	}
	q := url.Values{}
	q.Set("$select", strings.Join(fields, ","))
	return c.Get(ctx, token, "/me/contacts/"+url.PathEscape(id), q)
}

// CreateContact creates a contact in the default folder. Extra keys are merged last.
func (c *Client) CreateContact(ctx context.Context, token string, in NewContact) (map[string]any, error) {
	payload := map[string]any{"givenName": in.GivenName}
	if in.Surname != "" {
		payload["surname"] = in.Surname
	}
	if in.Email != "" {
		payload["emailAddresses"] = []emailAddress{{Address: in.Email}}
	}
	if len(in.BusinessPhones) > 0 {
		payload["businessPhones"] = in.BusinessPhones
	}
	for k, v := range in.Extra {
		payload[k] = v
	}
	return c.Post(ctx, token, "/me/contacts", payload)
}

// UpdateContact patches the given fields of contact id.
func (c *Client) UpdateContact(ctx context.Context, token, id string, fields map[string]any) (map[string]any, error) {
	return c.Patch(ctx, token, "/me/contacts/"+url.PathEscape(id), fields)
}

// DeleteContact removes contact id.
func (c *Client) DeleteContact(ctx context.Context, token, id string) (map[string]any, error) {
	return c.Delete(ctx, token, "/me/contacts/"+url.PathEscape(id))
}
