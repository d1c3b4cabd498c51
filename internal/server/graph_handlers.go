package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/TheLazyLemur/graphpilot/internal/apperr"
	"github.com/TheLazyLemur/graphpilot/internal/graph"
)

// queryInt reads a positive integer query parameter, falling back to def and
// clamping to [1, max].
func queryInt(r *http.Request, key string, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n == 0 {
		n = def
	}
	if n < 1 {
		n = 1
	}
	if n > max {
		n = max
	}
	return n
}

func querySelect(r *http.Request) []string {
	raw := r.URL.Query().Get("$select")
	if raw == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func queryBool(r *http.Request, key string) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

func graphError(w http.ResponseWriter, err error, message string) {
	classified := graph.Classify(err, apperr.KindGraph)
	if e, ok := apperr.As(classified); ok && e.Kind == apperr.KindGraph {
		cp := *e
		cp.Message = message
		classified = &cp
	}
	writeError(w, classified)
}

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	token, ok := s.requireMSToken(w, r)
	if !ok {
		return
	}
	grouped, err := s.Graph.ContactsByDomain(r.Context(), token, queryInt(r, "top", 100, 999))
	if err != nil {
		graphError(w, err, "could not query Microsoft Graph")
		return
	}
	writeJSON(w, http.StatusOK, grouped)
}

type createContactRequest struct {
	GivenName      string         `json:"givenName"`
	Surname        string         `json:"surname"`
	Email          string         `json:"email"`
	BusinessPhones []string       `json:"businessPhones"`
	Extra          map[string]any `json:"extra"`
}

func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	token, ok := s.requireMSToken(w, r)
	if !ok {
		return
	}
	var body createContactRequest
	if err := readJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(body.GivenName) == "" {
		writeError(w, apperr.New(apperr.KindValidation, "field 'givenName' is required"))
		return
	}

	created, err := s.Graph.CreateContact(r.Context(), token, graph.NewContact{
		GivenName:      strings.TrimSpace(body.GivenName),
		Surname:        body.Surname,
		Email:          body.Email,
		BusinessPhones: body.BusinessPhones,
		Extra:          body.Extra,
	})
	if err != nil {
		graphError(w, err, "could not create the contact in Microsoft Graph")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetContact(w http.ResponseWriter, r *http.Request) {
	token, ok := s.requireMSToken(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	contact, err := s.Graph.GetContact(r.Context(), token, id, querySelect(r))
	if err != nil {
		if apperr.Is(graph.Classify(err, apperr.KindGraph), apperr.KindNotFound) {
			writeError(w, apperr.New(apperr.KindNotFound, "contact "+id+" not found"))
			return
		}
		graphError(w, err, "could not query Microsoft Graph")
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

func (s *Server) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	token, ok := s.requireMSToken(w, r)
	if !ok {
		return
	}
	var fields map[string]any
	if err := readJSON(r, &fields); err != nil {
		writeError(w, err)
		return
	}
	if len(fields) == 0 {
		writeError(w, apperr.New(apperr.KindValidation, "request body must contain the fields to update"))
		return
	}
	updated, err := s.Graph.UpdateContact(r.Context(), token, r.PathValue("id"), fields)
	if err != nil {
		graphError(w, err, "could not update the contact in Microsoft Graph")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	token, ok := s.requireMSToken(w, r)
	if !ok {
		return
	}
	out, err := s.Graph.DeleteContact(r.Context(), token, r.PathValue("id"))
	if err != nil {
		graphError(w, err, "could not delete the contact in Microsoft Graph")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type sendMailRequest struct {
	Subject  string   `json:"subject"`
	BodyHTML string   `json:"body_html"`
	To       []string `json:"to"`
}

func (s *Server) handleSendMail(w http.ResponseWriter, r *http.Request) {
	token, ok := s.requireMSToken(w, r)
	if !ok {
		return
	}
	var body sendMailRequest
	if err := readJSON(r, &body); err != nil {
		writeError(w, apperr.New(apperr.KindValidation, "required fields: subject, body_html, to (array with at least one email)"))
		return
	}
	if strings.TrimSpace(body.Subject) == "" || len(body.To) == 0 {
		writeError(w, apperr.New(apperr.KindValidation, "required fields: subject, body_html, to (array with at least one email)"))
		return
	}

	out, err := s.Graph.SendMail(r.Context(), token, strings.TrimSpace(body.Subject), body.BodyHTML, body.To)
	if err != nil {
		graphError(w, err, "could not send the email through Microsoft Graph")
		return
	}
	writeJSON(w, http.StatusAccepted, out)
}

func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	token, ok := s.requireMSToken(w, r)
	if !ok {
		return
	}
	out, err := s.Graph.ListInbox(r.Context(), token, queryInt(r, "top", 25, 100), querySelect(r))
	if err != nil {
		graphError(w, err, "could not list Inbox messages")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSent(w http.ResponseWriter, r *http.Request) {
	token, ok := s.requireMSToken(w, r)
	if !ok {
		return
	}
	out, err := s.Graph.ListSent(r.Context(), token, queryInt(r, "top", 25, 100))
	if err != nil {
		graphError(w, err, "could not list sent messages")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	token, ok := s.requireMSToken(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	var out map[string]any
	var err error
	if fields := querySelect(r); len(fields) > 0 {
		out, err = s.Graph.GetMessageFields(r.Context(), token, id, fields)
	} else {
		out, err = s.Graph.GetMessage(r.Context(), token, id, queryBool(r, "include_body"))
	}
	if err != nil {
		if apperr.Is(graph.Classify(err, apperr.KindGraph), apperr.KindNotFound) {
			writeError(w, apperr.New(apperr.KindNotFound, "message "+id+" not found"))
			return
		}
		graphError(w, err, "could not query the message in Microsoft Graph")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	token, ok := s.requireMSToken(w, r)
	if !ok {
		return
	}
	me, err := s.Graph.Me(r.Context(), token)
	if err != nil {
		graphError(w, err, "could not read the profile")
		return
	}
	writeJSON(w, http.StatusOK, me)
}

func (s *Server) handlePhoto(w http.ResponseWriter, r *http.Request) {
	token, ok := s.requireMSToken(w, r)
	if !ok {
		return
	}
	data, contentType, err := s.Graph.Photo(r.Context(), token)
	if err != nil {
		graphError(w, err, "could not read the profile photo")
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}
