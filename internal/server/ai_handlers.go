package server

import (
	"net/http"
	"strings"

	"github.com/TheLazyLemur/graphpilot/internal/apperr"
	"github.com/TheLazyLemur/graphpilot/internal/plan"
)

type promptRequest struct {
	Prompt string `json:"prompt"`
}

func readPrompt(r *http.Request) (string, error) {
	var body promptRequest
	if err := readJSON(r, &body); err != nil {
		return "", err
	}
	prompt := strings.TrimSpace(body.Prompt)
	if prompt == "" {
		return "", apperr.New(apperr.KindValidation, "field 'prompt' is required")
	}
	return prompt, nil
}

// handleChat forwards the prompt to the model verbatim and returns its text.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	prompt, err := readPrompt(r)
	if err != nil {
		writeError(w, err)
		return
	}
	text, err := s.Gateway.Send(r.Context(), prompt)
	if err != nil {
		if _, ok := apperr.As(err); !ok {
			err = apperr.Wrap(apperr.KindModelUnavailable, err, "model request failed")
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": text})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	prompt, err := readPrompt(r)
	if err != nil {
		writeError(w, err)
		return
	}
	clean, err := s.Planner.Plan(r.Context(), prompt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*plan.CleanPlan{"plan": clean})
}

// handleAgent plans first and dispatches second; the Microsoft token is only
// needed once the plan turns out to call Graph.
func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	prompt, err := readPrompt(r)
	if err != nil {
		writeErrorStatus(w, err, agentStatus)
		return
	}
	clean, err := s.Planner.Plan(r.Context(), prompt)
	if err != nil {
		writeErrorStatus(w, err, agentStatus)
		return
	}
	res, err := s.Dispatcher.Dispatch(r.Context(), clean, s.msToken(r))
	if err != nil {
		writeErrorStatus(w, err, agentStatus)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// agentStatus keeps the agent route on 400, 401 and 502. A resource the plan
// pointed at but Graph could not find is an upstream failure here.
func agentStatus(kind apperr.Kind) int {
	status := kind.Status()
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnauthorized:
		return status
	default:
		return http.StatusBadGateway
	}
}
