package server

import (
	_ "embed"
	"net/http"
)

//go:embed static/openapi.json
var openAPI []byte

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(openAPI)
}
