package plan

import "strings"

// offensiveTerms is matched case-insensitively as substrings.
var offensiveTerms = []string{
	"porra", "caralho", "merda", "buceta", "punheta", "puta", "puto", "foder", "foda-se", "fdp",
	"desgraçado", "imbecil", "otário", "vagabunda", "vagabundo", "seu lixo",
	"sexo", "pornô", "pornografia", "nude", "nudes", "boquete", "gozar", "gozo",
	"estupro", "estuprar", "pedofilia", "zoofilia",
}

// forbiddenMarkers flag shell or SQL fragments leaking into model output.
var forbiddenMarkers = []string{"create table", "drop table", "curl ", " wget ", " rm -rf "}

func containsOffensive(text string) bool {
	if text == "" {
		return false
	}
	t := strings.ToLower(text)
	for _, term := range offensiveTerms {
		if strings.Contains(t, term) {
			return true
		}
	}
	return false
}

func containsForbiddenMarker(text string) bool {
	if text == "" {
		return false
	}
	t := strings.ToLower(text)
	for _, m := range forbiddenMarkers {
		if strings.Contains(t, m) {
			return true
		}
	}
	return false
}
