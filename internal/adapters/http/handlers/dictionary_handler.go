package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ErrWordNotFound sinaliza que o backend não conhece a palavra consultada.
var ErrWordNotFound = errors.New("word not found")

type DictionaryEntry struct {
	Word               string   `json:"word"`
	Meanings           []string `json:"meanings"`
	Level              string   `json:"level"`
	Synonyms           []string `json:"synonyms"`
	Antonyms           []string `json:"antonyms"`
	ExampleSentence    string   `json:"example_sentence"`
	ExampleTranslation string   `json:"example_translation"`
	Pronunciation      string   `json:"pronunciation,omitempty"`
	PartOfSpeech       string   `json:"part_of_speech,omitempty"`
}

// DictionaryService é o backend de consulta; a origem do conteúdo fica fora
// deste repositório.
type DictionaryService interface {
	Lookup(ctx context.Context, word string) (DictionaryEntry, error)
}

type lookupRequest struct {
	Word string `json:"word"`
}

// NewDictionaryLookupHandler atende GET /v1/dictionary/{word}.
func NewDictionaryLookupHandler(service DictionaryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveLookup(w, r, service, chi.URLParam(r, "word"))
	}
}

// NewDictionarySearchHandler atende POST /v1/dictionary com {"word": ...}.
func NewDictionarySearchHandler(service DictionaryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req lookupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		serveLookup(w, r, service, req.Word)
	}
}

func serveLookup(w http.ResponseWriter, r *http.Request, service DictionaryService, word string) {
	word = strings.TrimSpace(word)
	if word == "" {
		writeError(w, http.StatusBadRequest, "word is required")
		return
	}

	entry, err := service.Lookup(r.Context(), word)
	if err != nil {
		if errors.Is(err, ErrWordNotFound) {
			writeError(w, http.StatusNotFound, "word not found")
			return
		}
		log.Printf("dictionary backend failed for %q: %v", word, err)
		writeError(w, http.StatusBadGateway, "dictionary backend unavailable")
		return
	}

	writeJSON(w, http.StatusOK, entry)
}
