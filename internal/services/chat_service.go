package services

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode"

	"ru-ticket/internal/status"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed faq.yaml
var faqYAML []byte

const maxChatMessage = 500

type FAQEntry struct {
	Pergunta string   `yaml:"pergunta"`
	Palavras []string `yaml:"palavras"`
	Resposta string   `yaml:"resposta"`
}

type faqFile struct {
	Fallback string     `yaml:"fallback"`
	Entries  []FAQEntry `yaml:"entries"`
}

type ChatReply struct {
	Resposta string `json:"resposta"`
	Pergunta string `json:"pergunta,omitempty"`
}

// ChatService answers questions from a fixed FAQ by keyword overlap.
type ChatService struct {
	fallback string
	entries  []FAQEntry
}

func NewChatService() (*ChatService, error) {
	return NewChatServiceFromYAML(faqYAML)
}

func NewChatServiceFromYAML(data []byte) (*ChatService, error) {
	var f faqFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse faq: %w", err)
	}
	if len(f.Entries) == 0 {
		return nil, fmt.Errorf("parse faq: no entries")
	}

	for i := range f.Entries {
		for j, w := range f.Entries[i].Palavras {
			f.Entries[i].Palavras[j] = fold(w)
		}
	}
	return &ChatService{fallback: strings.TrimSpace(f.Fallback), entries: f.Entries}, nil
}

func (s *ChatService) Answer(mensagem string) (*ChatReply, error) {
	mensagem = strings.TrimSpace(mensagem)
	if mensagem == "" {
		return nil, status.Invalid("mensagem: cannot be blank.")
	}
	if len(mensagem) > maxChatMessage {
		return nil, status.Invalid(fmt.Sprintf("mensagem: the length must be no more than %d.", maxChatMessage))
	}

	words := map[string]struct{}{}
	for _, w := range strings.FieldsFunc(fold(mensagem), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = struct{}{}
	}

	best, bestScore := -1, 0
	for i, e := range s.entries {
		score := 0
		for _, kw := range e.Palavras {
			if _, ok := words[kw]; ok {
				score++
			}
		}
		// ties go to the earlier entry
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	if best < 0 {
		return &ChatReply{Resposta: s.fallback}, nil
	}
	return &ChatReply{
		Resposta: strings.TrimSpace(s.entries[best].Resposta),
		Pergunta: s.entries[best].Pergunta,
	}, nil
}

// fold lowercases and strips diacritics so "Horário" matches "horario".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
