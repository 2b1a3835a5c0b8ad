package regen

import (
	"errors"
	"strings"

	"dentaldir/internal/services/llm"
	"dentaldir/internal/store"
)

// generatedPayload accepts both snake_case and camelCase keys since models
// drift between the two regardless of instructions.
type generatedPayload struct {
	H1                   string             `json:"h1"`
	MetaTitle            string             `json:"meta_title"`
	MetaTitleCamel       string             `json:"metaTitle"`
	MetaDescription      string             `json:"meta_description"`
	MetaDescriptionCamel string             `json:"metaDescription"`
	Content              string             `json:"content"`
	Sections             []generatedSection `json:"sections"`
	FAQ                  []store.FAQ        `json:"faq"`
	FAQs                 []store.FAQ        `json:"faqs"`
}

type generatedSection struct {
	Heading string `json:"heading"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Content string `json:"content"`
}

// ErrEmptyGeneration reports a payload that decoded but carried no content.
var ErrEmptyGeneration = errors.New("generated payload has no content fields")

// ParseGenerated decodes a model response into page content. Code fences and
// surrounding prose are tolerated; blank sections and FAQ entries are dropped.
func ParseGenerated(raw string) (store.PageContent, error) {
	var payload generatedPayload
	if err := llm.DecodeLLMJSON(raw, &payload); err != nil {
		return store.PageContent{}, err
	}

	content := store.PageContent{
		H1:              strings.TrimSpace(payload.H1),
		MetaTitle:       firstNonBlank(payload.MetaTitle, payload.MetaTitleCamel),
		MetaDescription: firstNonBlank(payload.MetaDescription, payload.MetaDescriptionCamel),
		Content:         strings.TrimSpace(payload.Content),
	}
	for _, section := range payload.Sections {
		heading := firstNonBlank(section.Heading, section.Title)
		body := firstNonBlank(section.Body, section.Content)
		if heading == "" && body == "" {
			continue
		}
		content.Sections = append(content.Sections, store.Section{Heading: heading, Body: body})
	}
	faqs := payload.FAQ
	if len(faqs) == 0 {
		faqs = payload.FAQs
	}
	for _, faq := range faqs {
		q := strings.TrimSpace(faq.Question)
		a := strings.TrimSpace(faq.Answer)
		if q == "" || a == "" {
			continue
		}
		content.FAQ = append(content.FAQ, store.FAQ{Question: q, Answer: a})
	}

	if content.H1 == "" && content.MetaTitle == "" && content.MetaDescription == "" &&
		content.Content == "" && len(content.Sections) == 0 && len(content.FAQ) == 0 {
		return store.PageContent{}, ErrEmptyGeneration
	}
	return content, nil
}

// Merge overlays the enabled fields of generated onto before. An enabled
// field the model left blank keeps its current value.
func Merge(before, generated store.PageContent, cfg store.RegenerationConfig) store.PageContent {
	out := before.Clone()
	if cfg.RegenerateH1 && generated.H1 != "" {
		out.H1 = generated.H1
	}
	if cfg.RegenerateMetaTitle && generated.MetaTitle != "" {
		out.MetaTitle = generated.MetaTitle
	}
	if cfg.RegenerateMetaDescription && generated.MetaDescription != "" {
		out.MetaDescription = generated.MetaDescription
	}
	if cfg.RegenerateContent && generated.Content != "" {
		out.Content = generated.Content
	}
	if cfg.RegenerateSections && len(generated.Sections) > 0 {
		out.Sections = append([]store.Section(nil), generated.Sections...)
	}
	if cfg.RegenerateFAQ && len(generated.FAQ) > 0 {
		out.FAQ = append([]store.FAQ(nil), generated.FAQ...)
	}
	return out
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
