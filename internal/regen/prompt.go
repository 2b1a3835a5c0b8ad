package regen

import (
	"fmt"
	"strings"

	"dentaldir/internal/store"
	"dentaldir/internal/textutil"
)

const systemPrompt = `You are an SEO copywriter for a dental clinic directory.
Write accurate, patient-friendly copy. Never invent prices, clinic names or medical claims.
Respond with a single JSON object only, no commentary.`

// PageContext is what the prompt and the fallback template know about a page.
type PageContext struct {
	Location string
	State    string
	Service  string
	PageType string
}

// Place renders "City, State", or just the location when no state is known.
func (c PageContext) Place() string {
	if c.State == "" || strings.EqualFold(c.State, c.Location) {
		return c.Location
	}
	return c.Location + ", " + c.State
}

// Subject is the service name or "Dentists" for plain location pages.
func (c PageContext) Subject() string {
	if c.Service != "" {
		return c.Service
	}
	return "Dentists"
}

// ContextFromPage parses location, state and service out of the page slug.
// Slugs that do not follow state/city[/service] use the whole slug as the
// location.
func ContextFromPage(page *store.Page) PageContext {
	ctx := PageContext{PageType: page.PageType}
	slug, err := textutil.ParseSlug(page.Slug)
	if err != nil {
		ctx.Location = textutil.TitleFromSlug(strings.ReplaceAll(page.Slug, "/", " "))
		return ctx
	}
	ctx.Location = textutil.TitleFromSlug(slug.City)
	ctx.State = textutil.TitleFromSlug(slug.State)
	ctx.Service = textutil.TitleFromSlug(slug.Service)
	return ctx
}

// BuildPrompt returns the system and user prompts for one page.
func BuildPrompt(pc PageContext, current store.PageContent, cfg store.RegenerationConfig, customPrompt string) (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Page: %s in %s", pc.Subject(), pc.Place())
	if pc.PageType != "" {
		fmt.Fprintf(&b, " (%s page)", pc.PageType)
	}
	b.WriteString("\n")
	if current.H1 != "" {
		fmt.Fprintf(&b, "Current H1: %s\n", current.H1)
	}
	b.WriteString("\nReturn JSON with exactly these keys:\n")
	if cfg.RegenerateH1 {
		fmt.Fprintf(&b, "- \"h1\": one heading naming %s and %s\n", strings.ToLower(pc.Subject()), pc.Location)
	}
	if cfg.RegenerateMetaTitle {
		fmt.Fprintf(&b, "- \"meta_title\": %d to %d characters\n", MetaTitleMin+20, MetaTitleMax)
	}
	if cfg.RegenerateMetaDescription {
		fmt.Fprintf(&b, "- \"meta_description\": %d to %d characters with a call to action\n", MetaDescriptionMin+30, MetaDescriptionMax)
	}
	if cfg.RegenerateContent {
		fmt.Fprintf(&b, "- \"content\": HTML body of about %d words using <p> and <h2> tags\n", cfg.TargetWordCount)
	}
	if cfg.RegenerateSections {
		b.WriteString("- \"sections\": at least 3 objects with \"heading\" and \"body\" (HTML)\n")
	}
	if cfg.RegenerateFAQ {
		b.WriteString("- \"faq\": at least 3 objects with \"question\" and \"answer\"\n")
	}
	if customPrompt != "" {
		b.WriteString("\nAdditional instructions:\n")
		b.WriteString(customPrompt)
		b.WriteString("\n")
	}
	return systemPrompt, strings.TrimSpace(b.String())
}
