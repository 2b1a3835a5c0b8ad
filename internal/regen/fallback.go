package regen

import (
	"fmt"
	"strings"

	"dentaldir/internal/store"
)

// FallbackContent builds deterministic template copy for a page. It is used
// when the AI endpoint stays rate limited or returns an unusable payload, so
// every item still produces content. Only fields enabled in cfg are filled.
func FallbackContent(pc PageContext, cfg store.RegenerationConfig) store.PageContent {
	subject := pc.Subject()
	lowerSubject := strings.ToLower(subject)
	place := pc.Place()

	var out store.PageContent
	if cfg.RegenerateH1 {
		if pc.Service != "" {
			out.H1 = fmt.Sprintf("%s in %s", subject, place)
		} else {
			out.H1 = fmt.Sprintf("Best Dentists in %s", place)
		}
	}
	if cfg.RegenerateMetaTitle {
		out.MetaTitle = fmt.Sprintf("%s in %s | Compare Clinics", subject, pc.Location)
	}
	if cfg.RegenerateMetaDescription {
		out.MetaDescription = fmt.Sprintf(
			"Find trusted %s in %s. Compare clinics, read patient reviews, check accepted insurance and book your appointment online today.",
			lowerSubject, place)
	}
	if cfg.RegenerateContent {
		paragraphs := []string{
			fmt.Sprintf("Looking for %s in %s? Our directory lists licensed dental clinics in the area with opening hours, languages spoken and accepted insurance plans.", lowerSubject, place),
			fmt.Sprintf("Every clinic profile in %s shows the treatments offered, the dentists on staff and verified patient reviews so you can compare options before you book.", pc.Location),
			"Many clinics offer same-week appointments and evening slots. Contact the clinic directly or use the booking button on its profile to request a visit.",
		}
		var b strings.Builder
		for _, p := range paragraphs {
			b.WriteString("<p>")
			b.WriteString(p)
			b.WriteString("</p>")
		}
		out.Content = b.String()
	}
	if cfg.RegenerateSections {
		out.Sections = []store.Section{
			{
				Heading: fmt.Sprintf("Choosing %s in %s", lowerSubject, pc.Location),
				Body:    "<p>Check the clinic licence, the dentist's experience with your treatment and whether your insurance is accepted.</p>",
			},
			{
				Heading: "What to expect at your first visit",
				Body:    "<p>Most first appointments include an examination, a discussion of your goals and a written treatment plan with costs.</p>",
			},
			{
				Heading: "Insurance and payment",
				Body:    "<p>Clinic profiles list the insurance providers they work with. Ask about direct billing and instalment plans when you book.</p>",
			},
		}
	}
	if cfg.RegenerateFAQ {
		out.FAQ = []store.FAQ{
			{
				Question: fmt.Sprintf("How do I find %s in %s?", lowerSubject, pc.Location),
				Answer:   "Browse the clinic list on this page, filter by insurance or language and open a profile to see reviews and availability.",
			},
			{
				Question: "Do clinics accept insurance?",
				Answer:   "Most clinics accept major insurance plans. Each profile lists the providers it works with.",
			},
			{
				Question: "Can I book an appointment online?",
				Answer:   "Yes. Use the booking button on a clinic profile to request an appointment time.",
			},
		}
	}
	return out
}
