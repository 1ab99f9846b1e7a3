package prompt

import (
	"fmt"
	"strings"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
)

var toneGuides = map[core.Tone]string{
	core.ToneProfessional:   "Authoritative and polished. Clear structure, precise wording, no slang.",
	core.ToneCasual:         "Relaxed and friendly. Short sentences, everyday words, light humour where it fits.",
	core.ToneTechnical:      "Precise and detailed for practitioners. Use correct terminology, concrete examples and specifics.",
	core.ToneConversational: "Speak directly to the reader as \"you\". Ask the occasional question and keep the flow natural.",
}

// ToneGuide returns the style instruction for tone.
func ToneGuide(tone core.Tone) string {
	if g, ok := toneGuides[tone]; ok {
		return g
	}
	return toneGuides[core.ToneProfessional]
}

// Render turns a GenerationRequest into the prompt text sent to the model.
func Render(req core.GenerationRequest) string {
	var prompt strings.Builder

	prompt.WriteString("You are an expert blog writer and SEO specialist. Write an original blog post inspired by the source article below.\n\n")

	prompt.WriteString("**Source article**\n")
	if req.Title != "" {
		prompt.WriteString(fmt.Sprintf("Title: %s\n", req.Title))
	}
	if req.SourceURL != "" {
		prompt.WriteString(fmt.Sprintf("URL: %s\n", req.SourceURL))
	}
	prompt.WriteString(fmt.Sprintf("Topic: %s\n", req.Topic))
	if req.Intent != "" {
		prompt.WriteString(fmt.Sprintf("Article type: %s\n", req.Intent))
	}
	if req.Summary != "" {
		prompt.WriteString(fmt.Sprintf("Summary: %s\n", req.Summary))
	}
	prompt.WriteString(fmt.Sprintf("\nContent:\n%s\n\n", req.ContentExcerpt))

	prompt.WriteString("**Requirements**\n")
	prompt.WriteString(fmt.Sprintf("- Length: about %d words across the introduction, sections and conclusion.\n", req.TargetWordCount))
	prompt.WriteString(fmt.Sprintf("- Tone: %s. %s\n", req.Tone, ToneGuide(req.Tone)))
	if len(req.PrimaryKeywords) > 0 {
		prompt.WriteString(fmt.Sprintf("- Primary keywords (use each naturally, at least once): %s\n", strings.Join(req.PrimaryKeywords, ", ")))
	}
	if len(req.SecondaryKeywords) > 0 {
		prompt.WriteString(fmt.Sprintf("- Secondary keywords (use where relevant): %s\n", strings.Join(req.SecondaryKeywords, ", ")))
	}
	if req.Language != "" && req.Language != "und" {
		prompt.WriteString(fmt.Sprintf("- Write in the language with code %q.\n", req.Language))
	}
	prompt.WriteString("- Do not copy sentences from the source; rephrase and add insight.\n")
	prompt.WriteString("- Use 3 to 6 sections, each with a descriptive heading.\n")
	prompt.WriteString("- Meta description: 120 to 160 characters, includes the main keyword.\n")
	prompt.WriteString("- Tags: 5 to 10 short lowercase tags.\n\n")

	prompt.WriteString("**Output format**\n")
	prompt.WriteString("Respond with a single JSON object and nothing else:\n")
	prompt.WriteString(`{
  "title": "string",
  "meta_description": "string",
  "introduction": "string",
  "sections": [{"heading": "string", "content": "string"}],
  "conclusion": "string",
  "cta": "string",
  "tags": ["string"]
}`)
	prompt.WriteString("\n")

	return prompt.String()
}
