package ai

import "strings"

// SystemPrompt is the provider-independent system message for writing
// assistance requests.
const SystemPrompt = "You are a professional resume and cover letter writer. " +
	"Respond with the requested text only. No markdown, no preamble, no quotation marks."

var targetInstructions = map[string]string{
	"opening":     "Write a cover letter opening paragraph of 3-5 sentences. Address the role directly and state why the candidate fits.",
	"experience":  "Write a work experience description of 2-4 sentences in the first person, focused on impact and concrete outcomes.",
	"achievement": "Write a one-sentence achievement description that leads with the result.",
}

// KnownTarget reports whether the generation target is supported.
func KnownTarget(target string) bool {
	_, ok := targetInstructions[target]
	return ok
}

// BuildPrompt renders the user prompt for a generation request.
func BuildPrompt(input GenerateInput) string {
	var b strings.Builder
	b.WriteString(targetInstructions[input.Target])
	if role := strings.TrimSpace(input.Role); role != "" {
		b.WriteString("\n\nTarget role: ")
		b.WriteString(role)
	}
	if company := strings.TrimSpace(input.Company); company != "" {
		b.WriteString("\nCompany: ")
		b.WriteString(company)
	}
	if jd := strings.TrimSpace(input.JobDescription); jd != "" {
		b.WriteString("\n\nJob description:\n")
		b.WriteString(jd)
	}
	if existing := strings.TrimSpace(input.Existing); existing != "" {
		b.WriteString("\n\nThe candidate's current draft, to improve rather than discard:\n")
		b.WriteString(existing)
	}
	return b.String()
}
