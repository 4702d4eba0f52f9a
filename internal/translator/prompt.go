package translator

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// LanguageName returns the English name of a BCP 47 code ("ar" → "Arabic"),
// or the code itself when it cannot be parsed.
func LanguageName(code string) string {
	if code == "" || code == "auto" {
		return "the detected language"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

// buildSystemPrompt constructs the system prompt, optionally injecting
// glossary terms, a sliding-window context and extra instructions.
func buildSystemPrompt(req TranslateRequest) string {
	source, target := LanguageName(req.SourceLang), LanguageName(req.TargetLang)

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an expert translator specializing in accurate, context-aware translations from %s to %s.\n\n", source, target)
	sb.WriteString("Instructions:\n")
	sb.WriteString("- Translate with precision, keeping the exact meaning and nuance\n")
	sb.WriteString("- Preserve the original structure, paragraph breaks and verse numbering\n")
	sb.WriteString("- For religious or classical texts, use established terminology and keep a reverent register\n")
	sb.WriteString("- Keep proper nouns, names and technical terms accurate\n")
	sb.WriteString("- Return ONLY the translation, without explanations, prefixes or commentary")

	if req.Instructions != "" {
		sb.WriteString("\n- ")
		sb.WriteString(req.Instructions)
	}

	if len(req.Glossary) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(GlossaryBlock(req.Glossary))
	}

	if req.PreviousContext != "" {
		fmt.Fprintf(&sb, "\n\nCONTEXT (end of the previous passage, for continuity only, do NOT translate it):\n...%s", req.PreviousContext)
	}

	return sb.String()
}

// GlossaryBlock renders the terminology section of the system prompt, terms
// sorted by source. It is empty for an empty glossary.
func GlossaryBlock(glossary map[string]string) string {
	if len(glossary) == 0 {
		return ""
	}
	terms := make([]string, 0, len(glossary))
	for src := range glossary {
		terms = append(terms, src)
	}
	sort.Strings(terms)

	var sb strings.Builder
	sb.WriteString("TERMINOLOGY (use these exact translations):\n")
	for _, src := range terms {
		fmt.Fprintf(&sb, "  %s → %s\n", src, glossary[src])
	}
	return sb.String()
}

// buildUserPrompt wraps the unit text.
func buildUserPrompt(req TranslateRequest) string {
	return fmt.Sprintf("%s text:\n%s\n\n%s translation:", LanguageName(req.SourceLang), req.Text, LanguageName(req.TargetLang))
}
