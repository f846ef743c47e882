package rewrite

import "strings"

const instructions = `You are a professional content editor.

TASK:
Rewrite the original article using insights from the competitor articles.

RULES:
- Keep the same topic and intent
- Improve clarity, structure, and depth
- Do NOT copy sentences verbatim
- Write in a neutral, informative tone
- Output ONLY the rewritten article text
- Do not mention competitors or sources
`

// BuildPrompt embeds the original text and the first two competitor texts
// in the rewrite instructions.
func BuildPrompt(original string, competitors [2]string) string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\nORIGINAL ARTICLE:\n")
	b.WriteString(original)
	b.WriteString("\n\nCOMPETITOR ARTICLE 1:\n")
	b.WriteString(competitors[0])
	b.WriteString("\n\nCOMPETITOR ARTICLE 2:\n")
	b.WriteString(competitors[1])
	b.WriteString("\n")
	return b.String()
}
