package studio

import (
	"strings"
)

// Fixed texts used by the pipeline.
const (
	previewText       = "This is a preview of your broadcast voice."
	previewTextIndian = "Hello, this is a preview of my voice for your broadcast."

	coverPromptLimit = 200
)

// SummarizePrompt builds the instruction sent to the text model. The writing
// style follows language, and English switches to Indian English when the
// selected voice style is an Indian persona.
func SummarizePrompt(text string, language Language, voiceStyle string) string {
	instruction := "Write the summary in English."
	style := "Use a professional, engaging news anchor tone."

	switch language {
	case Hindi:
		instruction = "Write the summary completely in Hindi (Devanagari script)."
		style = "Use a formal yet engaging Hindi news anchor tone (Namaskar style)."
	case Hinglish:
		instruction = "Write the summary in Hinglish (blend of Hindi and English, written in Latin script)."
		style = "Use a casual, conversational Indian podcaster tone."
	case Spanish:
		instruction = "Write the summary in Spanish."
		style = "Use a dynamic and clear news anchor tone typical of Spanish broadcasts."
	case French:
		instruction = "Write the summary in French."
		style = "Use a sophisticated and articulate French news anchor tone."
	case German:
		instruction = "Write the summary in German."
		style = "Use a precise and professional German news anchor tone (Tagesschau style)."
	default:
		if strings.Contains(voiceStyle, "Indian") {
			instruction = "Write the summary in Indian English."
			style = "Use professional Indian English vocabulary (e.g., 'centre', 'programme') and a polite, formal tone."
		} else {
			instruction = "Write the summary in US English."
		}
	}

	var b strings.Builder
	b.WriteString("You are a professional news anchor for a daily podcast called \"Daily Spark\".\n\n")
	b.WriteString("Task: Summarize the following text into a cohesive, spoken-word script.\n\n")
	b.WriteString("Directives:\n")
	b.WriteString("1. Language: " + instruction + "\n")
	b.WriteString("2. Tone: " + style + "\n")
	b.WriteString("3. Structure: Start with a brief welcome. Smoothly transition between topics. End with a sign-off.\n")
	b.WriteString("4. Length: Keep it concise (approx. 2-3 minutes of reading time).\n")
	b.WriteString("5. Formatting: Do NOT use markdown (bold, italics). Output plain text only.\n\n")
	b.WriteString("Input Text:\n")
	b.WriteString(text)
	return b.String()
}

// CoverPrompt builds the cover-art prompt from the first 200 characters of
// the combined article text.
func CoverPrompt(text string) string {
	topics := text
	if r := []rune(text); len(r) > coverPromptLimit {
		topics = string(r[:coverPromptLimit])
	}
	return "Create a professional, abstract, neon-style podcast cover art that represents these topics: " +
		topics + ". \nStyle: Minimalist, Cyberpunk, High Quality, 4k. No Text."
}

// SpeechText strips the markdown emphasis the text model sometimes emits
// despite being told not to.
func SpeechText(text string) string {
	return strings.NewReplacer("**", "", "###", "").Replace(text)
}

// PreviewText is the line spoken when previewing a voice of the given style.
func PreviewText(voiceStyle string) string {
	if strings.Contains(voiceStyle, "Indian") {
		return previewTextIndian
	}
	return previewText
}
