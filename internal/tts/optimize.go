package tts

import (
	"regexp"
	"strings"
)

// abbreviations are spelled out so the synthesizer does not read them as
// words.
var abbreviations = map[string]string{
	"api":  "A P I",
	"url":  "U R L",
	"sql":  "S Q L",
	"html": "H T M L",
	"css":  "C S S",
	"js":   "JavaScript",
	"jwt":  "J W T",
	"crud": "C R U D",
	"ui":   "U I",
	"ux":   "U X",
}

// charReplacements turn written punctuation into audible pauses.
var charReplacements = []struct{ from, to string }{
	{".", "..."},
	{":", ","},
	{";", ","},
	{"–", " "},
	{"—", " "},
	{"|", ","},
	{"•", ","},
}

var (
	abbreviationRe  = regexp.MustCompile(`(?i)\b(api|url|sql|html|css|js|jwt|crud|ui|ux)\b`)
	charsToRemoveRe = regexp.MustCompile("[*#`~\\[\\]()]")
	sentencePauseRe = regexp.MustCompile(`(\w)\.(\s+[A-Z])`)
)

// Optimize rewrites model output for voice synthesis: abbreviations are
// spelled out, markdown noise is stripped and punctuation becomes pauses.
func Optimize(text string) string {
	if text == "" {
		return text
	}

	text = abbreviationRe.ReplaceAllStringFunc(text, func(m string) string {
		return abbreviations[strings.ToLower(m)]
	})

	for _, r := range charReplacements {
		text = strings.ReplaceAll(text, r.from, r.to)
	}

	text = charsToRemoveRe.ReplaceAllString(text, " ")
	text = strings.Join(strings.Fields(text), " ")
	text = sentencePauseRe.ReplaceAllString(text, "$1...$2")

	return text
}
