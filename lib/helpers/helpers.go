package helpers

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func EscapeMarkdownV2(text string) string {
	charactersToEscape := []string{".", "-", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "=", "|", "{", "}", "!"}

	for _, char := range charactersToEscape {
		text = strings.ReplaceAll(text, char, "\\"+char)
	}
	return text
}

// FormatFare renders a fare with thousands separators. Airfares never need
// sub-cent precision.
func FormatFare(fare float64, escapeMarkdown bool) string {
	decimals := 2
	if fare >= 1000 {
		decimals = 0
	}

	p := message.NewPrinter(language.English)
	formatted := p.Sprintf("%.*f", decimals, fare)

	if escapeMarkdown {
		return EscapeMarkdownV2(formatted)
	}
	return formatted
}

func FormatFareRounded(fare float64) string {
	p := message.NewPrinter(language.English)
	return EscapeMarkdownV2(p.Sprintf("%d", int(fare+0.5)))
}
