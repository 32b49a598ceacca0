package notify

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatAmount renders amount in code for the given locale, e.g. "THB 1,250.00" in English.
// Unknown currencies or locales fall back to a plain rendering.
func FormatAmount(locale string, amount float64, code string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return fmt.Sprintf("%s %.2f", strings.ToUpper(code), amount)
	}
	p := message.NewPrinter(tag)
	return p.Sprint(currency.ISO(unit.Amount(amount)))
}
