// Package translate formats user-facing messages through a locale-aware
// printer selected from the host environment.
package translate

import (
	"log"

	"github.com/jeandeaual/go-locale"
	"golang.org/x/text/message"
)

var printer *message.Printer

func init() {
	locales, err := locale.GetLocales()
	if err != nil {
		log.Printf("cputester: locale: %v", err)
	}

	if len(locales) == 0 {
		locales = []string{"en-US"}
	}

	printer = message.NewPrinter(message.MatchLanguage(locales...))
}

// From formats an en-US Sprintf() style key with args for the host locale.
// Numbers are grouped per locale, so indices and addresses that must read
// verbatim are passed as strings.
func From(key message.Reference, args ...any) string {
	return printer.Sprintf(key, args...)
}
