package delivery

import (
	"errors"
	"strings"

	"go.mau.fi/whatsmeow/types"

	"whatsapp-bulk/internal/contacts"
)

var ErrInvalidNumber = errors.New("invalid number format")

// NormalizeNumber strips every non-digit from raw. A 10-digit result gets the
// country prefix; the outcome must be the prefix followed by 10 digits.
func NormalizeNumber(raw, prefix string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	number := b.String()
	if len(number) == 10 {
		number = prefix + number
	}
	if len(number) != len(prefix)+10 || !strings.HasPrefix(number, prefix) {
		return "", ErrInvalidNumber
	}
	return number, nil
}

// Address returns the routable recipient address for a normalized number.
func Address(number string) string {
	return types.NewJID(number, types.DefaultUserServer).String()
}

// Renderer produces the message text for one contact.
type Renderer func(contacts.Contact) string

// TemplateRenderer substitutes {name} with the contact name, or a single space
// when the contact has none.
func TemplateRenderer(tmpl string) Renderer {
	return func(c contacts.Contact) string {
		name := c.Name
		if name == "" {
			name = " "
		}
		return strings.ReplaceAll(tmpl, "{name}", name)
	}
}
