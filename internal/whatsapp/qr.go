package whatsapp

import (
	"io"

	"github.com/mdp/qrterminal/v3"
)

// TerminalQR returns an OnQR hook that draws pairing codes on w.
func TerminalQR(w io.Writer) func(code string) {
	return func(code string) {
		qrterminal.GenerateHalfBlock(code, qrterminal.L, w)
		io.WriteString(w, "Scan the QR code above with WhatsApp > Linked devices\n")
	}
}
