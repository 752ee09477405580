package apperr

import "errors"

// Terminal is the final presentation of a flow.
type Terminal string

const (
	TerminalSuccess Terminal = "success"
	TerminalError   Terminal = "error"
	TerminalBlocked Terminal = "configuration"
)

// Presentation is what a flow shows the user when it ends.
type Presentation struct {
	Terminal  Terminal `json:"terminal"`
	Kind      Kind     `json:"kind,omitempty"`
	Message   string   `json:"message"`
	TxRef     string   `json:"txRef,omitempty"`
	Retryable bool     `json:"retryable"`
}

// Present maps a flow result to one of the three terminal presentations.
func Present(err error, txHash string) Presentation {
	if err == nil {
		p := Presentation{Terminal: TerminalSuccess, Message: "confirmed"}
		if txHash != "" {
			p.TxRef = ShortenHex(txHash, 4)
			p.Message = "confirmed " + p.TxRef
		}
		return p
	}

	kind := KindOf(err)
	if kind == KindConfiguration {
		return Presentation{Terminal: TerminalBlocked, Kind: kind, Message: Message(err)}
	}
	return Presentation{
		Terminal:  TerminalError,
		Kind:      kind,
		Message:   Message(err),
		Retryable: !errors.Is(err, ErrSuperseded),
	}
}

// ShortenHex keeps the 0x prefix plus chars on each side.
func ShortenHex(value string, chars int) string {
	if value == "" {
		return ""
	}
	if len(value) <= 2+chars*2 {
		return value
	}
	return value[:2+chars] + "…" + value[len(value)-chars:]
}
