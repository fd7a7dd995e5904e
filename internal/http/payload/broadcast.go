package payload

import (
	"errors"
	"regexp"

	"github.com/jellydator/validation"
)

var rawTxRegex = regexp.MustCompile(`^(0x)?[a-fA-F0-9]+$`)

// BroadcastRequest carries one raw transaction or a batch; exactly one of the
// two fields must be set.
type BroadcastRequest struct {
	RawTx  string   `json:"rawTx,omitempty"`
	RawTxs []string `json:"rawTxs,omitempty"`
}

func (b BroadcastRequest) Validate() error {
	if b.RawTx == "" && len(b.RawTxs) == 0 {
		return errors.New("rawTx or rawTxs is required")
	}
	if b.RawTx != "" && len(b.RawTxs) > 0 {
		return errors.New("rawTx and rawTxs are mutually exclusive")
	}

	return validation.ValidateStruct(&b,
		validation.Field(&b.RawTx, validation.When(b.RawTx != "", validation.Match(rawTxRegex))),
		validation.Field(&b.RawTxs, validation.Each(validation.Match(rawTxRegex))),
	)
}

// Transactions flattens the request into the list form the core consumes.
func (b BroadcastRequest) Transactions() []string {
	if b.RawTx != "" {
		return []string{b.RawTx}
	}
	return b.RawTxs
}
