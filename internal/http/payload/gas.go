package payload

import (
	"regexp"

	"chainquery/internal/core"

	"github.com/jellydator/validation"
)

var decimalRegex = regexp.MustCompile(`^[0-9]+$`)
var hexDataRegex = regexp.MustCompile(`^(0x)?([a-fA-F0-9]{2})*$`)

type EstimateGasRequest struct {
	From  string `json:"from"`
	To    string `json:"to,omitempty"`
	Value string `json:"value,omitempty"`
	Data  string `json:"data,omitempty"`
}

func (g EstimateGasRequest) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.From, validation.Required, validation.Match(addressRegex)),
		validation.Field(&g.To, validation.When(g.To != "", validation.Match(addressRegex))),
		validation.Field(&g.Value, validation.When(g.Value != "", validation.Match(decimalRegex))),
		validation.Field(&g.Data, validation.When(g.Data != "", validation.Match(hexDataRegex))),
	)
}

func (g EstimateGasRequest) ToCoreMessage() core.GasEstimateMessage {
	return core.GasEstimateMessage{
		From:  g.From,
		To:    g.To,
		Value: g.Value,
		Data:  g.Data,
	}
}
