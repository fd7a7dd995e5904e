package payload

import (
	"regexp"

	"github.com/jellydator/validation"
)

var addressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// IsAddress reports whether s is a well-formed hex account address.
func IsAddress(s string) bool {
	return addressRegex.MatchString(s)
}

type RegisterWalletRequest struct {
	Name      string   `json:"name"`
	Addresses []string `json:"addresses"`
}

func (w RegisterWalletRequest) Validate() error {
	return validation.ValidateStruct(&w,
		validation.Field(&w.Addresses, validation.Required),
		validation.Field(&w.Addresses, validation.Each(validation.Match(addressRegex))),
	)
}
