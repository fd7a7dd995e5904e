package payload

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jellydator/validation"
)

// query payloads are small; anything larger is rejected before decoding
const maxPayloadBytes = 1 << 20

type DecodeValidator struct{}

// DecodeAndValidateJSONPayload decodes the request body into object, rejecting
// unknown fields and oversized bodies, then runs the payload's own validation
// when it declares any.
func (dv DecodeValidator) DecodeAndValidateJSONPayload(r *http.Request, object any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxPayloadBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(object); err != nil {
		return fmt.Errorf("decoding json payload: %w", err)
	}

	t, ok := object.(validation.Validatable)
	if !ok {
		// nothing to validate
		return nil
	}

	if err := t.Validate(); err != nil {
		return fmt.Errorf("validating payload: %w", err)
	}

	return nil
}
