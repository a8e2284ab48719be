package middleware

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// cartPayload mirrors the add-to-cart request shape.
type cartPayload struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// discountPayload mirrors the batch discount fields.
type discountPayload struct {
	DiscountPercent int `json:"discount_percent" validate:"gte=0,lte=100"`
}

func decodePayload(t *testing.T, body map[string]interface{}, v interface{}) error {
	t.Helper()
	reqBody, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", "/api/reservations/cart", bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	return DecodeAndValidate(req, v)
}

func TestProperty_RequiredFieldValidationWorks(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("requests missing required fields are rejected", prop.ForAll(
		func(includeProduct bool, includeQuantity bool) bool {
			reqMap := make(map[string]interface{})
			if includeProduct {
				reqMap["product_id"] = uuid.New().String()
			}
			if includeQuantity {
				reqMap["quantity"] = 2
			}

			var payload cartPayload
			err := decodePayload(t, reqMap, &payload)

			if includeProduct && includeQuantity {
				return err == nil
			}
			return err != nil
		},
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ValidationErrorsAreFormatted(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("validation errors name the offending field", prop.ForAll(
		func(badID string) bool {
			reqMap := map[string]interface{}{
				"product_id": badID,
				"quantity":   1,
			}

			var payload cartPayload
			err := decodePayload(t, reqMap, &payload)
			if err == nil {
				return false
			}

			validationErrors := FormatValidationErrors(err)
			if len(validationErrors) == 0 {
				return false
			}
			for _, ve := range validationErrors {
				if ve.Field == "" || ve.Message == "" {
					return false
				}
			}
			return true
		},
		gen.RegexMatch(`[a-z0-9]{1,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ValidRequestsPassValidation(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("well-formed cart requests pass", prop.ForAll(
		func(quantity int) bool {
			reqMap := map[string]interface{}{
				"product_id": uuid.New().String(),
				"quantity":   quantity,
			}

			var payload cartPayload
			return decodePayload(t, reqMap, &payload) == nil
		},
		gen.IntRange(1, 1000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_DiscountPercentRangeValidation(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("discount percent outside [0, 100] is rejected", prop.ForAll(
		func(percent int) bool {
			reqMap := map[string]interface{}{
				"discount_percent": percent,
			}

			var payload discountPayload
			err := decodePayload(t, reqMap, &payload)

			if percent >= 0 && percent <= 100 {
				return err == nil
			}
			return err != nil
		},
		gen.IntRange(-100, 300),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestNonPositiveQuantityRejected(t *testing.T) {
	for _, quantity := range []int{-5, -1} {
		var payload cartPayload
		err := decodePayload(t, map[string]interface{}{
			"product_id": uuid.New().String(),
			"quantity":   quantity,
		}, &payload)
		if err == nil {
			t.Errorf("quantity %d should be rejected", quantity)
		}
	}
}
