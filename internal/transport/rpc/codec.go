package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	perrors "github.com/abgdnv/products-ms/internal/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Commands understood by the server. The NATS subject is "<prefix>.<command>".
const (
	CmdCreateProduct    = "create_product"
	CmdFindAllProducts  = "find_all_products"
	CmdFindOneProduct   = "find_one_product"
	CmdUpdateProduct    = "update_product"
	CmdDeleteProduct    = "delete_product"
	CmdValidateProducts = "validate_products"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	// maxPriceDecimals matches the scale of the price column.
	maxPriceDecimals = 4
)

// Error is the failure part of a reply. Status follows HTTP conventions.
type Error struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Status, e.Message)
}

// Reply is the envelope of every response: exactly one of Data or Error is set.
type Reply struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

type createProductRequest struct {
	Name  string           `json:"name"  validate:"required,max=255"`
	Price *decimal.Decimal `json:"price" validate:"required,gte=0"`
}

type paginationRequest struct {
	Page  int32 `json:"page"  validate:"min=1"`
	Limit int32 `json:"limit" validate:"min=1"`
}

// idRequest only checks that an id is present. Ids that cannot exist are reported as not found.
type idRequest struct {
	ID *int64 `json:"id" validate:"required"`
}

// updateProductRequest addresses the product by ID; the remaining fields form the partial update.
type updateProductRequest struct {
	ID    *int64           `json:"id"    validate:"required"`
	Name  *string          `json:"name"  validate:"omitempty,min=1,max=255"`
	Price *decimal.Decimal `json:"price" validate:"omitempty,gte=0"`
}

type validateProductsRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1"`
}

// requestError marks a malformed or invalid payload.
type requestError struct {
	msg string
}

func (e *requestError) Error() string {
	return e.msg
}

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// newValidator returns a validator that reports json field names and compares decimals numerically.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// decode unmarshals data into req and validates it. An empty payload is treated as an empty object.
func decode(v *validator.Validate, data []byte, req any) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 {
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(req); err != nil {
			return badRequest("invalid request payload: %v", err)
		}
	}
	if err := v.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			rules := make([]string, 0, len(validationErrors))
			for _, fieldErr := range validationErrors {
				rules = append(rules, fieldErr.Field()+" failed on rule: "+fieldErr.Tag())
			}
			return badRequest("validation failed: %s", strings.Join(rules, "; "))
		}
		return badRequest("invalid request payload: %v", err)
	}
	return nil
}

// decodeIDs accepts either a bare JSON array of ids or an object {"ids": [...]}.
func decodeIDs(v *validator.Validate, data []byte) ([]int64, error) {
	var req validateProductsRequest
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &req.IDs); err != nil {
			return nil, badRequest("invalid request payload: %v", err)
		}
		trimmed = nil
	}
	if err := decode(v, trimmed, &req); err != nil {
		return nil, err
	}
	return req.IDs, nil
}

func checkPrice(price *decimal.Decimal) error {
	if price != nil && !price.Equal(price.Truncate(maxPriceDecimals)) {
		return badRequest("validation failed: price must have at most %d decimal places", maxPriceDecimals)
	}
	return nil
}

// toError maps an error to the status and message sent to the caller.
// Unexpected failures get a generic message; details stay in the logs.
func toError(err error) *Error {
	var reqErr *requestError
	var notFound *perrors.NotFoundError
	switch {
	case errors.As(err, &reqErr):
		return &Error{Status: http.StatusBadRequest, Message: reqErr.Error()}
	case errors.As(err, &notFound):
		return &Error{Status: http.StatusNotFound, Message: notFound.Error()}
	case errors.Is(err, perrors.ErrProductNotFound):
		return &Error{Status: http.StatusNotFound, Message: "Product not found"}
	case errors.Is(err, perrors.ErrSomeProductsNotFound):
		return &Error{Status: http.StatusBadRequest, Message: "Some products were not found"}
	case errors.Is(err, perrors.ErrInvalidArgument):
		return &Error{Status: http.StatusBadRequest, Message: "Invalid argument"}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Status: http.StatusGatewayTimeout, Message: "The request timed out"}
	default:
		return &Error{Status: http.StatusInternalServerError, Message: "Internal server error"}
	}
}
