package httpx

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// messages maps "<json path>|<tag>" to the text shown to shoppers.
var messages = map[string]string{
	"customer.name|required":    "Name is required",
	"customer.email|required":   "Email is required",
	"customer.email|email":      "Invalid email format",
	"customer.phone|required":   "Phone number is required",
	"customer.address|required": "Address is required",
	"customer.zip|required":     "ZIP code is required",
	"customer.city|required":    "City is required",
	"customer.country|required": "Country is required",
	"payment.method|required":   "Payment method is required",
	"payment.method|oneof":      "Payment method must be emoney or cash",
	"productId|required":        "Product ID is required",
}

func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldErrors turns validator output into shopper-facing messages. Any other
// error is returned as a single anonymous entry.
func fieldErrors(err error) []fieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []fieldError{{Message: err.Error()}}
	}
	out := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		path := fe.Namespace()
		if i := strings.Index(path, "."); i >= 0 {
			path = path[i+1:]
		}
		msg, ok := messages[path+"|"+fe.Tag()]
		if !ok {
			msg = path + " is invalid"
		}
		out = append(out, fieldError{Field: path, Message: msg})
	}
	return out
}
