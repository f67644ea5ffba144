package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/apperr"
)

// PaymentMethods is the closed set accepted at checkout. Virtual accounts
// are matched by prefix (virtual_account_bca, virtual_account_bni, ...).
var PaymentMethods = map[string]bool{
	"bank_transfer": true,
	"qris":          true,
	"gopay":         true,
	"shopeepay":     true,
}

const VirtualAccountPrefix = "virtual_account_"

func ValidPaymentMethod(m string) bool {
	if PaymentMethods[m] {
		return true
	}
	return strings.HasPrefix(m, VirtualAccountPrefix) && len(m) > len(VirtualAccountPrefix)
}

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = val.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return ValidPaymentMethod(fl.Field().String())
	})
	return val
}

// Struct validates s and flattens failures into an *apperr.ValidationError
// keyed by JSON field path (e.g. "items[0].quantity").
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &apperr.ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fieldPath(fe)] = message(fe)
	}
	return out
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be %s or more", fe.Param())
	case "lte":
		return fmt.Sprintf("must be %s or less", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "payment_method":
		return "unsupported payment method"
	default:
		return "is invalid"
	}
}
