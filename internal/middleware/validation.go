package middleware

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	genders        = []string{"male", "female", "other"}
	bloodTypes     = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
	paymentMethods = []string{"cash", "card", "transfer", "insurance"}
)

var registerOnce sync.Once

// RegisterValidators installs the domain validation tags on gin's validator
// and makes field errors report JSON names. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		for tag, fn := range map[string]validator.Func{
			"gender":         oneOfFold(genders),
			"blood_type":     oneOfFold(bloodTypes),
			"payment_method": oneOfFold(paymentMethods),
		} {
			if err := v.RegisterValidation(tag, fn); err != nil {
				panic(err)
			}
		}
	})
}

func oneOfFold(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		for _, a := range allowed {
			if strings.EqualFold(a, value) {
				return true
			}
		}
		return false
	}
}
