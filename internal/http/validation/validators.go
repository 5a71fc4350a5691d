// Package validation checks form input with go-playground/validator and
// reports per-field messages the forms can show next to each input.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

var codePattern = regexp.MustCompile(`^\d{4,8}$`)

// Validator wraps a configured validator.Validate.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator with the "cnphone" and "smscode" rules registered.
// Field names in messages come from the `form` tag.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("cnphone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("smscode", func(fl validator.FieldLevel) bool {
		return codePattern.MatchString(fl.Field().String())
	})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{v: v}
}

// FieldErrors maps form field names to messages.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for f, m := range e {
		parts = append(parts, f+": "+m)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Struct validates s. It returns nil or a FieldErrors.
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; !seen {
			out[fe.Field()] = message(fe)
		}
	}
	return out
}

// Phone reports whether raw is a mainland mobile number.
func Phone(raw string) bool { return phonePattern.MatchString(strings.TrimSpace(raw)) }

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "此项为必填项"
	case "cnphone":
		return "请输入有效的11位手机号"
	case "smscode":
		return "验证码格式不正确"
	case "min":
		return fmt.Sprintf("至少%s个字符", fe.Param())
	case "max":
		return fmt.Sprintf("不能超过%s个字符", fe.Param())
	case "email":
		return "邮箱格式不正确"
	case "oneof":
		return "请选择有效的选项"
	case "eqfield":
		return "两次输入不一致"
	default:
		return "格式不正确"
	}
}
