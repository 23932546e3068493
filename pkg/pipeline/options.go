package pipeline

import (
	"cmp"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

var validate = newValidate()

// rgbColor matches opaque #rgb and #rrggbb colours
var rgbColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("option"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("rgbcolor", func(fl validator.FieldLevel) bool {
		return rgbColor.MatchString(fl.Field().String())
	})
	return v
}

// DecodeOptions decodes opts over the defaults already held by dst, then
// validates dst using its `validate` tags. dst must be a pointer to a struct
// whose fields carry `option` tags. Values are weakly typed, so "144" and
// 144 both decode into an int.
func DecodeOptions(opts Options, dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		TagName:          "option",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("create options decoder: %w", err)
	}

	if opts == nil {
		opts = Options{}
	}
	if err := dec.Decode(map[string]any(opts)); err != nil {
		return NewError(KindInvalidOptions, "invalid options").WithDetail(err.Error())
	}

	if err := validate.Struct(dst); err != nil {
		return NewError(KindInvalidOptions, "invalid options").WithDetail(describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s (got %v)", fe.Field(), fe.Tag(), fe.Value()))
		}
	}
	return strings.Join(msgs, "; ")
}

// Clamp limits v to [lo, hi]
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}
