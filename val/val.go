// Package val validates request payloads with go-playground/validator and reports
// failures as coded errors.
package val

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

//nolint:gochecknoglobals // validator caches struct metadata and is safe for concurrent use
var (
	validate     *validator.Validate
	validateOnce sync.Once
	slugPattern  = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(getTagName)
		_ = validate.RegisterValidation("slug", isSlug)
	})
	return validate
}

// isSlug accepts lowercase identifiers such as context tags ("lobby", "game_end").
func isSlug(fl validator.FieldLevel) bool {
	return slugPattern.MatchString(fl.Field().String())
}

// getTagName names a field after its json tag, then its yaml tag, then the Go field name.
func getTagName(fld reflect.StructField) string {
	for _, tagName := range []string{"json", "yaml"} {
		name := strings.SplitN(fld.Tag.Get(tagName), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return fld.Name
}
