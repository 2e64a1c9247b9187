package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	safeStringRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)
	accountRe    = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]{2,128}$`)
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("safe_id", validateSafeID)
		_ = v.RegisterValidation("account", validateAccount)
	}
}

// validateSafeID allows alphanumeric, underscore, dash, and dot.
func validateSafeID(fl validator.FieldLevel) bool {
	return safeStringRe.MatchString(fl.Field().String())
}

// MaxReferenceIDLen bounds donation reference ids from the body or the Idempotency-Key header.
const MaxReferenceIDLen = 100

// ValidReferenceID applies the body's reference_id rules to a value read outside binding.
func ValidReferenceID(s string) bool {
	return len(s) <= MaxReferenceIDLen && safeStringRe.MatchString(s)
}

// validateAccount accepts ledger addresses such as 0xabc or alice.eth.
// The "system:" namespace is reserved for internal principals and never matches.
func validateAccount(fl validator.FieldLevel) bool {
	return ValidAccount(fl.Field().String())
}

// ValidAccount reports whether s can name a ledger account.
func ValidAccount(s string) bool {
	return accountRe.MatchString(strings.TrimSpace(s))
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		case reflect.Struct:
			sanitizeFields(f)
		case reflect.Slice:
			for j := 0; j < f.Len(); j++ {
				if f.Index(j).Kind() == reflect.Struct {
					sanitizeFields(f.Index(j))
				}
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
