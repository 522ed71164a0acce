package domain

import (
	"chat-relay/errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
)

// DisplaySuffix marks the registration of a passive display renderer.
// "alice" and "alice_view" are two physical connections of the same member.
const DisplaySuffix = "_view"

// MaxNameLength keeps names inside the Sender field with its terminator.
const MaxNameLength = 19

var nameCharset = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("chatname", func(fl validator.FieldLevel) bool {
		return nameCharset.MatchString(fl.Field().String())
	})
	return v
}

type nameRequest struct {
	Name string `validate:"required,max=19,chatname"`
}

// ValidateName checks a user or group name against the accepted charset.
func ValidateName(name string) error {
	if err := validate.Struct(nameRequest{Name: name}); err != nil {
		return fmt.Errorf("%w: %q", errors.ErrInvalidName, name)
	}
	return nil
}

// Canonical strips the display suffix and folds case. Registration, ban and
// statistics code must all compare names through it.
func Canonical(name string) string {
	folded := cases.Fold().String(strings.TrimSpace(name))
	return strings.TrimSuffix(folded, DisplaySuffix)
}

// IsDisplayName reports whether the name is a display registration.
func IsDisplayName(name string) bool {
	folded := cases.Fold().String(name)
	return strings.HasSuffix(folded, DisplaySuffix)
}

// DisplayName derives the display registration name of a member.
// The result is trimmed so it still fits the Sender field.
func DisplayName(name string) string {
	if IsDisplayName(name) {
		return name
	}
	base := name
	if max := MaxNameLength - len(DisplaySuffix); len(base) > max {
		base = base[:max]
	}
	return base + DisplaySuffix
}

// SameIdentity compares two names by their canonical form.
func SameIdentity(a, b string) bool {
	return Canonical(a) == Canonical(b)
}
