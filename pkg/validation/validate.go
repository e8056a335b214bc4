package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"chatdb/pkg/models"
)

// Rules holds the store-side validation limits. The API layer validates
// requests with struct tags; the store re-validates with these rules so a
// misbehaving caller cannot bypass them.
type Rules struct {
	MaxTextLen int
}

var rules = Rules{MaxTextLen: 1000}

func SetRules(r Rules) {
	if r.MaxTextLen <= 0 {
		r.MaxTextLen = 1000
	}
	rules = r
}

// ValidateMessage checks the content constraints on a message:
// text length, empty-text-without-image rejection, and consistency of the
// derived type with the actual content.
func ValidateMessage(m models.Message) error {
	var errs []string
	if n := utf8.RuneCountInString(m.Text); n > rules.MaxTextLen {
		errs = append(errs, fmt.Sprintf("text too long: %d > %d", n, rules.MaxTextLen))
	}
	if strings.TrimSpace(m.Text) == "" && m.ImageURL == "" {
		errs = append(errs, "empty message: text required when no image is attached")
	}
	if m.ImageURL == "" && m.ThumbnailURL != "" {
		errs = append(errs, "thumbnail_url present without image_url")
	}
	if m.Type != "" && m.Type != models.DeriveType(m.Text, m.ImageURL) {
		errs = append(errs, fmt.Sprintf("type %q inconsistent with content", m.Type))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
