package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/vbonduro/listingwizard/internal/domain"
)

const (
	MsgRequired   = "this field is required"
	MsgCharset    = "contains disallowed characters"
	MsgFormat     = "invalid format"
	MsgNotAllowed = "value not allowed"
)

// allowedChars accepts letters (accented included), digits, whitespace and a
// fixed punctuation set. Anything else fails the charset check.
var allowedChars = regexp.MustCompile(`^[\p{L}\p{M}\p{N}\s.,;:!?'"()\-/&+%€#°]*$`)

var (
	digitsPattern = regexp.MustCompile(`^[0-9]+$`)
	phonePattern  = regexp.MustCompile(`^\+?[0-9][0-9 .-]{5,19}$`)
)

var formats = validator.New()

// Condition is a predicate over a sibling field. With Present set it holds
// when the sibling is non-empty; otherwise it holds when the sibling equals
// Equals, compared trimmed and case-insensitively.
type Condition struct {
	Field   string `yaml:"field" json:"field"`
	Equals  string `yaml:"equals,omitempty" json:"equals,omitempty"`
	Present bool   `yaml:"present,omitempty" json:"present,omitempty"`
}

func (c Condition) Holds(siblings map[string]string) bool {
	v := strings.TrimSpace(siblings[c.Field])
	if c.Present {
		return v != ""
	}
	return strings.EqualFold(v, strings.TrimSpace(c.Equals))
}

// AllowedWhen restricts the field to Values while the condition holds.
type AllowedWhen struct {
	Condition `yaml:",inline"`
	Values    []string `yaml:"values" json:"values"`
}

// Rule is the declarative validation rule of one field.
type Rule struct {
	Required     bool          `yaml:"required,omitempty" json:"required,omitempty"`
	RequiredWhen *Condition    `yaml:"requiredWhen,omitempty" json:"requiredWhen,omitempty"`
	Min          int           `yaml:"min,omitempty" json:"min,omitempty"`
	Max          int           `yaml:"max,omitempty" json:"max,omitempty"`
	Charset      bool          `yaml:"charset,omitempty" json:"charset,omitempty"`
	Pattern      string        `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Format       string        `yaml:"format,omitempty" json:"format,omitempty"`
	OneOf        []string      `yaml:"oneOf,omitempty" json:"oneOf,omitempty"`
	OneOfWhen    []AllowedWhen `yaml:"oneOfWhen,omitempty" json:"oneOfWhen,omitempty"`

	pattern *regexp.Regexp
}

// Compile prepares the rule's pattern and checks that its format is known.
// It must be called once before the rule is used.
func (r *Rule) Compile() error {
	if r.Pattern != "" {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("failed to compile pattern %q: %w", r.Pattern, err)
		}
		r.pattern = re
	}
	switch r.Format {
	case "", "email", "url", "digits", "phone":
	default:
		return fmt.Errorf("unknown format %q", r.Format)
	}
	if r.Min < 0 || (r.Max > 0 && r.Min > r.Max) {
		return fmt.Errorf("invalid length bounds %d..%d", r.Min, r.Max)
	}
	return nil
}

// IsRequired resolves static and conditional required-ness.
func (r Rule) IsRequired(siblings map[string]string) bool {
	if r.Required {
		return true
	}
	return r.RequiredWhen != nil && r.RequiredWhen.Holds(siblings)
}

// Field validates value against r. siblings holds the other top-level values
// of the same record and is only read by cross-field rules.
func Field(r Rule, value string, siblings map[string]string) domain.Verdict {
	v := strings.TrimSpace(value)
	if v == "" {
		if r.IsRequired(siblings) {
			return domain.InvalidVerdict(MsgRequired)
		}
		return domain.AbsentVerdict()
	}

	if r.Charset && !allowedChars.MatchString(v) {
		return domain.InvalidVerdict(MsgCharset)
	}

	n := utf8.RuneCountInString(v)
	if r.Min > 0 && n < r.Min {
		return domain.InvalidVerdict(fmt.Sprintf("must be at least %d characters", r.Min))
	}
	if r.Max > 0 && n > r.Max {
		return domain.InvalidVerdict(fmt.Sprintf("must be at most %d characters", r.Max))
	}

	if r.Pattern != "" {
		re := r.pattern
		if re == nil {
			re = regexp.MustCompile(r.Pattern)
		}
		if !re.MatchString(v) {
			return domain.InvalidVerdict(MsgFormat)
		}
	}

	if r.Format != "" && !matchesFormat(r.Format, v) {
		return domain.InvalidVerdict(MsgFormat)
	}

	if len(r.OneOf) > 0 && !containsFold(r.OneOf, v) {
		return domain.InvalidVerdict(MsgNotAllowed)
	}
	for _, aw := range r.OneOfWhen {
		if aw.Holds(siblings) && !containsFold(aw.Values, v) {
			return domain.InvalidVerdict(MsgNotAllowed)
		}
	}

	return domain.ValidVerdict()
}

func matchesFormat(format, v string) bool {
	switch format {
	case "email":
		return formats.Var(v, "required,email") == nil
	case "url":
		if formats.Var(v, "required,url") != nil {
			return false
		}
		lower := strings.ToLower(v)
		return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
	case "digits":
		return digitsPattern.MatchString(v)
	case "phone":
		return phonePattern.MatchString(v)
	default:
		return false
	}
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(strings.TrimSpace(candidate), v) {
			return true
		}
	}
	return false
}
