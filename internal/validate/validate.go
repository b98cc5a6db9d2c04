// Package validate runs the client-side form checks before a payload is sent.
package validate

import (
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"

	"campus/portal/internal/model"
)

var (
	rollNumberTag   = "roll_number"
	rollNumberText  = "roll number must be in the format NNLLNLNNAA (e.g. 24AK1A3001)"
	rollNumberRegex = regexp.MustCompile(`^[0-9]{2}[a-zA-Z]{2}[0-9][a-zA-Z][0-9]{2}[a-zA-Z0-9]{2}$`)

	mobileTag   = "mobile"
	mobileText  = "please enter a valid 10-digit mobile number"
	mobileRegex = regexp.MustCompile(`^[0-9]{10}$`)

	notBlankTag  = "notblank"
	notBlankText = "{0} cannot be empty"

	requiredTag = "required"
	requiredIf  = "required_if"
	requiredNot = "required_unless"
	requiredTxt = "{0} is required"

	dateOrderTag  = "date_order"
	dateOrderText = "end date must not be before start date"
	datesTag      = "dates_required"
	datesText     = "{0} is required for leave and on-duty requests"
)

// FieldError is one failed check, keyed by the JSON field name.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Error)
	}
	return strings.Join(msgs, "; ")
}

// Field returns the message for one field, or "" when it passed.
func (e *ValidationError) Field(name string) string {
	for _, f := range e.Fields {
		if f.Field == name {
			return f.Error
		}
	}
	return ""
}

type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func New() *Validator {
	v := validator.New()
	english := en.New()
	uni := ut.New(english, english)
	translator, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, translator)

	// Use JSON tag names for errors instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(rollNumberTag, regexValidation(rollNumberRegex))
	_ = v.RegisterValidation(mobileTag, regexValidation(mobileRegex))
	_ = v.RegisterValidation(notBlankTag, notBlankValidation)
	v.RegisterStructValidation(newRequestStructValidation, model.NewRequest{})

	out := &Validator{validate: v, translator: translator}
	out.translation(rollNumberTag, rollNumberText, false)
	out.translation(mobileTag, mobileText, false)
	out.translation(notBlankTag, notBlankText, false)
	out.translation(dateOrderTag, dateOrderText, false)
	out.translation(datesTag, datesText, false)
	out.translation(requiredTag, requiredTxt, true)
	out.translation(requiredIf, requiredTxt, true)
	out.translation(requiredNot, requiredTxt, true)
	return out
}

func (v *Validator) translation(tag, text string, override bool) {
	_ = v.validate.RegisterTranslation(
		tag, v.translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Struct validates a form payload. Failed checks come back as *ValidationError
// with fields sorted by name; anything else is an internal error.
func (v *Validator) Struct(form interface{}) error {
	err := v.validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validating form")
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Error: fe.Translate(v.translator)})
	}
	sort.SliceStable(out.Fields, func(i, j int) bool { return out.Fields[i].Field < out.Fields[j].Field })
	return out
}

func regexValidation(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

func notBlankValidation(fl validator.FieldLevel) bool {
	field := fl.Field()
	switch field.Kind() {
	case reflect.String:
		return strings.TrimSpace(field.String()) != ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return field.Len() > 0
	default:
		return !field.IsZero()
	}
}

// newRequestStructValidation requires dates for leave and on-duty requests and
// keeps them ordered; ISO dates compare lexically.
func newRequestStructValidation(sl validator.StructLevel) {
	req, ok := sl.Current().Interface().(model.NewRequest)
	if !ok || !req.RequestType.Dated() {
		return
	}
	if req.StartDate == "" {
		sl.ReportError(req.StartDate, "start_date", "StartDate", datesTag, "")
	}
	if req.EndDate == "" {
		sl.ReportError(req.EndDate, "end_date", "EndDate", datesTag, "")
	}
	if req.StartDate != "" && req.EndDate != "" && req.EndDate < req.StartDate {
		sl.ReportError(req.EndDate, "end_date", "EndDate", dateOrderTag, "")
	}
}
