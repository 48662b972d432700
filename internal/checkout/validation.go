package checkout

import (
	"fmt"
	"regexp"
	"strings"
)

// Form is the shipping and contact data a customer enters at checkout.
type Form struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Notes   string `json:"notes,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is ordered the way fields appear on the form, so the first
// entry is the field the UI scrolls to.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, fe := range v {
		msgs[i] = fe.Field + ": " + fe.Message
	}
	return strings.Join(msgs, "; ")
}

func (v ValidationErrors) First() string {
	if len(v) == 0 {
		return ""
	}
	return v[0].Field
}

// Map keys messages by field name.
func (v ValidationErrors) Map() map[string]string {
	m := make(map[string]string, len(v))
	for _, fe := range v {
		m[fe.Field] = fe.Message
	}
	return m
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type requiredField struct {
	key   string
	label string
	value func(Form) string
}

var requiredFields = []requiredField{
	{"name", "Name", func(f Form) string { return f.Name }},
	{"email", "Email", func(f Form) string { return f.Email }},
	{"phone", "Phone", func(f Form) string { return f.Phone }},
	{"address", "Address", func(f Form) string { return f.Address }},
	{"city", "City", func(f Form) string { return f.City }},
	{"state", "State", func(f Form) string { return f.State }},
	{"zip_code", "ZIP code", func(f Form) string { return f.ZipCode }},
}

// Normalize trims surrounding whitespace from every field.
func (f Form) Normalize() Form {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Address = strings.TrimSpace(f.Address)
	f.City = strings.TrimSpace(f.City)
	f.State = strings.TrimSpace(f.State)
	f.ZipCode = strings.TrimSpace(f.ZipCode)
	f.Notes = strings.TrimSpace(f.Notes)
	return f
}

// Validate returns nil when every required field is present and the email looks like local@domain.tld.
func Validate(f Form) ValidationErrors {
	f = f.Normalize()
	var errs ValidationErrors
	for _, rf := range requiredFields {
		v := rf.value(f)
		switch {
		case v == "":
			errs = append(errs, FieldError{Field: rf.key, Message: fmt.Sprintf("%s is required", rf.label)})
		case rf.key == "email" && !emailPattern.MatchString(v):
			errs = append(errs, FieldError{Field: rf.key, Message: "Please enter a valid email address"})
		}
	}
	return errs
}

// ShippingAddress formats the address as a single line, e.g. "12 Goo St, Austin, TX 73301".
func (f Form) ShippingAddress() string {
	f = f.Normalize()
	return fmt.Sprintf("%s, %s, %s %s", f.Address, f.City, f.State, f.ZipCode)
}
