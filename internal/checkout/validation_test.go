package checkout

import (
	"testing"

	"github.com/fjod/slime-shop/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Form)
		wantField []string
	}{
		{"valid", func(*Form) {}, nil},
		{"missing name", func(f *Form) { f.Name = "" }, []string{"name"}},
		{"blank phone", func(f *Form) { f.Phone = "   " }, []string{"phone"}},
		{"email without tld", func(f *Form) { f.Email = "jamie@example" }, []string{"email"}},
		{"email with space", func(f *Form) { f.Email = "ja mie@example.com" }, []string{"email"}},
		{"padded email", func(f *Form) { f.Email = "  jamie@example.com " }, nil},
		{"notes optional", func(f *Form) { f.Notes = "" }, nil},
		{"everything missing", func(f *Form) { *f = Form{} },
			[]string{"name", "email", "phone", "address", "city", "state", "zip_code"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm
			tt.mutate(&form)

			errs := Validate(form)

			var fields []string
			for _, fe := range errs {
				fields = append(fields, fe.Field)
			}
			assert.Equal(t, tt.wantField, fields)
		})
	}
}

func TestValidationErrors_First(t *testing.T) {
	errs := Validate(Form{Name: "Jamie", Email: "bad"})

	assert.Equal(t, "email", errs.First())
	assert.Equal(t, "", ValidationErrors(nil).First())
	assert.Contains(t, errs.Error(), "zip_code: ZIP code is required")
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "30.98", FormatPrice(12.99*2+5.00))
	assert.Equal(t, "0.00", FormatPrice(0))
	assert.Equal(t, "0.30", FormatPrice(0.1+0.2))
	assert.Equal(t, "5.00", FormatPrice(5))
}

func TestItemsSummary(t *testing.T) {
	lines := []domain.CartLine{
		{ProductID: "a", Name: "Cloud Slime", Category: "Cloud", UnitPrice: 8, Quantity: 2},
		{ProductID: "b", Name: "Clear Slime", Category: "Clear", UnitPrice: 6.5, Quantity: 1},
	}

	assert.Equal(t,
		"Cloud Slime (Cloud) x2 @ $8.00 = $16.00\nClear Slime (Clear) x1 @ $6.50 = $6.50",
		ItemsSummary(lines))
}
