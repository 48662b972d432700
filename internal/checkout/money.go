package checkout

import (
	"fmt"
	"strings"

	"github.com/fjod/slime-shop/internal/domain"
)

// FormatPrice renders a currency amount with exactly two fraction digits.
// Amounts are float64 throughout; rounding happens only here.
func FormatPrice(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

// ItemsSummary renders one line per cart line for the notification emails.
func ItemsSummary(lines []domain.CartLine) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s (%s) x%d @ $%s = $%s",
			l.Name, l.Category, l.Quantity, FormatPrice(l.UnitPrice), FormatPrice(l.LineTotal()))
	}
	return b.String()
}
