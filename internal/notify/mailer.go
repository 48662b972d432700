package notify

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/fjod/slime-shop/internal/logger"
)

// Template selects which message the provider renders.
type Template string

const (
	BusinessNotification Template = "business_notification"
	CustomerConfirmation Template = "customer_confirmation"
)

// Params is the flat key/value set a template is rendered with.
type Params map[string]string

// Mailer delivers one templated email. Implementations do not retry.
type Mailer interface {
	Send(ctx context.Context, template Template, params Params) error
}

var (
	ErrUnknownTemplate = errors.New("unknown email template")
	ErrNoRecipient     = errors.New("email has no recipient")
)

// LogMailer only logs what would have been sent. Used when no provider is configured.
type LogMailer struct {
	Log *slog.Logger
}

func (m LogMailer) Send(ctx context.Context, template Template, params Params) error {
	if params["to_email"] == "" {
		return ErrNoRecipient
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	logger.FromContext(ctx, m.Log).Info("email not sent, no provider configured",
		"template", string(template), "to", params["to_email"], "params", keys)
	return nil
}
