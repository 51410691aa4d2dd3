package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRepo      = "repository"
	KeyProject   = "project"
	KeyWebhookID = "webhook_id"
	KeyAction    = "action"
	KeyEvent     = "event"
	KeyURL       = "url"
	KeyError     = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Repository(r string) slog.Attr { return slog.String(KeyRepo, r) }
func Project(p string) slog.Attr    { return slog.String(KeyProject, p) }
func WebhookID(id int) slog.Attr    { return slog.Int(KeyWebhookID, id) }
func Action(a string) slog.Attr     { return slog.String(KeyAction, a) }
func Event(e string) slog.Attr      { return slog.String(KeyEvent, e) }
func URL(u string) slog.Attr        { return slog.String(KeyURL, u) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
