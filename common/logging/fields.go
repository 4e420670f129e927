package logging

import (
	"log/slog"
	"time"
)

// Common field names for consistent logging across services.
const (
	FieldService   = "service"
	FieldRequestID = "request_id"
	FieldUserID    = "user_id"
	FieldCompanyID = "company_id"
	FieldMethod    = "method"
	FieldRoute     = "route"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldRoom      = "room"
	FieldResource  = "resource"
)

func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

func UserID(id string) slog.Attr {
	return slog.String(FieldUserID, id)
}

func CompanyID(id string) slog.Attr {
	return slog.String(FieldCompanyID, id)
}

func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Route is the matched route pattern, not the raw path.
func Route(pattern string) slog.Attr {
	return slog.String(FieldRoute, pattern)
}

func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration reports d in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns a slog attribute for an error. A nil error renders as "".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

func Room(path string) slog.Attr {
	return slog.String(FieldRoom, path)
}

// Resource identifies the entity family an operation touched, e.g. "company-application".
func Resource(kind string) slog.Attr {
	return slog.String(FieldResource, kind)
}
