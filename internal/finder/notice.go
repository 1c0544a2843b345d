package finder

import (
	"errors"
	"time"

	"github.com/onnwee/shopfinder/internal/backend"
	"github.com/onnwee/shopfinder/internal/gate"
	"github.com/onnwee/shopfinder/internal/settings"
)

// NoticeKind names the operation that failed.
type NoticeKind string

// Notice kinds.
const (
	NoticeSearchFailed       NoticeKind = "search_failed"
	NoticeLoadMoreFailed     NoticeKind = "load_more_failed"
	NoticeInvalidInput       NoticeKind = "invalid_input"
	NoticeSettingsLoadFailed NoticeKind = "settings_load_failed"
	NoticeSettingsSaveFailed NoticeKind = "settings_save_failed"
	NoticeExplainFailed      NoticeKind = "explain_failed"
	NoticeSessionFailed      NoticeKind = "session_failed"
)

// Notice is a transient, dismissible failure message.
type Notice struct {
	ID      uint64     `json:"id"`
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
	Err     error      `json:"-"`
}

// noticeMessage phrases err for the user. Backend status errors carry a
// message meant for display; everything else gets a generic line per kind.
func noticeMessage(kind NoticeKind, err error) string {
	var se *backend.StatusError
	if errors.As(err, &se) && se.Message != "" && kind != NoticeSearchFailed {
		return se.Message
	}
	switch {
	case errors.Is(err, gate.ErrEmptyQuery):
		return "Product name is required."
	case errors.Is(err, settings.ErrNoSession):
		return "Log in to remember your review settings."
	case errors.Is(err, backend.ErrTransport):
		return "The server could not be reached. Check your connection and try again."
	}

	switch kind {
	case NoticeSearchFailed:
		return "Search failed. Please try again."
	case NoticeLoadMoreFailed:
		return "Could not load more shops. Please try again."
	case NoticeInvalidInput:
		return err.Error()
	case NoticeSettingsLoadFailed:
		return "Your saved review settings could not be loaded; defaults are in use."
	case NoticeSettingsSaveFailed:
		return "Your review settings could not be saved."
	case NoticeExplainFailed:
		return "The rating explanation is unavailable right now."
	default:
		return "Something went wrong. Please try again."
	}
}
