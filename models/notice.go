package models

import "time"

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-facing notification rendered by the storefront.
type Notice struct {
	Level     NoticeLevel `json:"level"`
	Code      string      `json:"code,omitempty"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"createdAt"`
}

func newNotice(level NoticeLevel, code, message string) Notice {
	return Notice{Level: level, Code: code, Message: message, CreatedAt: time.Now()}
}

func InfoNotice(code, message string) Notice    { return newNotice(NoticeInfo, code, message) }
func SuccessNotice(code, message string) Notice { return newNotice(NoticeSuccess, code, message) }
func WarningNotice(code, message string) Notice { return newNotice(NoticeWarning, code, message) }
func ErrorNotice(code, message string) Notice   { return newNotice(NoticeError, code, message) }
