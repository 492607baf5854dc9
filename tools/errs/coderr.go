package errs

import (
	"strconv"
	"strings"
)

// CodeError is the protocol-level error shape surfaced to clients. The code
// travels in HTTP/event bodies; Detail is for operators, not end users.
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

// Shared error codes. 1xxx auth, 2xxx messaging, 3xxx infrastructure.
var (
	ErrTokenInvalid   = NewCodeError(1001, "token invalid")
	ErrTokenExpired   = NewCodeError(1002, "token expired")
	ErrAuthRequired   = NewCodeError(1003, "authentication required")
	ErrBadAddressing  = NewCodeError(2001, "conversation ID or recipient ID required")
	ErrConvNotFound   = NewCodeError(2002, "conversation not found or access denied")
	ErrBadContent     = NewCodeError(2003, "message content must be 1-1000 characters")
	ErrStoreFailure   = NewCodeError(3001, "persistence unavailable")
	ErrBridgeNotReady = NewCodeError(3002, "realtime gateway not initialized")
)
