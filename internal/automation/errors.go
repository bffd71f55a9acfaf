package automation

import (
	"errors"
	"fmt"

	"github.com/xkilldash9x/seatctl/internal/browser"
)

// Code classifies an automation failure.
type Code string

const (
	CodeLaunchFailure            Code = "LAUNCH_FAILURE"
	CodeLoginFailed              Code = "LOGIN_FAILED"
	CodeWorkspaceSelectionFailed Code = "WORKSPACE_SELECTION_FAILED"
	CodeNoWorkspaceOption        Code = "NO_WORKSPACE_OPTION"
	CodeWrongPage                Code = "WRONG_PAGE"
	CodeInviteButtonNotFound     Code = "INVITE_BUTTON_NOT_FOUND"
	CodeEmailInputNotFound       Code = "EMAIL_INPUT_NOT_FOUND"
	CodeSendButtonNotFound       Code = "SEND_BUTTON_NOT_FOUND"
	CodeInviteRequestFailed      Code = "INVITE_REQUEST_FAILED"
	CodeInviteUnconfirmed        Code = "INVITE_UNCONFIRMED"
	CodeExtractionFailed         Code = "EXTRACTION_FAILED"
)

// Sentinels for errors.Is. They match any *Error carrying the same code.
var (
	ErrLaunchFailure            = &Error{Code: CodeLaunchFailure}
	ErrLoginFailed              = &Error{Code: CodeLoginFailed}
	ErrWorkspaceSelectionFailed = &Error{Code: CodeWorkspaceSelectionFailed}
	ErrNoWorkspaceOption        = &Error{Code: CodeNoWorkspaceOption}
	ErrWrongPage                = &Error{Code: CodeWrongPage}
	ErrInviteButtonNotFound     = &Error{Code: CodeInviteButtonNotFound}
	ErrEmailInputNotFound       = &Error{Code: CodeEmailInputNotFound}
	ErrSendButtonNotFound       = &Error{Code: CodeSendButtonNotFound}
	ErrInviteRequestFailed      = &Error{Code: CodeInviteRequestFailed}
	ErrInviteUnconfirmed        = &Error{Code: CodeInviteUnconfirmed}
	ErrExtractionFailed         = &Error{Code: CodeExtractionFailed}
)

// Error is a classified automation failure.
type Error struct {
	Code Code
	// Op names the state machine step that failed.
	Op string
	// Screenshot is the debug capture path, empty when none was taken.
	Screenshot string
	// Status, URL and Body describe a rejected invite request.
	Status int
	URL    string
	Body   string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d from %s)", msg, e.Status, e.URL)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches by code so callers can test against the package sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first *Error in the chain, or "" if there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, browser.ErrLaunchFailure) {
		return CodeLaunchFailure
	}
	return ""
}

// ScreenshotOf returns the screenshot path attached to err, if any.
func ScreenshotOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Screenshot
	}
	return ""
}

// LaunchError classifies a browser acquisition failure.
func LaunchError(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: CodeLaunchFailure, Op: "launch", Err: err}
}

func newError(code Code, op string, cause error) *Error {
	return &Error{Code: code, Op: op, Err: cause}
}
