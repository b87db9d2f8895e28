// Package mcp exposes docindex over the Model Context Protocol: search,
// index maintenance and statistics as tools, indexed documents as
// resources.
package mcp

import (
	"context"
	"errors"
	"fmt"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/registry"
	"github.com/Aman-CERP/docindex/internal/store"
)

// Application error codes, in the JSON-RPC server error range.
const (
	// ErrCodeIndexNotFound indicates the library has no usable index.
	ErrCodeIndexNotFound = -32001

	// ErrCodeIndexBusy indicates another process holds the index.
	ErrCodeIndexBusy = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeFileNotFound indicates a document is not in the index.
	ErrCodeFileNotFound = -32004

	// ErrCodeFileTooLarge indicates a document is too large to return.
	ErrCodeFileTooLarge = -32005

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError is a protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var docErr *docerrors.DocError
	if errors.As(err, &docErr) {
		return mapDocError(docErr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	case errors.Is(err, store.ErrNotFound):
		return &MCPError{Code: ErrCodeFileNotFound, Message: "Document is not indexed."}
	case errors.Is(err, store.ErrClosed), errors.Is(err, registry.ErrClosed):
		return &MCPError{Code: ErrCodeIndexNotFound, Message: "Index is closed."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeFileNotFound,
		Message: fmt.Sprintf("Resource '%s' not found.", uri),
	}
}

func mapDocError(de *docerrors.DocError) *MCPError {
	message := de.Message
	if de.Suggestion != "" {
		message = fmt.Sprintf("%s %s", de.Message, de.Suggestion)
	}

	switch de.Code {
	case docerrors.ErrCodeIndexLocked, docerrors.ErrCodeStoreBusy:
		return &MCPError{Code: ErrCodeIndexBusy, Message: message}
	case docerrors.ErrCodeCorruptIndex, docerrors.ErrCodeStoreUnavailable:
		return &MCPError{Code: ErrCodeIndexNotFound, Message: message}
	case docerrors.ErrCodeFileNotFound:
		return &MCPError{Code: ErrCodeFileNotFound, Message: message}
	case docerrors.ErrCodeFileTooLarge:
		return &MCPError{Code: ErrCodeFileTooLarge, Message: message}
	case docerrors.ErrCodeParseTimeout:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	}

	if de.Category == docerrors.CategoryValidation {
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	}
	return &MCPError{Code: ErrCodeInternalError, Message: message}
}
