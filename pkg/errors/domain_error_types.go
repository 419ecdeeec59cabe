package errors

import (
	"fmt"
	"net/http"
)

// Error codes surfaced to API clients
const (
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeFileInvalidType = "FILE_INVALID_TYPE"
	CodeTooManyFiles    = "TOO_MANY_FILES"
	CodeNoFile          = "NO_FILE"

	CodeDiagramNotFound = "DIAGRAM_NOT_FOUND"
	CodeSaveFailed      = "SAVE_FAILED"
	CodeInvalidNodeList = "INVALID_NODE_LIST"

	CodeSessionNotFound = "SESSION_NOT_FOUND"
	CodeTransientBoard  = "TRANSIENT_BOARD"
	CodeUnknownSymbol   = "UNKNOWN_SYMBOL"
)

// NewFileTooLargeError rejects an upload above the size limit
func NewFileTooLargeError(name string, size, max int64) *AppError {
	return NewValidationError(fmt.Sprintf("file %q is too large", name)).
		WithCode(CodeFileTooLarge).
		WithDetails(map[string]interface{}{"file": name, "size": size, "max_size": max})
}

// NewInvalidFileTypeError rejects an upload whose name or content type is
// not accepted
func NewInvalidFileTypeError(name, contentType string) *AppError {
	return NewValidationError(fmt.Sprintf("file %q has an invalid type", name)).
		WithCode(CodeFileInvalidType).
		WithDetails(map[string]interface{}{"file": name, "content_type": contentType})
}

// NewTooManyFilesError rejects a request carrying more files than allowed
func NewTooManyFilesError(count, max int) *AppError {
	return NewValidationError("too many files").
		WithCode(CodeTooManyFiles).
		WithDetails(map[string]interface{}{"count": count, "max_files": max})
}

// NewNoFileError rejects an upload request without a file part
func NewNoFileError() *AppError {
	return NewValidationError("no file was provided").WithCode(CodeNoFile)
}

// IsUploadRejection reports whether err is one of the upload rejections
func IsUploadRejection(err error) bool {
	appErr := GetAppError(err)
	if appErr == nil {
		return false
	}
	switch appErr.Code {
	case CodeFileTooLarge, CodeFileInvalidType, CodeTooManyFiles, CodeNoFile:
		return true
	}
	return false
}

// NewDiagramNotFoundError signals a missing diagram
func NewDiagramNotFoundError(id int64) *AppError {
	return NewNotFoundError(fmt.Sprintf("diagram %d", id)).WithCode(CodeDiagramNotFound)
}

// NewSaveFailedError wraps a storage failure while saving nodes
func NewSaveFailedError(id int64, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeDatabase,
		Message:    fmt.Sprintf("saving nodes for diagram %d failed", id),
		Code:       CodeSaveFailed,
		Cause:      cause,
		HTTPStatus: http.StatusBadGateway,
		StackTrace: captureStackTrace(),
	}
}

// IsSaveFailed reports whether err is a failed node save
func IsSaveFailed(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == CodeSaveFailed
}

// NewInvalidNodeListError rejects a node list that breaks the stored contract
func NewInvalidNodeListError(problems []string) *AppError {
	return NewValidationError("node list does not match the expected shape").
		WithCode(CodeInvalidNodeList).
		WithDetails(map[string]interface{}{"problems": problems})
}

// NewSessionNotFoundError signals an unknown or expired editing session
func NewSessionNotFoundError(id string) *AppError {
	return NewNotFoundError(fmt.Sprintf("session %s", id)).WithCode(CodeSessionNotFound)
}

// NewTransientBoardError rejects saving a board that has no diagram
func NewTransientBoardError() *AppError {
	return NewValidationError("board is not backed by a saved diagram").WithCode(CodeTransientBoard)
}

// NewUnknownSymbolError rejects a symbol id missing from the catalog
func NewUnknownSymbolError(id string) *AppError {
	return NewValidationError(fmt.Sprintf("unknown symbol %q", id)).WithCode(CodeUnknownSymbol)
}
