package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"os"

	"golang.org/x/crypto/ssh"
)

// TransferError is a structured error from a protocol opener.
// Use errors.As to extract and inspect it.
type TransferError struct {
	// Protocol identifies the protocol that produced the error (e.g., "http", "ftp").
	Protocol string
	// Op is the operation that failed (e.g., "connect", "retr", "copy").
	Op    string
	Cause error
	// transient indicates whether the error may be retried.
	transient bool
}

func (e *TransferError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %s", e.Protocol, e.Op, e.Cause.Error())
	}
	return fmt.Sprintf("%s %s", e.Protocol, e.Op)
}

func (e *TransferError) Unwrap() error {
	return e.Cause
}

// IsTransient reports whether the transfer may be retried.
func (e *TransferError) IsTransient() bool {
	return e.transient
}

// NewTransientError creates a TransferError that may be retried.
func NewTransientError(protocol, op string, cause error) *TransferError {
	return &TransferError{Protocol: protocol, Op: op, Cause: cause, transient: true}
}

// NewPermanentError creates a TransferError that should not be retried.
func NewPermanentError(protocol, op string, cause error) *TransferError {
	return &TransferError{Protocol: protocol, Op: op, Cause: cause}
}

// IsTransient reports whether err carries a transient TransferError.
func IsTransient(err error) bool {
	var te *TransferError
	return errors.As(err, &te) && te.IsTransient()
}

// classifyFTPError classifies FTP errors into transient or permanent.
// RFC 959: 4xx replies are transient, 5xx are permanent. Network errors
// are transient.
func classifyFTPError(op string, err error) *TransferError {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		if tpErr.Code >= 400 && tpErr.Code < 500 {
			return NewTransientError("ftp", op, err)
		}
		return NewPermanentError("ftp", op, err)
	}
	return classifyNetError("ftp", op, err)
}

// classifySFTPError treats missing files and remote exits as permanent.
func classifySFTPError(op string, err error) *TransferError {
	if errors.Is(err, os.ErrNotExist) {
		return NewPermanentError("sftp", op, err)
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return NewPermanentError("sftp", op, err)
	}
	return classifyNetError("sftp", op, err)
}

func classifyNetError(proto, op string, err error) *TransferError {
	if errors.Is(err, context.Canceled) {
		return NewPermanentError(proto, op, err)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return NewTransientError(proto, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewTransientError(proto, op, err)
	}
	return NewPermanentError(proto, op, err)
}
