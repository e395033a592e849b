// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeRegistryUnknownService Code = "registry.record.unknown_service"
	CodeRegistryInvalidInput   Code = "registry.record.invalid_input"

	CodeRecoveryNoPlanConfigured Code = "recovery.plan.not_configured"
	CodeRecoveryActionTimeout    Code = "recovery.action.timeout"
	CodeRecoveryExecutorFailure  Code = "recovery.executor.failure"

	CodeChannelDeliveryFailure  Code = "channel.delivery.failure"
	CodeChannelNotConfigured    Code = "channel.not_configured"
	CodeChannelTokenCheckFailed Code = "channel.token.check_failed"
	CodeChannelTokenInvalid     Code = "channel.token.invalid"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeStoreDatabaseFailure Code = "store.database.failure"
	CodeStoreInvalidInput    Code = "store.invalid_input"

	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerEntityNotFound  Code = "server.entity.not_found"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"

	CodeMonitorProbeFailure Code = "monitor.probe.failure"
	CodeMonitorWakeInvalid  Code = "monitor.wake.invalid_address"

	CodeCLIDaemonNotRunning Code = "cli.daemon.not_running"
	CodeCLIRequestFailure   Code = "cli.request.failure"
	CodeCLIResponseInvalid  Code = "cli.response.invalid"
	CodeCLISetupFailure     Code = "cli.setup.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldService(value string) Attr {
	return Field("service", value)
}

func FieldTarget(value string) Attr {
	return Field("target", value)
}

func FieldChannel(value string) Attr {
	return Field("channel", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	r := reason(CodeOf(err))
	return r == "not_found" || r == "not_configured" || r == "unknown_service"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" ||
		r == "invalid_format" || r == "invalid_address"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

// reason extracts the final dot-separated segment of a code, which by
// convention names the failure reason ("not_found", "timeout", ...).
func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
