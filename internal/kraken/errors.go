// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package kraken

import "fmt"

// DeadSocketError is returned when a backend does not answer within the
// request timeout. The socket that carried the request has been closed and
// discarded, because a REQ socket whose reply never arrived is stuck in an
// indeterminate lockstep state and must not be reused.
type DeadSocketError struct {
	Instance string
	Endpoint string
}

// Error implements the builtin/error interface.
func (e DeadSocketError) Error() string {
	return fmt.Sprintf("backend %q on %s is dead", e.Instance, e.Endpoint)
}

// DecodeError is returned when a backend's reply cannot be parsed into a
// Response. This is distinct from a timeout: the backend answered, but with
// garbage.
type DecodeError struct {
	Instance string
	Inner    error
}

// Error implements the builtin/error interface.
func (e DecodeError) Error() string {
	return fmt.Sprintf("cannot decode reply from backend %q: %s", e.Instance, e.Inner.Error())
}

// Unwrap supports errors.Is/As.
func (e DecodeError) Unwrap() error {
	return e.Inner
}
