/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package exc defines the error kinds of dlquery together with the stable
// dotted codes exposed to callers.
package exc

import (
	"fmt"
	"sort"
	"strings"

	errors "gopkg.in/src-d/go-errors.v1"
)

// DefaultCode is reported for errors that do not carry a kind.
const DefaultCode = "ERR.DS_API"

// Class groups error kinds by how a caller should treat them.
type Class int

const (
	// ClassInternal signals a bug or misconfiguration
	ClassInternal Class = iota
	// ClassSyntax is a malformed formula
	ClassSyntax
	// ClassSemantic is a well-formed but invalid formula or query
	ClassSemantic
	// ClassPlanning is a failure of the multi-query planner
	ClassPlanning
	// ClassExecution is a failure while running compiled queries
	ClassExecution
	// ClassNotFound is a reference to something that does not exist
	ClassNotFound
	// ClassRequest is an invalid request parameter
	ClassRequest
)

// String returns string representation of the class
func (c Class) String() string {
	switch c {
	case ClassInternal:
		return "internal"
	case ClassSyntax:
		return "syntax"
	case ClassSemantic:
		return "semantic"
	case ClassPlanning:
		return "planning"
	case ClassExecution:
		return "execution"
	case ClassNotFound:
		return "not_found"
	case ClassRequest:
		return "request"
	default:
		return "unknown"
	}
}

// Kind is an error kind with a stable code.
type Kind struct {
	Name  string
	Code  string
	Class Class
	kind  *errors.Kind
}

var registeredKinds = map[string]*Kind{}

// NewKind creates and registers a new error kind.
// The format is used with the arguments given to New and Wrap.
func NewKind(name, code string, class Class, format string) *Kind {
	k := &Kind{
		Name:  name,
		Code:  code,
		Class: class,
		kind:  errors.NewKind(format),
	}
	registeredKinds[name] = k
	return k
}

// New creates an error of this kind.
func (k *Kind) New(args ...interface{}) *Error {
	return &Error{Kind: k, base: k.kind.New(args...)}
}

// Wrap creates an error of this kind caused by err.
func (k *Kind) Wrap(err error, args ...interface{}) *Error {
	return &Error{Kind: k, base: k.kind.New(args...), cause: err}
}

// Is reports whether err, or any error it wraps, is of this kind.
func (k *Kind) Is(err error) bool {
	found := false
	walk(err, func(e *Error) bool {
		if e.Kind == k {
			found = true
			return false
		}
		return true
	})
	return found
}

// Error is the error type returned throughout dlquery.
type Error struct {
	Kind    *Kind
	Details map[string]interface{}
	base    *errors.Error
	cause   error
}

func (e *Error) Error() string {
	msg := e.base.Error()
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.cause.Error())
	}
	return msg
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Code returns the dotted code of the error kind.
func (e *Error) Code() string {
	return e.Kind.Code
}

// With returns a copy of the error with an extra detail attached.
func (e *Error) With(key string, value interface{}) *Error {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{Kind: e.Kind, Details: details, base: e.base, cause: e.cause}
}

// Detail returns a detail value by key.
func (e *Error) Detail(key string) (interface{}, bool) {
	v, ok := e.Details[key]
	return v, ok
}

// Code returns the code of the first coded error found in err.
func Code(err error) string {
	if e := Find(err); e != nil {
		return e.Kind.Code
	}
	return DefaultCode
}

// ClassOf returns the class of the first coded error found in err.
func ClassOf(err error) Class {
	if e := Find(err); e != nil {
		return e.Kind.Class
	}
	return ClassInternal
}

// Find returns the first coded error in the error tree of err.
func Find(err error) *Error {
	var found *Error
	walk(err, func(e *Error) bool {
		found = e
		return false
	})
	return found
}

// Codes returns every coded error in the error tree of err.
func Codes(err error) []string {
	var codes []string
	walk(err, func(e *Error) bool {
		codes = append(codes, e.Kind.Code)
		return true
	})
	return codes
}

// walk visits coded errors depth first, stopping when fn returns false.
func walk(err error, fn func(*Error) bool) bool {
	if err == nil {
		return true
	}
	if e, ok := err.(*Error); ok {
		if !fn(e) {
			return false
		}
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if !walk(inner, fn) {
				return false
			}
		}
	case interface{ Unwrap() error }:
		return walk(u.Unwrap(), fn)
	}
	return true
}

// StabilizedCodes returns the kind name to code table.
func StabilizedCodes() map[string]string {
	codes := make(map[string]string, len(registeredKinds))
	for name, k := range registeredKinds {
		codes[name] = k.Code
	}
	return codes
}

// KindNames returns registered kind names sorted alphabetically.
func KindNames() []string {
	names := make([]string, 0, len(registeredKinds))
	for name := range registeredKinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupKind returns a registered kind by name.
func LookupKind(name string) (*Kind, bool) {
	k, ok := registeredKinds[name]
	return k, ok
}

// SplitCode splits a dotted code into its parts.
func SplitCode(code string) []string {
	return strings.Split(code, ".")
}
