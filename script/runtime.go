//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of GoUDAF.
//
// GoUDAF is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// GoUDAF is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with GoUDAF. If not, see https://www.gnu.org/licenses/.

// Package script hosts user accumulator code in an embedded ECMAScript VM (goja).
//
// A goja VM is not safe for concurrent use, and values created in one VM must
// only be touched while nothing else is running in it. GoUDAF serializes every
// VM access through a single process-wide lock, acquired with Do. Nothing in
// this package takes the lock implicitly except the convenience loaders on
// Runtime; callers crossing into the VM wrap their whole critical section in
// Do and keep it short.
package script

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

var (
	// ErrMethodNotFound is returned when a user object lacks a method.
	ErrMethodNotFound = errors.New("method not found")
	// ErrNotConstructible is returned when a constructor value is neither a
	// constructor nor a function returning an object.
	ErrNotConstructible = errors.New("value is not a constructor")
)

// interpreterLock guards every goja VM in the process.
var interpreterLock sync.Mutex

// Do runs fn while holding the process-wide interpreter lock.
//
// There is no timeout and no cancellation. If fn blocks inside the VM (for
// example a script that never returns), the calling goroutine blocks forever
// and so does every goroutine waiting to enter the VM. Do is not reentrant:
// calling Do from inside fn deadlocks.
func Do(fn func() error) error {
	interpreterLock.Lock()
	defer interpreterLock.Unlock()
	return fn()
}

// Runtime is one goja VM holding user scripts.
type Runtime struct {
	vm *goja.Runtime
}

// NewRuntime creates an empty VM.
func NewRuntime() *Runtime {
	var vm *goja.Runtime
	_ = Do(func() error {
		vm = goja.New()
		return nil
	})
	return &Runtime{vm: vm}
}

// VM returns the underlying goja runtime. Only use it inside Do.
func (r *Runtime) VM() *goja.Runtime {
	return r.vm
}

// Load evaluates src in the VM under the interpreter lock. name is used in
// stack traces.
func (r *Runtime) Load(name, src string) error {
	return Do(func() error {
		if _, err := r.vm.RunScript(name, src); err != nil {
			return fmt.Errorf("load script %s: %w", name, err)
		}
		return nil
	})
}

// Constructor resolves a global binding (a class, a constructor function or a
// factory function) under the interpreter lock.
func (r *Runtime) Constructor(name string) (*Constructor, error) {
	var ctor *Constructor
	err := Do(func() error {
		v := r.vm.Get(name)
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			return fmt.Errorf("constructor %q: %w", name, ErrNotConstructible)
		}
		if _, ok := goja.AssertFunction(v); !ok {
			return fmt.Errorf("constructor %q: %w", name, ErrNotConstructible)
		}
		ctor = &Constructor{rt: r, name: name, value: v}
		return nil
	})
	return ctor, err
}

// Constructor builds user accumulator objects.
type Constructor struct {
	rt    *Runtime
	name  string
	value goja.Value
}

// Name returns the global binding the constructor was resolved from.
func (c *Constructor) Name() string {
	return c.name
}

// Runtime returns the VM the constructor lives in.
func (c *Constructor) Runtime() *Runtime {
	return c.rt
}

// Construct creates a new object with no arguments. Classes and constructor
// functions are invoked with new; other functions are called and must return
// an object. Caller must hold the interpreter lock.
func (c *Constructor) Construct() (*Object, error) {
	if ctor, ok := goja.AssertConstructor(c.value); ok {
		obj, err := ctor(c.value.(*goja.Object))
		if err != nil {
			return nil, err
		}
		return &Object{rt: c.rt, obj: obj}, nil
	}

	fn, ok := goja.AssertFunction(c.value)
	if !ok {
		return nil, fmt.Errorf("constructor %q: %w", c.name, ErrNotConstructible)
	}
	v, err := fn(goja.Undefined())
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("constructor %q returned %s: %w", c.name, describe(v), ErrNotConstructible)
	}
	return &Object{rt: c.rt, obj: obj}, nil
}

// Object is one constructed user accumulator.
type Object struct {
	rt  *Runtime
	obj *goja.Object
}

// VM returns the runtime the object belongs to. Only use it inside Do.
func (o *Object) VM() *goja.Runtime {
	return o.rt.vm
}

// HasMethod reports whether name resolves to a callable. Caller must hold the
// interpreter lock.
func (o *Object) HasMethod(name string) bool {
	_, ok := goja.AssertFunction(o.obj.Get(name))
	return ok
}

// RequireMethods returns an error wrapping ErrMethodNotFound naming every
// missing method. Caller must hold the interpreter lock.
func (o *Object) RequireMethods(names ...string) error {
	var missing []string
	for _, name := range names {
		if !o.HasMethod(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMethodNotFound, missing)
	}
	return nil
}

// CallMethod invokes name with this bound to the object. Exceptions thrown by
// the script come back as errors carrying the script's message. Caller must
// hold the interpreter lock.
func (o *Object) CallMethod(name string, args ...goja.Value) (result goja.Value, err error) {
	fn, ok := goja.AssertFunction(o.obj.Get(name))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, name)
	}
	defer func() {
		// Host-side panics must not cross into the engine.
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("%s panicked: %v", name, r)
		}
	}()
	return fn(o.obj, args...)
}

func describe(v goja.Value) string {
	if v == nil {
		return "nothing"
	}
	return v.String()
}
