//go:build js && wasm

package storage

import (
	"fmt"
	"syscall/js"
)

// LocalStorage is a Store backed by the browser's window.localStorage.
// Values are scoped per origin and survive page reloads.
type LocalStorage struct {
	ls js.Value
}

// NewLocalStorage returns store bound to window.localStorage. Fails if storage is disabled
// or not available, e.g. in some private browsing modes.
func NewLocalStorage() (ls *LocalStorage, err error) {
	defer func() {
		if x := recover(); x != nil {
			ls, err = nil, fmt.Errorf("local storage unavailable: %v", x)
		}
	}()
	v := js.Global().Get("localStorage")
	if !v.Truthy() {
		return nil, fmt.Errorf("local storage unavailable")
	}
	return &LocalStorage{ls: v}, nil
}

// Get reads the item for key. localStorage returns null for missing items
func (l *LocalStorage) Get(key string) (value string, ok bool, err error) {
	defer func() {
		if x := recover(); x != nil {
			value, ok, err = "", false, fmt.Errorf("failed to get %q: %v", key, x)
		}
	}()
	res := l.ls.Call("getItem", key)
	if res.IsNull() || res.IsUndefined() {
		return "", false, nil
	}
	return res.String(), true, nil
}

// Set writes the item for key. Quota errors are thrown by the browser as exceptions
func (l *LocalStorage) Set(key, value string) (err error) {
	if key == "" {
		return ErrInvalidKey
	}
	defer func() {
		if x := recover(); x != nil {
			err = fmt.Errorf("failed to set %q: %v", key, x)
		}
	}()
	l.ls.Call("setItem", key, value)
	return nil
}

func (l *LocalStorage) String() string {
	return "localstorage"
}
