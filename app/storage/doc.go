// Package storage provides key-value backends for saved application state.
// All backends implement the same two-method contract (Get and Set by key) and
// are safe for concurrent use. Memory keeps values in process, File keeps one
// file per key, SQLite keeps a kv table with WAL mode, and LocalStorage (js builds only)
// talks to the browser's window.localStorage.
package storage
