//go:build js && wasm

package main

import (
	"fmt"
	"syscall/js"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/randlist/app/bridge"
)

const jsFunction = js.TypeFunction

func jsGlobal() js.Value { return js.Global() }

// initElm calls Elm.Main.init({node, flags}). State crosses the boundary as json text,
// so the program gets exactly what JSON.parse would give it.
func initElm(flags bridge.Flags) (app js.Value, err error) {
	defer func() {
		if x := recover(); x != nil {
			err = fmt.Errorf("Elm.Main.init failed: %v", x)
		}
	}()

	elm := js.Global().Get("Elm")
	if !elm.Truthy() || !elm.Get("Main").Truthy() {
		return js.Undefined(), fmt.Errorf("Elm.Main is not loaded")
	}
	node := js.Global().Get("document").Call("getElementById", flags.Node)
	if node.IsNull() {
		return js.Undefined(), fmt.Errorf("mount node #%s not found", flags.Node)
	}

	jsFlags := js.Null()
	if flags.State != nil {
		data, err := bridge.JSON{}.Marshal(flags.State)
		if err != nil {
			return js.Undefined(), fmt.Errorf("can't encode flags: %w", err)
		}
		jsFlags = js.Global().Get("JSON").Call("parse", string(data))
	}

	return elm.Get("Main").Call("init", map[string]any{"node": node, "flags": jsFlags}), nil
}

// subscribe attaches a callback to the app's outgoing port. Each value is stringified by the page
// and decoded into a structured value, then queued on the relay.
func subscribe(app js.Value, port string, rl *bridge.Relay) error {
	ports := app.Get("ports")
	if !ports.Truthy() || !ports.Get(port).Truthy() {
		return fmt.Errorf("port %s not found", port)
	}

	cb := js.FuncOf(func(_ js.Value, args []js.Value) any {
		if len(args) == 0 {
			return nil
		}
		text := js.Global().Get("JSON").Call("stringify", args[0])
		if text.IsUndefined() {
			return nil
		}
		state, err := bridge.JSON{}.Unmarshal([]byte(text.String()))
		if err != nil {
			log.Printf("[WARN] can't decode %s value, %v", port, err)
			return nil
		}
		rl.Put(state)
		return nil
	})
	ports.Get(port).Call("subscribe", cb)
	return nil
}

