//go:build js && wasm

// Command wasm is the in-browser bootstrap of the random-list front-end. It restores saved state from
// window.localStorage, starts the Elm program with it, persists every snapshot sent to the setStorage port
// and registers the service worker.
package main

import (
	"context"
	"fmt"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/randlist/app/bridge"
	"github.com/umputun/randlist/app/storage"
)

func main() {
	log.Setup(log.Msec)

	var store bridge.Store
	ls, err := storage.NewLocalStorage()
	if err != nil {
		// no durable slot, state lives for this page only
		log.Printf("[WARN] %v, using memory storage", err)
		store = storage.NewMemory()
	} else {
		store = ls
	}

	brdg := bridge.New(store, bridge.Params{Updater: serviceWorker{}})
	if err := brdg.Run(context.Background(), &elmProgram{}); err != nil {
		log.Printf("[ERROR] %v", err)
		return
	}
}

// serviceWorker registers the page's service worker via the global registerServiceWorker function
type serviceWorker struct{}

func (serviceWorker) Register() {
	fn := jsGlobal().Get("registerServiceWorker")
	if fn.Type() != jsFunction {
		log.Printf("[DEBUG] registerServiceWorker is not defined")
		return
	}
	fn.Invoke()
}

// elmProgram starts Elm.Main and forwards setStorage port events
type elmProgram struct{}

func (p *elmProgram) Init(flags bridge.Flags) (<-chan any, error) {
	app, err := initElm(flags)
	if err != nil {
		return nil, err
	}
	rl := bridge.NewRelay()
	if err := subscribe(app, "setStorage", rl); err != nil {
		return nil, fmt.Errorf("can't subscribe to setStorage: %w", err)
	}
	return rl.Events(), nil
}
