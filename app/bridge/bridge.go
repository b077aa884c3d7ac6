// Package bridge moves application state between a running front-end program and a single
// slot in a key-value store. On start it reads the slot once and hands the result to the
// program as startup flags, then it overwrites the slot with every state snapshot the program emits.
// There is no merging and no versioning, whatever was saved last is what gets replayed on the next start.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
)

// DefaultKey is the slot name used by the random-list front-end
const DefaultKey = "random-list-save"

// DefaultNode is the id of the DOM element the program mounts into
const DefaultNode = "root"

var (
	// ErrNotRunning returned by Save called before the program was initialized
	ErrNotRunning = errors.New("bridge is not running")
	// ErrAlreadyRunning returned by the second Run call
	ErrAlreadyRunning = errors.New("bridge already started")
)

// Store is a key-value storage, see storage package for implementations
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// Program is the application side. Init gets the startup flags and returns the channel
// of state snapshots to persist. The bridge stops when the channel is closed.
type Program interface {
	Init(flags Flags) (<-chan any, error)
}

// Registrar is a background worker registered once the program is up
type Registrar interface {
	Register()
}

// Repeater repeats failed function
type Repeater interface {
	Do(ctx context.Context, fun func() error, errors ...error) (err error)
}

// Flags passed to the program on start. State is nil when nothing valid was saved.
type Flags struct {
	Node  string `json:"node"`
	State any    `json:"state"`
}

// State of the bridge lifecycle
type State int32

// bridge states, the transition is one-way
const (
	StateUninitialized State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Params for New, zero values replaced by defaults
type Params struct {
	Key      string    // storage slot, DefaultKey if empty
	Node     string    // mount node id, DefaultNode if empty
	Codec    Codec     // JSON if nil
	Repeater Repeater  // single attempt if nil
	Updater  Registrar // optional, registered after program init

	// DrainTimeout limits how long snapshots still queued on cancellation are saved,
	// 5s if zero. Draining ends earlier when the program closes its channel.
	DrainTimeout time.Duration
}

// Bridge connects Program to Store
type Bridge struct {
	store    Store
	key      string
	node     string
	codec    Codec
	repeater Repeater
	updater  Registrar
	drainTTL time.Duration

	started atomic.Bool
	state   atomic.Int32
}

// New makes bridge for the store
func New(store Store, params Params) *Bridge {
	res := &Bridge{
		store:    store,
		key:      params.Key,
		node:     params.Node,
		codec:    params.Codec,
		repeater: params.Repeater,
		updater:  params.Updater,
		drainTTL: params.DrainTimeout,
	}
	if res.key == "" {
		res.key = DefaultKey
	}
	if res.node == "" {
		res.node = DefaultNode
	}
	if res.codec == nil {
		res.codec = JSON{}
	}
	if res.repeater == nil {
		res.repeater = repeater.New(&strategy.Once{})
	}
	if res.drainTTL <= 0 {
		res.drainTTL = 5 * time.Second
	}
	return res
}

// Load reads and decodes the slot. Missing slot, failed storage and malformed content
// all result in ok=false, startup never fails because of saved state.
func (b *Bridge) Load() (state any, ok bool) {
	raw, found, err := b.store.Get(b.key)
	if err != nil {
		log.Printf("[WARN] can't read saved state %q, %v", b.key, err)
		return nil, false
	}
	if !found || raw == "" {
		log.Printf("[DEBUG] no saved state %q", b.key)
		return nil, false
	}

	state, err = b.codec.Unmarshal([]byte(raw))
	if err != nil {
		log.Printf("[WARN] can't parse saved state %q as %s, ignored: %v", b.key, b.codec, err)
		return nil, false
	}
	if state == nil {
		return nil, false
	}
	log.Printf("[DEBUG] loaded saved state %q, %d bytes", b.key, len(raw))
	return state, true
}

// Run loads saved state, initializes the program with it, registers the updater and then
// saves every snapshot the program emits. Blocks until the program closes its channel
// or ctx is canceled, on cancellation the snapshots still queued are saved first.
// Save failures are logged and don't stop the loop.
func (b *Bridge) Run(ctx context.Context, prog Program) error {
	if !b.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	state, _ := b.Load()
	events, err := prog.Init(Flags{Node: b.node, State: state})
	if err != nil {
		return fmt.Errorf("failed to initialize program: %w", err)
	}
	b.state.Store(int32(StateRunning))
	log.Printf("[INFO] bridge running, key %q, codec %s, restored %v", b.key, b.codec, state != nil)

	if b.updater != nil {
		b.updater.Register()
	}

	// snapshots already handed over by the program are saved even after cancellation
	saveCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[DEBUG] bridge terminated, %v", ctx.Err())
			b.drain(saveCtx, events)
			return nil
		case st, ok := <-events:
			if !ok {
				log.Printf("[INFO] program closed state channel")
				return nil
			}
			b.saveLogged(saveCtx, st)
		}
	}
}

// drain saves snapshots left in events until the channel is closed or drain timeout expires
func (b *Bridge) drain(ctx context.Context, events <-chan any) {
	timer := time.NewTimer(b.drainTTL)
	defer timer.Stop()
	count := 0
	for {
		select {
		case st, ok := <-events:
			if !ok {
				log.Printf("[DEBUG] drained %d pending state(s)", count)
				return
			}
			b.saveLogged(ctx, st)
			count++
		case <-timer.C:
			log.Printf("[WARN] state channel not closed in %v, %d pending state(s) saved", b.drainTTL, count)
			return
		}
	}
}

func (b *Bridge) saveLogged(ctx context.Context, state any) {
	if err := b.Save(ctx, state); err != nil {
		log.Printf("[WARN] failed to save state %q, %v", b.key, err)
	}
}

// Save encodes state and overwrites the slot. Available only while running.
func (b *Bridge) Save(ctx context.Context, state any) error {
	if b.State() != StateRunning {
		return ErrNotRunning
	}
	data, err := b.codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("can't encode state: %w", err)
	}
	err = b.repeater.Do(ctx, func() error {
		return b.store.Set(b.key, string(data))
	})
	if err != nil {
		return fmt.Errorf("can't write state: %w", err)
	}
	log.Printf("[DEBUG] saved state %q, %d bytes", b.key, len(data))
	return nil
}

// State returns current lifecycle state
func (b *Bridge) State() State {
	return State(b.state.Load())
}

// Key returns the slot name
func (b *Bridge) Key() string {
	return b.key
}
