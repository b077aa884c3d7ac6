package bridge

import "sync"

// Relay feeds values from callbacks that must not block into the program's state channel.
// Values come out in the order they were put. The queue has no bound.
type Relay struct {
	mu     sync.Mutex
	queue  []any
	notify chan struct{}
	out    chan any
}

// NewRelay makes relay and starts its forwarding goroutine, it lives as long as the process
func NewRelay() *Relay {
	rl := &Relay{notify: make(chan struct{}, 1), out: make(chan any)}
	go rl.forward()
	return rl
}

// Put queues value and returns immediately
func (rl *Relay) Put(v any) {
	rl.mu.Lock()
	rl.queue = append(rl.queue, v)
	rl.mu.Unlock()
	select {
	case rl.notify <- struct{}{}:
	default:
	}
}

// Events returns the channel of queued values, to be returned from Program.Init
func (rl *Relay) Events() <-chan any {
	return rl.out
}

// Pending returns the number of values not yet taken from Events
func (rl *Relay) Pending() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.queue)
}

func (rl *Relay) forward() {
	for range rl.notify {
		for {
			rl.mu.Lock()
			if len(rl.queue) == 0 {
				rl.mu.Unlock()
				break
			}
			v := rl.queue[0]
			rl.queue[0] = nil
			rl.queue = rl.queue[1:]
			rl.mu.Unlock()
			rl.out <- v
		}
	}
}
