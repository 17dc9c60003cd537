// Package sched owns the runtime: the boot-time mode decision and the
// cooperative tick loop driving whichever mode is active.
//
// The runtime is an explicit two-state machine. Bridge mode is the steady
// state, relaying bytes each tick; configuration mode is a one-shot
// operator dialogue that ends in a restart. The two are mutually exclusive
// and the only transition within a process lifetime is bridge to
// configuration, requested by the in-band trigger byte on the console.
//
// All shared mutable state (the configuration record, the engine's client
// slots, the blink timers) hangs off the Runtime context object and is
// touched only from the tick loop, so there is no locking discipline to
// uphold; correctness rests on each tick leaving the structures valid for
// the next.
package sched
