// Package bridge implements the steady-state byte relay between the
// hardware serial link and the network client slots.
//
// The engine is tick-driven and never blocks: every endpoint it touches
// reports exact byte budgets, and each Tick moves only what those budgets
// allow. Within a tick the order is fixed (reap freed slots, accept at most
// one new connection, drain client bytes toward the serial link, then fan
// one serial chunk out to the clients) because the fan-out's fairness
// computation must observe budgets that already reflect this tick's
// drains.
//
// # Flow control
//
// The fan-out chunk is bounded by the minimum writable budget across the
// connected, non-congested clients. A client whose budget cannot hold the
// pending chunk is congested: it is skipped (and logged) rather than
// allowed to stall every other client to its pace, and it simply misses
// chunks until it drains. The bridge is a best-effort logging relay, not a
// reliable transport.
package bridge
