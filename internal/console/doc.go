// Package console implements the operator provisioning session.
//
// The session is a strictly sequential prompt/response protocol over the
// console port: flush stray input, verify storage, collect the six settings
// as edited lines, echo the candidate back, and ask for a single-character
// confirmation. It ends in a device restart no matter what the operator
// decided; there is no path back into bridge mode within the same process
// lifetime.
//
// Line collection is a blocking busy-poll; the session owns the device
// exclusively. Every wait still spins through an idle hook so the
// status indicator keeps flashing its input-pending pattern between
// keystrokes.
//
// Numeric fields are parsed permissively: text that does not parse becomes
// the zero value, and the echoed summary before the commit prompt is the
// operator's only safeguard. That mirrors the device's provisioning
// behavior exactly.
package console
