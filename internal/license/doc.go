// Package license implements the license lifecycle state machine: the record
// model, the key format, and the activation/validation engine that binds
// license keys to hardware identifiers.
//
// The engine is deliberately asymmetric. Activation looks a record up by key
// alone so it can report a precise wrong-device error; validation requires an
// exact (key, hwid) pair and fails closed for any mismatch without saying why.
// Expiry is evaluated lazily at each check against wall-clock time; an expired
// record is permanently deactivated as a side effect of the failing call and
// stays deactivated until an admin re-enables it.
package license
