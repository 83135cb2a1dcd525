// Package billing is the credit-card billing-cycle and obligation-lifecycle
// engine.
//
// It derives statement cycles from a card's closing and due days, decides
// which cycles need attention, expands one obligation request into an
// installment plan or a recurring series, and applies the statement and
// settlement transitions that keep a card statement consistent with the
// purchases it covers.
//
// Everything here is synchronous and performs no I/O. Callers load the
// records an operation needs (by explicit filters, never by walking object
// graphs), hand them to the engine, and persist the mutated and created
// records inside a single database transaction.
package billing
