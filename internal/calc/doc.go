// Package calc
// Author: momentics <momentics@gmail.com>
//
// Parser and evaluator for the "<number> <op> <number>" request protocol.
// Everything here is pure: no I/O, no shared state.
package calc
