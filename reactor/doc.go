// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides level-triggered readiness multiplexers behind the
// api.Reactor contract: epoll(7) on Linux and poll(2) on every unix.
package reactor
