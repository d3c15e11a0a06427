//go:build !linux

package main

// applyResourceLimits is a no-op outside Linux; RLIMIT_AS/CPU/NPROC have no
// portable equivalent.
func applyResourceLimits() {}
