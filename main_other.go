//go:build !darwin

package main

func runMain(f func()) { f() }
