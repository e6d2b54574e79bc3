package main

import "golang.design/x/hotkey/mainthread"

// runMain hands the main thread to the Cocoa event loop that hotkey
// registration needs.
func runMain(f func()) { mainthread.Init(f) }
