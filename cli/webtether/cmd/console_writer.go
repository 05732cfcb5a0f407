package cmd

import "fmt"

// consoleWriter is where commands print user facing output. Tests swap it
// out to capture what a command would have printed.
var consoleWriter consoleWrapper = stdoutWriter{}

type consoleWrapper interface {
	Println(a ...any)
	Print(a ...any)
}

type stdoutWriter struct{}

func (stdoutWriter) Println(a ...any) {
	fmt.Println(a...)
}

func (stdoutWriter) Print(a ...any) {
	fmt.Print(a...)
}
