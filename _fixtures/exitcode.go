package main

import (
	"os"
	"runtime"
	"strconv"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	code := 0
	if len(os.Args) > 1 {
		code, _ = strconv.Atoi(os.Args[1])
	}
	os.Exit(code)
}
