package main

import (
	"fmt"
	"os"
	"runtime"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	wd, _ := os.Getwd()
	fmt.Printf("hello from %s\n", wd)
}
