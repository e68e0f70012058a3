package main

import (
	"fmt"
	"runtime"
)

func init() {
	runtime.LockOSThread()
}

type T struct {
	x int
}

func main() {
	var p *T
	fmt.Println("dereferencing")
	fmt.Println(p.x)
}
