package main

import (
	"fmt"
	"runtime"
)

func init() {
	runtime.LockOSThread()
}

var count int

func foo(i int) {
	count += i
	fmt.Println("foo", i)
}

func bar(i int) {
	n := i * 2
	foo(n)
}

func main() {
	for i := 0; i < 3; i++ {
		bar(i)
	}
	fmt.Println("count", count)
}
