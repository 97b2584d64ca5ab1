package main

import "github.com/goplus/depbuild/cmd/depbuild/internal"

func main() {
	internal.Execute()
}
