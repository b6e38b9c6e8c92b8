package main

import "github.com/cppla/myblog/cmd/blogctl/cmd"

func main() {
	cmd.Execute()
}
