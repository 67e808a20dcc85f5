package main

import "github.com/ValentinKolb/lkv/cmd"

func main() {
	cmd.Execute()
}
