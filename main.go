package main

import "github.com/Taichi-iskw/yt-digest/cmd"

func main() {
	cmd.Execute()
}
