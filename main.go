package main

import "github.com/diemxuan/face-attendance/cmd"

func main() {
	cmd.Execute()
}
