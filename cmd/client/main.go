package main

import "github.com/dkeye/SeatVoice/cmd/client/cmd"

func main() {
	cmd.Execute()
}
