package main

import (
	"log"

	ftmcmd "github.com/ftm-project/ftm/cmd/ftm"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	ftmcmd.Execute()
}
