package main

import (
	"flag"

	"github.com/LincolnBryant/slate-client-server/internal/app"
)

func main() {
	configPath := flag.String("config", "", "path to the server configuration file")
	flag.Parse()

	application, err := app.Initialize(*configPath)
	if err != nil {
		panic(err)
	}

	app.StartServer(application)
}
