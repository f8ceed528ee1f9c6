package main

import (
	"agroprecios-harvester/cmd/agroprecios/commands"
	"agroprecios-harvester/lib/util/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
