package main

import "github.com/dkeye/Duet/internal/logging"

func main() {
	logging.Setup("warn", "console")
	Execute()
}
