package main

import (
	"os"

	"github.com/fairspace/ceres/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
