package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"laptudirm.com/x/ponder/internal/ponder/cmd"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		PadLevelText:     true,
	})
	logrus.SetLevel(logrus.InfoLevel)

	if err := ponder(); err != nil {
		logrus.Fatal(err)
	}
}

func ponder() error {
	root := cmd.Root()
	root.SetArgs(os.Args[1:])
	return root.Execute()
}
