// Command demystify explains human-style solving of a constraint puzzle
// by enumerating, for each deduced value, a minimal set of clues that
// rules out its alternatives.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/clues/demystify/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		logrus.WithError(err).Error("demystify failed")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}
