package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/2beens/withings2weeks/internal/weeks"

	"github.com/fatih/color"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// usageError marks bad arguments or flags, as opposed to a failed run.
type usageError struct {
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Unwrap() error {
	return e.err
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return exitOK
	}

	errColor := color.New(color.FgRed, color.Bold)
	fmt.Fprintf(stderr, "%s %s\n", errColor.Sprint("error:"), err)

	if exitCode(err) == exitUsage {
		fmt.Fprintf(stderr, "run '%s --help' for usage\n", root.Name())
	}
	return exitCode(err)
}

func exitCode(err error) int {
	var usageErr *usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usageErr),
		errors.Is(err, weeks.ErrInvalidFormat),
		errors.Is(err, weeks.ErrOutOfRange),
		errors.Is(err, weeks.ErrInvalidWeek):
		return exitUsage
	default:
		return exitError
	}
}
