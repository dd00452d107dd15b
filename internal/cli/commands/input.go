package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// stdinName labels input read from standard input.
const stdinName = "<stdin>"

// input is one piece of SQL read from a file or standard input.
type input struct {
	Name string
	SQL  string
	Mode os.FileMode
}

func (in input) isStdin() bool {
	return in.Name == stdinName
}

// usesStdin reports whether args select standard input.
func usesStdin(args []string) bool {
	return len(args) == 0 || (len(args) == 1 && args[0] == "-")
}

// readInputs reads every file named in args, or standard input when there
// are none.
func readInputs(cmd *cobra.Command, args []string) ([]input, error) {
	if usesStdin(args) {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read standard input: %w", err)
		}
		return []input{{Name: stdinName, SQL: string(data)}}, nil
	}

	inputs := make([]input, 0, len(args))
	for _, path := range args {
		in, err := readFile(path)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func readFile(path string) (input, error) {
	info, err := os.Stat(path)
	if err != nil {
		return input{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if info.IsDir() {
		return input{}, fmt.Errorf("%s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return input{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return input{Name: path, SQL: string(data), Mode: info.Mode().Perm()}, nil
}
