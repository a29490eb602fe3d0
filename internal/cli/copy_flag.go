package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	copyFlagValueTypeName       = "copy"
	invalidCopyFlagValueMessage = "invalid copy flag value '%s'"
	argumentTerminator          = "--"
)

// parseCopyFlagLiteral interprets lenient boolean spellings for the copy
// flag. The second result reports whether input was a recognized literal.
func parseCopyFlagLiteral(input string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "true", "t", "1", "yes", "y":
		return true, true
	case "false", "f", "0", "no", "n":
		return false, true
	}
	return false, false
}

// commandAcceptsCopyFlag reports whether argument names a command that
// registers the copy flag. Only the combine command copies to the clipboard.
func commandAcceptsCopyFlag(argument string) bool {
	switch strings.ToLower(strings.TrimSpace(argument)) {
	case combineCommandName, combineAlias:
		return true
	}
	return false
}

// copyFlagValue adapts lenient copy flag literals to a boolean target so the
// flag accepts --copy, --copy=yes, and --copy=false alike.
type copyFlagValue struct {
	target *bool
}

func (value *copyFlagValue) Set(input string) error {
	if value == nil || value.target == nil {
		return fmt.Errorf(invalidCopyFlagValueMessage, input)
	}
	parsedValue, recognized := parseCopyFlagLiteral(input)
	if !recognized {
		return fmt.Errorf(invalidCopyFlagValueMessage, input)
	}
	*value.target = parsedValue
	return nil
}

func (value *copyFlagValue) String() string {
	if value != nil && value.target != nil && *value.target {
		return "true"
	}
	return "false"
}

func (value *copyFlagValue) Type() string {
	return copyFlagValueTypeName
}

func registerCopyFlag(flagSet *pflag.FlagSet, target *bool) {
	if flagSet == nil || target == nil {
		return
	}
	*target = false
	flagSet.Var(&copyFlagValue{target: target}, copyFlagName, copyFlagDescription)
	if registeredFlag := flagSet.Lookup(copyFlagName); registeredFlag != nil {
		registeredFlag.NoOptDefVal = "true"
	}
}

// normalizeCopyFlagArguments rewrites bare --copy occurrences into the
// --copy=<value> form so a following positional argument is not swallowed as
// the flag value. Arguments after the -- terminator pass through untouched.
func normalizeCopyFlagArguments(arguments []string) []string {
	normalized := make([]string, 0, len(arguments))
	insideCommand := false
	for argumentIndex := 0; argumentIndex < len(arguments); argumentIndex++ {
		currentArgument := arguments[argumentIndex]

		if currentArgument == argumentTerminator {
			normalized = append(normalized, arguments[argumentIndex:]...)
			break
		}

		if currentArgument != "--"+copyFlagName {
			normalized = append(normalized, currentArgument)
			if !insideCommand && !strings.HasPrefix(currentArgument, "-") && commandAcceptsCopyFlag(currentArgument) {
				insideCommand = true
			}
			continue
		}

		followerIndex := argumentIndex + 1
		if followerIndex >= len(arguments) || strings.HasPrefix(arguments[followerIndex], "-") {
			normalized = append(normalized, fmt.Sprintf("--%s=true", copyFlagName))
			continue
		}

		followerArgument := arguments[followerIndex]
		if parsedValue, recognized := parseCopyFlagLiteral(followerArgument); recognized {
			normalized = append(normalized, fmt.Sprintf("--%s=%t", copyFlagName, parsedValue))
			argumentIndex++
			continue
		}
		if insideCommand || commandAcceptsCopyFlag(followerArgument) {
			normalized = append(normalized, currentArgument)
			continue
		}
		normalized = append(normalized, fmt.Sprintf("--%s=%s", copyFlagName, followerArgument))
		argumentIndex++
	}
	return normalized
}
