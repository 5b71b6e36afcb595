// Package flagx contains helpers for components that parse only a subset of
// the process command line, so several flag sets can coexist on one os.Args.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// FilterArgs returns the arguments from args that belong to allowedFlags,
// keeping their values.
//
// Supported formats:
//  1. Flag and value as separate arguments:  -c conf.json
//  2. Flag and value combined with '=':      -config=conf.json
//
// A value is only taken from the next argument if it does not itself start
// with '-'. The result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// ConfigFile extracts the JSON config path passed via -c or -config.
// Other arguments are ignored; when the flag repeats, the last value wins.
// An empty string means no config file was requested.
func ConfigFile(args []string) string {
	return stringFlag(args, "config", "c", "Path to config file")
}

// EnvFile extracts the dotenv path passed via -env-file. An empty string
// means the default lookup applies.
func EnvFile(args []string) string {
	return stringFlag(args, "env-file", "", "Path to .env file")
}

func stringFlag(args []string, long, short, usage string) string {
	var value string

	names := []string{"-" + long}
	fs := flag.NewFlagSet(long, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&value, long, "", usage)
	if short != "" {
		names = append(names, "-"+short)
		fs.StringVar(&value, short, "", usage+" (short)")
	}

	_ = fs.Parse(FilterArgs(args, names))

	return value
}
