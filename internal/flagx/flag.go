// Package flagx contains helpers for parsing a subset of command-line flags
// without clashing with flags owned by other packages or the test runner.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// ConfigPathEnv names the environment variable consulted when no -c/-config
// flag is given.
const ConfigPathEnv = "ESTATEMATCH_CONFIG"

// FilterArgs keeps only the flags listed in allowedFlags together with their
// values. Both "-f value" and "-f=value" forms are recognised; a following
// token that starts with "-" is never consumed as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// ConfigPath returns the JSON config file path given with -c or -config.
// When neither flag is present it falls back to $ESTATEMATCH_CONFIG and
// returns an empty string if that is unset too.
func ConfigPath() string {
	var path string

	args := FilterArgs(os.Args[1:], []string{"-c", "-config"})

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(args)

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	return path
}

// SplitList splits a comma separated value, trimming blanks and dropping
// empty items. It returns nil for an empty input.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
