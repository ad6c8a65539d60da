package application

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultConfigDir is the configuration directory used when none is given.
	DefaultConfigDir = ".relay"

	// ConfigFileName is the name of the configuration file inside the configuration directory.
	ConfigFileName = "config.yml"
)

// Command is a subcommand of the relay executable.
type Command string

const (
	CommandRun                 Command = "run"
	CommandCredentialsGenerate Command = "credentials generate"
	CommandCredentialsShow     Command = "credentials show"
	CommandCredentialsRemove   Command = "credentials remove"
	CommandConfigShow          Command = "config show"
	CommandVersion             Command = "version"
)

var errUsage = errors.New("usage: relay [--config DIR] [--from-env] " +
	"run | credentials (generate [--overwrite] [--stdout] | show | remove [--yes]) | config show | version")

func errConfigDirNotFound(dir string) error {
	return fmt.Errorf("configuration directory %q does not exist", dir)
}

// Options represents all options that can be set from the command line.
type Options struct {
	Command          Command
	ConfigDir        string
	AllowMissingFile bool
	UseEnvironment   bool
	Overwrite        bool
	Stdout           bool
	Yes              bool
}

// ConfigFile returns the path of the configuration file, or "" if there is none to load.
func (o Options) ConfigFile() string {
	if o.ConfigDir == "" {
		return ""
	}
	path := filepath.Join(o.ConfigDir, ConfigFileName)
	if _, err := os.Stat(path); err != nil && o.AllowMissingFile {
		return ""
	}
	return path
}

// DescribeConfigSource returns a human-readable phrase describing whether the configuration comes from a
// file, from variables, or both.
func (o Options) DescribeConfigSource() string {
	file := o.ConfigFile()
	if file == "" && o.UseEnvironment {
		return "configuration from environment variables"
	}
	desc := ""
	if file != "" {
		desc = fmt.Sprintf("configuration file %s", file)
	}
	if o.UseEnvironment {
		desc += " plus environment variables"
	}
	return desc
}

// ReadOptions parses the command line, not including the program name.
//
// Global flags come before the subcommand:
//  1. --config DIR selects the configuration directory, which holds config.yml and
//     credentials.json. It defaults to .relay in the working directory.
//  2. --from-env applies settings from environment variables on top of the file.
//  3. --allow-missing-file runs with defaults if config.yml does not exist.
func ReadOptions(args []string, errOut io.Writer) (Options, error) {
	var o Options

	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&o.ConfigDir, "config", DefaultConfigDir, "configuration directory")
	fs.BoolVar(&o.AllowMissingFile, "allow-missing-file", false, "run with defaults if the configuration file is not found")
	fs.BoolVar(&o.UseEnvironment, "from-env", false, "read configuration from environment variables")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return o, errUsage
	}
	switch rest[0] {
	case "run", "version":
		o.Command = Command(rest[0])
		rest = rest[1:]
	case "credentials", "config":
		if len(rest) < 2 {
			return o, errUsage
		}
		o.Command = Command(rest[0] + " " + rest[1])
		rest = rest[2:]
	default:
		return o, errUsage
	}

	sub := flag.NewFlagSet(string(o.Command), flag.ContinueOnError)
	sub.SetOutput(errOut)
	switch o.Command {
	case CommandCredentialsGenerate:
		sub.BoolVar(&o.Overwrite, "overwrite", false, "replace existing credentials")
		sub.BoolVar(&o.Stdout, "stdout", false, "print the credentials instead of saving them")
	case CommandCredentialsRemove:
		sub.BoolVar(&o.Yes, "yes", false, "do not ask for confirmation")
	case CommandRun, CommandCredentialsShow, CommandConfigShow, CommandVersion:
	default:
		return o, errUsage
	}
	if err := sub.Parse(rest); err != nil {
		return o, err
	}
	if sub.NArg() > 0 {
		return o, errUsage
	}

	if o.Command == CommandRun && !o.AllowMissingFile && !o.UseEnvironment {
		if _, err := os.Stat(o.ConfigDir); os.IsNotExist(err) {
			return o, errConfigDirNotFound(o.ConfigDir)
		}
	}
	return o, nil
}

// DescribeRelayVersion returns the same version string unless it is a prerelease build, in
// which case it is reformatted to change "+xxx" into "(build xxx)".
func DescribeRelayVersion(version string) string {
	split := strings.Split(version, "+")
	if len(split) == 2 {
		return fmt.Sprintf("%s (build %s)", split[0], split[1])
	}
	return version
}
