package cmds

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/go-delve/deet/pkg/config"
	"github.com/go-delve/deet/pkg/logflags"
	"github.com/go-delve/deet/pkg/terminal"
	"github.com/go-delve/deet/pkg/version"
	"github.com/go-delve/deet/service/debugger"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// initFile is the path to initialization file.
	initFile string
	// workingDir is the working directory for running the program.
	workingDir string
	// tty is used to provide an alternate TTY for the program you wish to debug.
	tty string
	// disableASLR runs the program without address space randomization.
	disableASLR bool

	conf *config.Config
)

const deetCommandLongDesc = `deet is a small source level debugger for Linux amd64 programs.

deet runs your program under ptrace and lets you set breakpoints, continue,
single step and print backtraces. Programs must be compiled with debug
information and frame pointers, for C with -g -O0 -no-pie -fno-omit-frame-pointer.

Pass flags to the program you are debugging using ` + "`--`" + `, for example:

` + "`deet exec ./hello -- --config conf.yml`"

// New returns an initialized command tree.
func New() *cobra.Command {
	// Config setup and load.
	conf = config.LoadConfig()

	rootCommand := &cobra.Command{
		Use:   "deet",
		Short: "deet is a debugger for Linux amd64 programs.",
		Long:  deetCommandLongDesc,
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable debugger logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'deet help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'deet help log').")
	rootCommand.PersistentFlags().StringVar(&initFile, "init", "", "Init file, executed by the terminal client.")
	rootCommand.PersistentFlags().StringVar(&workingDir, "wd", "", "Working directory for running the program.")
	rootCommand.PersistentFlags().StringVar(&tty, "tty", "", "TTY to use for the target program.")
	rootCommand.PersistentFlags().BoolVar(&disableASLR, "disable-aslr", false, "Run the program without address space randomization.")

	// 'exec' subcommand.
	execCommand := &cobra.Command{
		Use:   "exec <path/to/binary> [-- args]",
		Short: "Execute a precompiled binary, and begin a debug session.",
		Long: `Execute a precompiled binary and begin a debug session.

The program is started the first time the 'run' command is issued, with the
arguments given after -- unless run is given its own.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("you must provide a path to a binary")
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(execute(args[0], args[1:], cmd))
		},
	}
	rootCommand.AddCommand(execCommand)

	// 'version' subcommand.
	var versionVerbose = false
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("deet Debugger\n%s\n", version.DeetVersion)
			if versionVerbose {
				fmt.Printf("%s\n", version.BuildInfo())
			}
		},
	}
	versionCommand.Flags().BoolVarP(&versionVerbose, "verbose", "v", false, "print verbose version info")
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:

	debugger	Log debugger commands
	ptrace		Log ptrace requests and wait statuses
	stack		Log stack unwinding
	symbols		Log symbol loading and lookups

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.
`,
	})

	return rootCommand
}

// debuggerConfig builds the configuration of the debugger from the
// command line, falling back to the configuration file for the flags that
// were not set.
func debuggerConfig(flags *pflag.FlagSet, args []string) *debugger.Config {
	dconf := &debugger.Config{
		Args:          args,
		WorkingDir:    workingDir,
		TTY:           tty,
		DisableASLR:   disableASLR,
		EntryFunction: conf.EntryFunction,
	}
	if !flags.Changed("tty") {
		dconf.TTY = conf.TTY
	}
	if !flags.Changed("disable-aslr") {
		dconf.DisableASLR = conf.DisableASLR
	}
	return dconf
}

func execute(path string, args []string, cmd *cobra.Command) int {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer logflags.Close()

	dbg, err := debugger.New(debuggerConfig(cmd.Flags(), args), path)
	if err != nil {
		if errors.Is(err, debugger.ErrNotExecutable) {
			fmt.Fprintf(os.Stderr, "%s is not executable\n", path)
			return 1
		}
		fmt.Fprintf(os.Stderr, "could not load %s: %v\n", path, err)
		return 1
	}

	term := terminal.New(dbg, conf)
	term.InitFile = initFile
	status, err := term.Run()
	if err != nil {
		fmt.Println(err)
	}
	return status
}
