package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandServe       Command = "serve"
	CommandToggle      Command = "toggle"
	CommandStatus      Command = "status"
	CommandResult      Command = "result"
	CommandCopy        Command = "copy"
	CommandRefine      Command = "refine"
	CommandCopyRefined Command = "copy-refined"
	CommandModel       Command = "model"
	CommandKey         Command = "key"
	CommandConfig      Command = "config"
	CommandDevices     Command = "devices"
	CommandDoctor      Command = "doctor"
	CommandVersion     Command = "version"
	CommandHelp        Command = "help"
)

// arity bounds the positional arguments each command accepts.
type arity struct{ min, max int }

var validCommands = map[Command]arity{
	CommandServe:       {0, 0},
	CommandToggle:      {0, 0},
	CommandStatus:      {0, 0},
	CommandResult:      {0, 0},
	CommandCopy:        {0, 0},
	CommandRefine:      {1, 1},
	CommandCopyRefined: {1, 1},
	CommandModel:       {1, 2},
	CommandKey:         {1, 1},
	CommandConfig:      {1, 3},
	CommandDevices:     {0, 0},
	CommandDoctor:      {0, 0},
	CommandVersion:     {0, 0},
	CommandHelp:        {0, 0},
}

var subcommands = map[Command]map[string]arity{
	CommandModel:  {"status": {0, 1}, "download": {0, 1}, "delete": {0, 1}},
	CommandKey:    {"set": {0, 0}, "clear": {0, 0}, "status": {0, 0}},
	CommandConfig: {"path": {0, 0}, "set": {2, 2}},
}

type Parsed struct {
	Command    Command
	Args       []string
	ConfigPath string
	ShowHelp   bool
}

// Sub returns the first positional argument, the subcommand for model, key
// and config.
func (p Parsed) Sub() string {
	if len(p.Args) == 0 {
		return ""
	}
	return p.Args[0]
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	seenCommand := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if seenCommand {
			if strings.HasPrefix(arg, "-") && arg != "-" {
				return Parsed{}, fmt.Errorf("unexpected flag after command %q: %s", parsed.Command, arg)
			}
			parsed.Args = append(parsed.Args, arg)
			continue
		}

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			seenCommand = true
		}
	}

	if !seenCommand {
		return parsed, nil
	}
	if err := checkArity(parsed); err != nil {
		return Parsed{}, err
	}
	return parsed, nil
}

func checkArity(parsed Parsed) error {
	want := validCommands[parsed.Command]
	if len(parsed.Args) < want.min {
		return fmt.Errorf("command %q requires an argument", parsed.Command)
	}
	if len(parsed.Args) > want.max {
		return fmt.Errorf("unexpected arguments after command %q", parsed.Command)
	}

	subs, ok := subcommands[parsed.Command]
	if !ok {
		return nil
	}
	sub := parsed.Args[0]
	subArity, ok := subs[sub]
	if !ok {
		return fmt.Errorf("unknown %s subcommand: %s", parsed.Command, sub)
	}
	rest := len(parsed.Args) - 1
	if rest < subArity.min {
		return fmt.Errorf("%s %s requires %d argument(s)", parsed.Command, sub, subArity.min)
	}
	if rest > subArity.max {
		return fmt.Errorf("unexpected arguments after %s %s", parsed.Command, sub)
	}
	return nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [args]

Commands:
  serve                        Run the dictation daemon in the foreground
  toggle                       Start recording, or stop and transcribe when recording
  status                       Print current state
  result                       Print the last transcription and refinements
  copy                         Copy the raw transcription to the clipboard
  refine MODE                  Refine the transcription (spelling-fix, formal-tone,
                               concise-rewrite, custom-prompt)
  copy-refined MODE            Copy a refinement that has already run
  model status|download|delete [base|small]
                               Manage the offline whisper model
  key set|clear|status         Manage the stored OpenAI API key (set reads stdin)
  config path                  Print the config file path
  config set KEY VALUE         Update one setting and save
  devices                      List available input devices
  doctor                       Run configuration and environment checks
  version                      Print version information
  help                         Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/dictum/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
