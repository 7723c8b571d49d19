package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fleet-ai/swe-task-generator/internal/screen"
)

var screenCmd = &cobra.Command{
	Use:   "screen [script-file]",
	Short: "Statically vet an oracle script",
	Long: `Screen checks a candidate oracle script (from the file argument or
stdin) against the static policy: it must invoke a real test runner and must
not reduce to text inspection of the changed files. Exits non-zero on
rejection.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if len(args) == 1 {
			data, err = os.ReadFile(args[0])
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("read script: %w", err)
		}

		var extra []string
		if cfg, err := loadConfig(); err == nil {
			extra = cfg.Generator.Screen.ExtraRunners
		}

		decision := screen.New(extra...).Screen(string(data))
		if decision.Accepted {
			cmd.Println("accepted")
			return nil
		}
		return fmt.Errorf("rejected: %s", decision.Reason)
	},
}
