package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(invokeCmd)
}

var invokeCmd = &cobra.Command{
	Use:   "invoke <pod-binary> <ns/var>",
	Short: "Load a pod and invoke one var on it with no arguments",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		podArgs := args[:len(args)-1]
		qualifiedVar := args[len(args)-1]

		p, err := loadPod(podArgs)
		if err != nil {
			return err
		}
		defer p.Destroy()

		value, err := p.Invoke(context.Background(), qualifiedVar, nil)
		if err != nil {
			color.New(color.FgRed).Fprintln(c.ErrOrStderr(), err)
			return err
		}

		fmt.Printf("%v\n", value)
		return nil
	},
}
