package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/judepayne/gopods/pod"
)

var (
	flagSocket bool
	flagDir    string
)

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().BoolVar(&flagSocket, "socket", false, "speak to the pod over a TCP socket instead of stdio")
	describeCmd.Flags().StringVar(&flagDir, "dir", "", "working directory the pod announces its socket port from")
}

var describeCmd = &cobra.Command{
	Use:   "describe <pod-binary> [args...]",
	Short: "Launch a pod, perform the describe handshake, and print what it advertises",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		spin.Color("cyan")
		spin.Suffix = " describing " + args[0]
		spin.Start()

		p, err := loadPod(args)
		spin.Stop()
		if err != nil {
			return err
		}
		defer p.Destroy()

		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("%s %s\n", bold("pod id:"), p.ID)
		for nsName, ns := range p.Namespaces {
			fmt.Printf("%s\n", bold(nsName))
			for varName := range ns.Vars {
				fmt.Printf("  %s/%s\n", nsName, varName)
			}
		}
		return nil
	},
}

func loadPod(args []string) (*pod.Pod, error) {
	mode := loadMode()
	opts := pod.LoadOpts{
		Path:      args[0],
		Args:      args[1:],
		Mode:      mode,
		SocketDir: flagDir,
	}
	return pod.LoadPod(context.Background(), opts)
}
