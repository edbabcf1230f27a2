// Command wikiproxy runs the WikiProxy reverse proxy core behind a
// standard-library net/http listener.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "wikiproxy",
		Short: "A reverse proxy that exposes Wikipedia behind a single hostname per language",
	}
	root.AddCommand(newRunCmd())
	return root
}
