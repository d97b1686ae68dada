// Command byteservectl is the operator CLI for a byteserve metadata
// catalog: user, bucket, token, and credential management, plus
// per-bucket settings, talking to the store directly rather than
// through a wire API.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/byteserve/cmd/byteservectl/commands"
)

func main() {
	if err := commands.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
