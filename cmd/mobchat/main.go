// Command mobchat serves and exercises the chat provider layer.
//
// Usage:
//
//	mobchat serve            run the HTTP API
//	mobchat ask "question"   send one message and print the reply
//	mobchat chat             interactive session with history
//	mobchat version          print build information
package main

import (
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
