// Command vadscribe segments speech with a voice activity detector and
// transcribes each utterance concurrently with an offline recognizer.
//
// Usage:
//
//	vadscribe [flags] <command> [args]
//
// Commands:
//
//	live    - transcribe the microphone or system audio
//	file    - transcribe audio or video files
//	watch   - transcribe files as they appear in a directory
//	models  - download whisper models
//	init    - write the default config file
package main

import (
	"fmt"
	"os"

	"github.com/chaz8081/vadscribe/cmd/vadscribe/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
