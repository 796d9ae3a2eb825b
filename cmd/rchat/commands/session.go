package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rchat/internal/client"
)

const reconnectAttempts = 3

// runSession bridges stdin lines to the engine and engine events to
// stdout until EOF, /quit, or an unrecoverable disconnect.
func runSession(cmd *cobra.Command, eng *client.Engine) error {
	done := make(chan error, 1)

	go func() {
		for ev := range eng.Events() {
			switch v := ev.(type) {
			case client.RoomCreated:
				fmt.Printf("* room ready (%s…)\n", shortID(v.RoomID.String()))
			case client.RoomJoined:
				fmt.Printf("* joined, %d participant(s)\n", v.ParticipantCount)
			case client.Message:
				ts := time.Unix(v.Timestamp, 0).Format("15:04:05")
				fmt.Printf("[%s] %s: %s\n", ts, v.Username, v.Content)
			case client.PeerJoined:
				fmt.Printf("* %s joined\n", v.Username)
			case client.PeerLeft:
				fmt.Printf("* %s left\n", v.Username)
			case client.SendFailed:
				fmt.Printf("! could not deliver: %s\n", v.Content)
			case client.RelayError:
				fmt.Printf("! relay: %s\n", v.Message)
			case client.ConnectionLost:
				if !reconnect(eng) {
					done <- v.Err
					return
				}
				fmt.Println("* reconnected")
			}
		}
	}()

	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			if line == "/quit" {
				break
			}
			if _, err := eng.Send(line); err != nil {
				fmt.Printf("! send: %v\n", err)
			}
		}
		done <- nil
	}()

	return <-done
}

func reconnect(eng *client.Engine) bool {
	for i := 0; i < reconnectAttempts; i++ {
		time.Sleep(time.Duration(i+1) * time.Second)
		if err := eng.Reconnect(); err == nil {
			return true
		}
	}
	return false
}

func shortID(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
