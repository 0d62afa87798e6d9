package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var probeOpts struct {
	url     string
	text    string
	audio   string
	output  string
	ping    bool
	timeout time.Duration
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Send test frames to a running relay and print the replies",
	Long: `Connect to a relay, send a ping, a text probe or an audio file, and print
every frame until the submission completes.

Examples:
  voicerelay probe --ping
  voicerelay probe --text "Merhaba, nasılsın?" -o reply.mp3
  voicerelay probe --audio sample.webm -o reply.mp3`,
	RunE: runProbe,
}

func init() {
	f := probeCmd.Flags()
	f.StringVar(&probeOpts.url, "url", "ws://localhost:8000/ws/probe", "relay WebSocket URL")
	f.StringVar(&probeOpts.text, "text", "", "send a test_ai text probe")
	f.StringVar(&probeOpts.audio, "audio", "", "send an audio file as audio_data")
	f.StringVarP(&probeOpts.output, "output", "o", "", "write the returned audio to this file")
	f.BoolVar(&probeOpts.ping, "ping", false, "send a ping")
	f.DurationVar(&probeOpts.timeout, "timeout", 2*time.Minute, "time to wait for each reply")
}

// probeFrame is the union of every field a relay frame may carry.
type probeFrame struct {
	Type      string `json:"type"`
	Stage     string `json:"stage,omitempty"`
	Message   string `json:"message,omitempty"`
	Text      string `json:"text,omitempty"`
	AudioData string `json:"audio_data,omitempty"`
}

func runProbe(cmd *cobra.Command, args []string) error {
	if !probeOpts.ping && probeOpts.text == "" && probeOpts.audio == "" {
		return fmt.Errorf("nothing to send, use --ping, --text or --audio")
	}

	conn, _, err := websocket.DefaultDialer.Dial(probeOpts.url, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", probeOpts.url, err)
	}
	defer conn.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "connected to %s\n", probeOpts.url)

	if probeOpts.ping {
		if err := exchange(conn, out, map[string]string{"type": "ping"}); err != nil {
			return err
		}
	}

	if probeOpts.text != "" {
		if err := exchange(conn, out, map[string]string{"type": "test_ai", "text": probeOpts.text}); err != nil {
			return err
		}
	}

	if probeOpts.audio != "" {
		data, err := os.ReadFile(probeOpts.audio)
		if err != nil {
			return fmt.Errorf("read audio: %w", err)
		}
		msg := map[string]string{
			"type":       "audio_data",
			"audio_data": base64.StdEncoding.EncodeToString(data),
		}
		if err := exchange(conn, out, msg); err != nil {
			return err
		}
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}

// exchange sends msg and prints frames until a terminal one arrives.
func exchange(conn *websocket.Conn, out io.Writer, msg map[string]string) error {
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg["type"], err)
	}

	for {
		conn.SetReadDeadline(time.Now().Add(probeOpts.timeout))
		var frame probeFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("read reply: %w", err)
		}

		switch frame.Type {
		case "status":
			fmt.Fprintf(out, "[status] %s (%s)\n", frame.Message, frame.Stage)
		case "transcription":
			fmt.Fprintf(out, "[transcription] %s\n", frame.Text)
		case "ai_response":
			fmt.Fprintf(out, "[ai_response] %s\n", frame.Text)
		case "pong":
			fmt.Fprintf(out, "[pong] %s\n", frame.Message)
			return nil
		case "error":
			fmt.Fprintf(out, "[error] %s\n", frame.Message)
			return nil
		case "audio_response":
			audio, err := base64.StdEncoding.DecodeString(frame.AudioData)
			if err != nil {
				return fmt.Errorf("decode audio: %w", err)
			}
			fmt.Fprintf(out, "[audio_response] %d bytes for %q\n", len(audio), frame.Text)
			if probeOpts.output != "" {
				if err := os.WriteFile(probeOpts.output, audio, 0o644); err != nil {
					return fmt.Errorf("write audio: %w", err)
				}
				fmt.Fprintf(out, "audio written to %s\n", probeOpts.output)
			}
			return nil
		default:
			fmt.Fprintf(out, "[%s] unexpected frame\n", frame.Type)
		}
	}
}
