package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/Duet/internal/adapters/rtc"
	"github.com/dkeye/Duet/internal/config"
	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/logging"
	"github.com/dkeye/Duet/internal/media"
	"github.com/dkeye/Duet/internal/negotiation"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/dkeye/Duet/internal/signaling"
)

var (
	flagRoom          string
	flagName          string
	flagServer        string
	flagChatTransport string
	flagAudioOnly     bool
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a room and start a call",
	Long: `Join a room and start a call with whoever else is in it.

Examples:
  duet-client join --room standup --name alice
  duet-client join --room standup --name bob --chat-transport datachannel`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadClient()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("server") {
			cfg.ServerURL = flagServer
		}
		if cmd.Flags().Changed("chat-transport") {
			cfg.ChatTransport = flagChatTransport
		}
		return runJoin(cmd.Context(), cfg)
	},
}

func init() {
	joinCmd.Flags().StringVarP(&flagRoom, "room", "r", "", "room to join")
	joinCmd.Flags().StringVarP(&flagName, "name", "n", "", "display name")
	joinCmd.Flags().StringVar(&flagServer, "server", "", "signaling server WebSocket URL")
	joinCmd.Flags().StringVar(&flagChatTransport, "chat-transport", negotiation.ChatOverRelay, "chat path: relay or datachannel")
	joinCmd.Flags().BoolVar(&flagAudioOnly, "audio-only", false, "do not send video")
	_ = joinCmd.MarkFlagRequired("room")
	_ = joinCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(joinCmd)
}

func runJoin(ctx context.Context, cfg *config.ClientConfig) error {
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	api, err := rtc.NewAPI(logging.ParseLevel(cfg.Log.Level))
	if err != nil {
		return err
	}
	rtcConfig := rtc.Configuration(cfg.ICEServers)

	opts := signaling.DefaultOptions()
	opts.HandshakeTimeout = cfg.HandshakeTimeout
	opts.PingPeriod = cfg.PingPeriod
	opts.PongWait = cfg.PongWait
	client := signaling.NewClient(cfg.ServerURL, opts)

	sess := negotiation.New(negotiation.Config{
		Signaler: client,
		Devices:  media.SyntheticDevices{},
		NewPeer: func() (core.PeerConnection, error) {
			pc, err := rtc.NewWebRTCConnection(api, rtcConfig)
			if err != nil {
				return nil, err
			}
			return pc, nil
		},
		InitiatorDelay: cfg.InitiatorDelay,
		ChatTransport:  cfg.ChatTransport,
	})
	defer func() {
		if err := sess.EndSession(); err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("teardown")
		}
	}()

	ended := make(chan struct{})
	var endOnce sync.Once
	sess.SetCallbacks(negotiation.Callbacks{
		OnRemoteStream: func(rs *media.RemoteStream) {
			printInfo(fmt.Sprintf("receiving remote %s", rs.Kind()))
			go func() {
				_ = rs.Drain(ctx, nil)
				log.Debug().Str("module", "client").Str("kind", string(rs.Kind())).Uint64("packets", rs.Packets()).Uint64("bytes", rs.Bytes()).Msg("remote stream ended")
			}()
		},
		OnMessage: func(m protocol.ChatMessage) {
			printChat(flagName, m)
		},
		OnStateChange: func(p negotiation.Phase) {
			printPhase(p)
			if p == negotiation.Disconnected {
				endOnce.Do(func() { close(ended) })
			}
		},
	})

	if _, err := sess.AcquireLocalMedia(ctx, media.Constraints{Audio: true, Video: !flagAudioOnly}); err != nil {
		var accessErr *media.AccessError
		if errors.As(err, &accessErr) {
			return errors.New(accessErr.UserMessage())
		}
		return err
	}

	printBanner(flagRoom, flagName, cfg.ChatTransport)
	onSignalingError := func(err error) {
		var relayErr *signaling.RelayError
		if errors.As(err, &relayErr) {
			printError(relayErr.Message)
			return
		}
		printError(err.Error())
	}
	if err := sess.StartSession(ctx, flagRoom, flagName, onSignalingError); err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.ServerURL, err)
	}

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ended:
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			act, text := parseLine(line)
			switch act {
			case actionChat:
				if err := sess.SendChatText(text); err != nil {
					printError(err.Error())
				}
			case actionMute:
				if sess.ToggleAudio() {
					printInfo("microphone on")
				} else {
					printInfo("microphone muted")
				}
			case actionVideo:
				if sess.ToggleVideo() {
					printInfo("camera on")
				} else {
					printInfo("camera off")
				}
			case actionQuit:
				return nil
			case actionUnknown:
				printError("unknown command " + text)
			}
		}
	}
}
