package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os/signal"
	"time"

	"pausesync/cmd/pausepeer/ui"
	"pausesync/internal/clocksync"
	"pausesync/internal/config"
	"pausesync/internal/host"
	"pausesync/internal/journal"
	"pausesync/internal/logging"
	"pausesync/internal/node"
	"pausesync/internal/pause"
	"pausesync/internal/session"
	"pausesync/internal/telemetry"
	"pausesync/internal/transport"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

const shutdownTimeout = 5 * time.Second

func runCmd(flags *rootFlags) *cobra.Command {
	var configPath string
	var phase string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Join a pause session and read commands from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			level := cfg.Log.Level
			if flags.debug {
				level = logging.LevelDebug
			}
			format := cfg.Log.Format
			if cmd.Flags().Changed("log-format") {
				format = flags.logFormat
			}
			if err := logging.Configure(level, format); err != nil {
				return err
			}

			initial, ok := pause.ParsePausablePhase(phase)
			if !ok {
				return fmt.Errorf("unknown phase %q", phase)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), unix.SIGINT, unix.SIGTERM)
			defer stop()
			return runPeer(ctx, cfg, initial, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "pausepeer.yaml", "Peer configuration file")
	cmd.Flags().StringVar(&phase, "phase", pause.PhaseStable.String(), "Initial phase of play (none|stable|unstable)")
	return cmd
}

func runPeer(ctx context.Context, cfg config.Config, initial pause.PausablePhase, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	local := session.Peer{ID: session.PeerID(cfg.Ordinal), Name: cfg.Name, Addr: cfg.Listen}
	known := make([]session.Peer, 0, len(cfg.Peers))
	for _, p := range cfg.Peers {
		known = append(known, session.Peer{ID: session.PeerID(p.Ordinal), Name: p.Name, Addr: p.Addr})
	}
	roster := session.NewRoster(local, known...)
	if cfg.Authority != nil {
		roster.Pin(session.PeerID(*cfg.Authority))
	}

	clock := clocksync.NewTracker(clocksync.RealClock{}, cfg.NTP.Pool, cfg.NTP.Interval)
	if cfg.NTP.Disabled {
		clock.Disable()
	}
	go clock.Run(ctx)

	tracing := telemetry.NewLogProvider(slog.Default())
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = tracing.Shutdown(shutdownCtx)
	}()

	var journalStore *journal.Store
	if cfg.Journal != "" {
		var err error
		journalStore, err = journal.Open(cfg.Journal)
		if err != nil {
			return err
		}
		defer journalStore.Close()
	}

	l, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
	}
	peer := transport.NewPeer(roster, transport.WithTimeout(cfg.RequestTimeout))
	peer.Start(l)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := peer.Close(shutdownCtx); err != nil {
			slog.Warn("close transport", "err", err)
		}
	}()

	nodeCfg := node.Config{
		Transport:       peer,
		Host:            host.New(initial),
		Clock:           clock,
		Tracer:          tracing.Tracer("pausesync/internal/pause"),
		PlayersCanPause: cfg.PlayersCanPause,
		ResyncInterval:  cfg.ResyncInterval,
		OnTransition: func(t pause.Transition) {
			verb := "resumed"
			if t.Paused {
				verb = "paused"
			}
			fmt.Fprintln(out, ui.InfoMsg("session %s (%s)", verb, t.Source))
		},
	}
	if journalStore != nil {
		nodeCfg.Journal = journalStore
	}
	n := node.New(nodeCfg)

	nodeErr := make(chan error, 1)
	go func() { nodeErr <- n.Run(ctx) }()

	peer.Hello(ctx)
	fmt.Fprintln(out, ui.SuccessMsg("%s listening on %s", local, l.Addr()))
	fmt.Fprintln(out, ui.InfoMsg("commands: %s", intentHelp))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-nodeErr:
			return err
		case line, ok := <-lines:
			if !ok {
				<-ctx.Done()
				return nil
			}
			intent, err := parseIntent(line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintln(out, ui.WarnMsg("%v", err))
				continue
			}
			st, err := n.Do(ctx, intent)
			if err != nil {
				fmt.Fprintln(out, ui.ErrorMsg("%s: %v", intent.Type, err))
				continue
			}
			fmt.Fprint(out, ui.Status(st))
		}
	}
}
