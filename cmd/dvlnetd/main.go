package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/meshcore/dvlnet/internal/audit"
	"github.com/meshcore/dvlnet/internal/config"
	"github.com/meshcore/dvlnet/internal/netid"
	"github.com/meshcore/dvlnet/internal/netlog"
	"github.com/meshcore/dvlnet/internal/protocol"
	"github.com/meshcore/dvlnet/internal/session"
	"github.com/meshcore/dvlnet/internal/transport"
)

func defaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".dvlnet")
}

var rootCmd = &cobra.Command{
	Use:   "dvlnetd",
	Short: "Peer-to-peer session daemon for a small mesh game network.",
	Long: `dvlnetd — direct-connect session layer for up to four players.

No dedicated server: the first player to call create becomes the
session master, every later caller joins by game name and password,
and the mesh elects a new master by lowest surviving player id if the
current one disconnects.`,
}

var cfgPath string

var runCmd = &cobra.Command{
	Use:   "run <create|join> <gamename> <password>",
	Short: "Create or join a session and hold an interactive console open",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data")
		port, _ := cmd.Flags().GetInt("port")
		bootstrapList, _ := cmd.Flags().GetStringSlice("bootstrap")

		verb, gamename, password := args[0], args[1], args[2]
		if verb != "create" && verb != "join" {
			return fmt.Errorf("first argument must be %q or %q, got %q", "create", "join", verb)
		}

		cfg := config.Default()
		if cfgPath != "" {
			loaded, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
		}
		if port > 0 {
			cfg.Port = port
		}

		if err := os.MkdirAll(dataDir, 0700); err != nil {
			return err
		}
		auditLog, err := audit.Open(filepath.Join(dataDir, "audit.db"))
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		defer auditLog.Close()

		factory := protocol.NewWireFactory()
		tr := transport.NewNetTransport(cfg.Port, factory)
		var scope []netid.Endpoint
		for _, b := range bootstrapList {
			if ep := netid.ParseIP(b); !ep.IsZero() {
				scope = append(scope, ep)
			}
		}
		tr.SetMulticastScope(scope)
		sess := session.New(tr, factory, cfg, auditLog)

		var plr config.PlayerID
		switch verb {
		case "create":
			plr, err = sess.Create(gamename, password)
		case "join":
			plr, err = sess.Join(gamename, password)
		}
		if err != nil {
			return fmt.Errorf("%s %q: %w", verb, gamename, err)
		}

		fmt.Printf("\n  dvlnetd — %s\n\n", verb)
		fmt.Printf("  Game      : %s\n", gamename)
		fmt.Printf("  Player id : %d\n", plr)
		fmt.Printf("  Port      : %d\n", cfg.Port)
		fmt.Printf("  Data      : %s\n", dataDir)
		fmt.Printf("\n  Commands (in this terminal):\n")
		fmt.Printf("    send <plr|*> <message>   — send an application message\n")
		fmt.Printf("    master                   — print the current master\n")
		fmt.Printf("    leave <message>          — broadcast a leave notice and exit\n\n")

		stop := make(chan struct{})
		go pollLoop(sess, stop)
		go consoleLoop(sess, factory)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		close(stop)
		fmt.Println("\nShutting down.")
		return nil
	},
}

func pollLoop(sess *session.Session, stop <-chan struct{}) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := sess.Poll(); err != nil {
				netlog.Warn("dvlnetd: poll: %v", err)
			}
		case pkt := <-sess.Inbox():
			fmt.Printf("\n< [%d] %s\n> ", pkt.Src(), pkt.Info())
		}
	}
}

func consoleLoop(sess *session.Session, factory protocol.Factory) {
	fmt.Print("> ")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("> ")
			continue
		}
		parts := strings.SplitN(line, " ", 3)
		switch parts[0] {
		case "send":
			if len(parts) < 3 {
				fmt.Println("usage: send <plr|*> <message>")
				break
			}
			dest := parseDest(parts[1])
			pkt, err := factory.NewApplication(sess.Self(), dest, []byte(parts[2]))
			if err != nil {
				fmt.Printf("error: %v\n", err)
				break
			}
			if err := sess.Send(pkt); err != nil {
				fmt.Printf("error: %v\n", err)
			} else {
				fmt.Println("sent")
			}
		case "master":
			fmt.Printf("master: player %d\n", sess.GetMaster())
		case "leave":
			msg := ""
			if len(parts) > 1 {
				msg = strings.Join(parts[1:], " ")
			}
			if _, err := sess.Leave([]byte(msg)); err != nil {
				fmt.Printf("error: %v\n", err)
			}
			os.Exit(0)
		default:
			fmt.Printf("unknown command: %s\n", parts[0])
		}
		fmt.Print("> ")
	}
}

func parseDest(s string) config.PlayerID {
	if s == "*" {
		return config.PlrBroadcast
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n < 0 || n >= int(config.MaxPlayers) {
		return config.PlrBroadcast
	}
	return config.PlayerID(n)
}

var gamenameCmd = &cobra.Command{
	Use:   "gamename",
	Short: "Print a freshly generated random game name",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(session.DefaultGamename())
		return nil
	},
}

func init() {
	dd := defaultDataDir()

	runCmd.Flags().String("data", dd, "data directory for the audit log")
	runCmd.Flags().Int("port", 0, "overlay TCP+UDP port (0 = use config default)")
	runCmd.Flags().StringSlice("bootstrap", []string{}, "known peer addresses for discovery (host IPv6 addresses)")
	runCmd.Flags().StringVar(&cfgPath, "config", "", "path to a YAML config file overlaying the defaults")

	rootCmd.AddCommand(runCmd, gamenameCmd)
}

func main() {
	netlog.Setup(log.InfoLevel)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
