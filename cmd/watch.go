package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/carelink/internal/config"
	"github.com/nextlevelbuilder/carelink/pkg/client"
	"github.com/nextlevelbuilder/carelink/pkg/protocol"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stay connected and react to pairing events for this device",
		Long: "watch opens the notification channel for the configured user and\n" +
			"drives the role's reconciler: elderly devices get interactive\n" +
			"approval prompts, caregiver devices get notices and list updates.",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runWatch(); err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
		},
	}
}

func runWatch() error {
	cfg := loadConfig()
	if cfg.Client.UserID == "" {
		return fmt.Errorf("client.userId is not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir := newDirectory(cfg)
	topic, err := protocol.TopicForRole(cfg.Client.Role, cfg.Client.UserID)
	if err != nil {
		return err
	}

	ch := client.NewChannel(client.ChannelOptions{
		URL:            wsURL(cfg.Client.ServerURL),
		Topic:          topic,
		ReconnectDelay: cfg.ReconnectDelay(),
	})
	ch.Start()
	defer ch.Close()

	fmt.Printf("Watching as %s (%s). Ctrl-C to stop.\n", cfg.Client.UserID, cfg.Client.Role)

	if cfg.Client.Role == config.RoleElderly {
		return watchElderly(ctx, dir, ch)
	}
	return watchCaregiver(ctx, cfg, dir, ch)
}

// wsURL turns the configured HTTP base URL into the hub's WebSocket endpoint.
func wsURL(serverURL string) string {
	u := strings.TrimSuffix(serverURL, "/")
	u = strings.Replace(u, "http://", "ws://", 1)
	u = strings.Replace(u, "https://", "wss://", 1)
	return u + "/ws"
}

// stdinLines feeds terminal input into a channel so it can be selected on.
func stdinLines(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// terminalElderlyUI renders approval prompts on the terminal.
type terminalElderlyUI struct{}

func (terminalElderlyUI) ShowPrompt(req client.PendingRequest) {
	name := req.CaregiverFullName
	if name == "" {
		name = req.CaregiverUsername
	}
	if name == "" {
		name = req.CaregiverID
	}
	fmt.Printf("\n%s wants to connect as your caregiver. Approve? [y/n] ", name)
}

func (terminalElderlyUI) DismissPrompt() {
	fmt.Println()
}

func (terminalElderlyUI) ShowError(err error) {
	fmt.Printf("\nCould not resolve the request: %v\n", err)
}

func watchElderly(ctx context.Context, dir *client.Directory, ch *client.Channel) error {
	rec := client.NewElderlyReconciler(dir, terminalElderlyUI{})

	// Prompts that arrived while this device was offline.
	if err := rec.Refresh(ctx); err != nil {
		fmt.Printf("Warning: could not load pending requests: %v\n", err)
	}

	input := stdinLines(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch.Messages():
			if !ok {
				return nil
			}
			rec.HandleMessage(ctx, m)
		case line, ok := <-input:
			if !ok {
				return nil
			}
			switch strings.ToLower(line) {
			case "y", "yes":
				rec.Accept(ctx)
			case "n", "no":
				rec.Dismiss(ctx)
			}
		}
	}
}

// terminalCaregiverUI prints notices and the connected list.
type terminalCaregiverUI struct{}

func (terminalCaregiverUI) Notice(text string) {
	fmt.Println(text)
}

func (terminalCaregiverUI) ElderlyListChanged(list []client.User) {
	if len(list) == 0 {
		fmt.Println("Connected to no one.")
		return
	}
	fmt.Println("Connected to:")
	for _, u := range list {
		name := u.FullName
		if name == "" {
			name = u.ID
		}
		fmt.Printf("  - %s (%s)\n", name, u.ID)
	}
}

func watchCaregiver(ctx context.Context, cfg *config.Config, dir *client.Directory, ch *client.Channel) error {
	sel := client.NewSelector(filepath.Join(cfg.Client.StateDir, "selection.json"))
	rec := client.NewCaregiverReconciler(dir, terminalCaregiverUI{}, sel)

	if err := rec.Refresh(ctx); err != nil {
		fmt.Printf("Warning: could not load connections: %v\n", err)
	}
	if u, ok := sel.Current(); ok {
		fmt.Printf("Active recipient: %s\n", u.ID)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch.Messages():
			if !ok {
				return nil
			}
			rec.HandleMessage(ctx, m)
			if u, ok := sel.Current(); ok {
				fmt.Printf("Active recipient: %s\n", u.ID)
			}
		}
	}
}
