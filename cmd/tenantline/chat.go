package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	tenantline "github.com/tenantline/tenantline-go-sdk"
)

func init() {
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(billingCmd)

	createCmd.Flags().String("topic", "", "optional conversation topic")
}

func printConversation(c *tenantline.Conversation) {
	admin := "unassigned"
	if c.Admin != nil {
		admin = c.Admin.Name
	}
	fmt.Printf("%s  [%s]  %-30s  admin=%s  unread=%d\n",
		c.ID, c.Status, c.DisplayTopic(), admin, c.UnreadCount)
}

func printMessage(m *tenantline.Message) {
	marker := ""
	if m.Pending() {
		marker = " (sending)"
	}
	body := m.Content
	if body == "" && m.FileURL != "" {
		body = "[file] " + m.FileURL
	}
	fmt.Printf("%s  %-6s %s: %s%s\n",
		m.CreatedAt.Format(time.RFC3339), m.SenderRole, m.SenderID, body, marker)
}

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List your conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, _, err := getClient()
		if err != nil {
			return err
		}
		convos, err := api.ListConversations(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list conversations: %w", err)
		}
		if len(convos) == 0 {
			fmt.Println("No conversations.")
			return nil
		}
		for i := range convos {
			printConversation(&convos[i])
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <conversation-id>",
	Short: "Print the message history of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, _, err := getClient()
		if err != nil {
			return err
		}
		msgs, err := api.ListMessages(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		for i := range msgs {
			printMessage(&msgs[i])
		}
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create <first-message>",
	Short: "Open a new conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, _, err := getClient()
		if err != nil {
			return err
		}
		topic, _ := cmd.Flags().GetString("topic")
		convo, err := api.CreateConversation(cmd.Context(), topic, args[0])
		if err != nil {
			return fmt.Errorf("failed to create conversation: %w", err)
		}
		fmt.Println("Created:")
		printConversation(convo)
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <conversation-id> <text>",
	Short: "Send a message to a conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, sock, err := getSession()
		if err != nil {
			return err
		}
		defer sock.Close()

		ctx := cmd.Context()
		if err := sock.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		if _, err := sess.LoadHistory(ctx, args[0]); err != nil {
			return fmt.Errorf("failed to load conversation: %w", err)
		}
		if err := sess.Send(ctx, args[0], args[1]); err != nil {
			return fmt.Errorf("failed to send: %w", err)
		}

		// Give the confirming push a moment so the temp id is replaced.
		time.Sleep(500 * time.Millisecond)
		fmt.Println("Sent.")
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <conversation-id>",
	Short: "Follow a conversation live until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, sock, err := getSession()
		if err != nil {
			return err
		}
		defer sock.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		sock.OnDisconnected(func(reason string) {
			fmt.Printf("-- disconnected: %s\n", reason)
		})
		sock.OnConnected(func() {
			fmt.Println("-- connected")
		})
		sock.OnEvent(func(ev tenantline.Event) {
			if ev.Kind != tenantline.EventMessageNew {
				return
			}
			msgs := sess.Messages()
			if len(msgs) > 0 {
				printMessage(&msgs[len(msgs)-1])
			}
		})

		if err := sock.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}

		msgs, err := sess.LoadHistory(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		for i := range msgs {
			printMessage(&msgs[i])
		}
		_ = sess.MarkRead(ctx, args[0])

		<-ctx.Done()
		return nil
	},
}

var billingCmd = &cobra.Command{
	Use:   "billing-unread",
	Short: "Show the unread payment/invoice indicator",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, _, err := getClient()
		if err != nil {
			return err
		}
		info, err := api.BillingUnread(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to fetch billing indicator: %w", err)
		}
		fmt.Printf("Unread billing items: %d\n", info.UnreadCount)
		return nil
	},
}
