package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	pkgllm "github.com/HerbHall/mobchat/pkg/llm"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start a conversational session. Earlier messages are sent as
history, bounded by general.max_messages_per_user.

Type '/clear' to forget the history, 'exit' or 'quit' to end the session.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.close()

		cyan := color.New(color.FgCyan, color.Bold)
		dim := color.New(color.FgHiBlack)
		green := color.New(color.FgGreen)
		red := color.New(color.FgRed)

		provider := "none"
		if p, ok := sess.module.Provider(); ok {
			provider = p.Name()
		}
		fmt.Fprintln(os.Stderr)
		cyan.Fprintf(os.Stderr, "  %s\n", sess.snap().General.BotName)
		dim.Fprintf(os.Stderr, "  Provider: %s. Type 'exit' to quit.\n\n", provider)

		convs := sess.module.Conversations()
		user := uuid.New()
		scanner := bufio.NewScanner(os.Stdin)

		for {
			green.Fprint(os.Stderr, "  you → ")
			if !scanner.Scan() {
				break
			}

			input := strings.TrimSpace(scanner.Text())
			switch input {
			case "":
				continue
			case "exit", "quit":
				return nil
			case "/clear":
				convs.Clear(user)
				dim.Fprintln(os.Stderr, "  History cleared.")
				continue
			}

			reply, err := sess.send(cmd.Context(), input, convs.History(user))
			if err != nil {
				red.Fprintf(os.Stderr, "  %v\n\n", err)
				continue
			}
			convs.Append(user,
				pkgllm.NewMessage(pkgllm.RoleUser, input),
				pkgllm.NewMessage(pkgllm.RoleAssistant, reply.Content()),
			)
			printReply(os.Stdout, sess.snap().General.BotName, reply)
			fmt.Fprintln(os.Stdout)
		}
		return scanner.Err()
	},
}
