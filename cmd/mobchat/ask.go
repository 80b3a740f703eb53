package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/HerbHall/mobchat/internal/config"
	"github.com/HerbHall/mobchat/internal/llm"
	"github.com/HerbHall/mobchat/internal/ui"
	pkgllm "github.com/HerbHall/mobchat/pkg/llm"
	"github.com/HerbHall/mobchat/pkg/plugin"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var timeout time.Duration

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send one message and print the reply",
	Long: `Send a single message to the active provider and print the reply.

Examples:
  mobchat ask "what is a creeper?"
  mobchat ask --timeout 30s how do I tame a wolf`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.close()

		message := strings.Join(args, " ")
		reply, err := sess.send(cmd.Context(), message, nil)
		if err != nil {
			return err
		}
		printReply(cmd.OutOrStdout(), sess.snap().General.BotName, reply)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{askCmd, chatCmd} {
		c.Flags().DurationVar(&timeout, "timeout", llm.DefaultChatTimeout, "how long to wait for a reply")
	}
}

// session hosts the chat module outside the HTTP server.
type session struct {
	env    *runtimeEnv
	module *llm.Module
}

func openSession(ctx context.Context) (*session, error) {
	env, err := bootstrap(true)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m := llm.New(llm.WithStore(env.store), llm.WithChatTimeout(timeout))
	err = m.Init(ctx, plugin.Dependencies{
		Config: config.New(env.viper),
		Logger: env.logger.Named("llm"),
	})
	if err != nil {
		return nil, err
	}
	return &session{env: env, module: m}, nil
}

func (s *session) snap() *config.Snapshot { return s.env.store.Current() }

func (s *session) close() {
	_ = s.module.Stop(context.Background())
	_ = s.env.logger.Sync()
}

// send delivers message with history and waits for the reply under a
// spinner. Provider failures come back as "AI Error: ..." errors.
func (s *session) send(ctx context.Context, message string, history []pkgllm.Message) (pkgllm.Result, error) {
	provider, ok := s.module.Provider()
	if !ok {
		return pkgllm.Result{}, errors.New(s.snap().Messages.NoProvider)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sp := ui.NewSpinner("Thinking...")
	sp.Start()
	result := pkgllm.Await(ctx, provider.SendMessage(ctx, message, history))

	if pkgllm.TimedOut(ctx, result) {
		sp.Fail("timed out")
		return pkgllm.Result{}, errors.New(s.snap().Messages.Error)
	}
	if !result.OK() {
		sp.Fail(provider.Name())
		return pkgllm.Result{}, fmt.Errorf("AI Error: %s", result.ErrorMessage())
	}
	sp.Stop()
	return result, nil
}

func printReply(w io.Writer, botName string, result pkgllm.Result) {
	color.New(color.FgCyan, color.Bold).Fprintf(w, "%s → ", botName)
	fmt.Fprintln(w, result.Content())
	if verbose {
		color.New(color.FgHiBlack).Fprintf(w, "(%d tokens)\n", result.TokensUsed())
	}
}
