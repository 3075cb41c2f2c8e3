package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/parley/pkg/completion"
	"github.com/go-go-golems/parley/pkg/controller"
	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/directory"
	"github.com/go-go-golems/parley/pkg/events"
)

func newChatCommand() *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), conversationID)
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Resume an existing conversation by ID")
	return cmd
}

func runChat(ctx context.Context, conversationID string) error {
	if cfg.APIKey == "" {
		return errors.New("no API key configured (set PARLEY_API_KEY or api-key in the settings file)")
	}

	dir, err := openDirectory()
	if err != nil {
		return err
	}
	defer func() { _ = dir.Close() }()

	router, err := events.NewEventRouter()
	if err != nil {
		return errors.Wrap(err, "failed to create event router")
	}
	defer func() { _ = router.Close() }()

	router.AddHandler("chat", "chat", events.PrinterFunc("", os.Stdout))
	watermillSink := events.NewWatermillSink(router.Publisher, "chat")

	svc := completion.NewOpenAIService(cfg.APIKey, cfg.BaseURL,
		completion.WithDefaultModel(cfg.Model))

	c := controller.NewController(svc,
		controller.WithDirectory(dir),
		controller.WithModel(cfg.Model),
		controller.WithThinking(cfg.ThinkingEnabled),
		controller.WithEventSinks(watermillSink),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg := errgroup.Group{}
	eg.Go(func() error {
		defer cancel()
		return router.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()
		<-router.Running()

		if conversationID != "" {
			if err := c.OpenConversation(ctx, conversationID); err != nil {
				return err
			}
			printHistory(c.Store().List())
		} else {
			if _, err := c.StartConversation(ctx, ""); err != nil {
				return err
			}
		}
		return repl(ctx, c)
	})

	return eg.Wait()
}

// repl reads one line at a time; plain lines are sent as user messages,
// /-prefixed lines are meta-commands. Each turn blocks until its stream
// has terminated.
func repl(ctx context.Context, c *controller.Controller) error {
	fmt.Println("Type a message, or /list, /regen [N], /edit N text, /quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			c.Wait()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var err error
		switch {
		case line == "/quit" || line == "/exit":
			c.Wait()
			return nil
		case line == "/list":
			printHistory(c.Store().List())
			continue
		case strings.HasPrefix(line, "/regen"):
			err = replRegenerate(ctx, c, strings.TrimSpace(strings.TrimPrefix(line, "/regen")))
		case strings.HasPrefix(line, "/edit "):
			err = replEdit(ctx, c, strings.TrimPrefix(line, "/edit "))
		case strings.HasPrefix(line, "/"):
			fmt.Printf("unknown command %q\n", line)
			continue
		default:
			err = c.Send(ctx, line)
		}

		if err != nil {
			fmt.Printf("error: %s\n", err)
			continue
		}
		c.Wait()
		fmt.Println()
	}
}

func replRegenerate(ctx context.Context, c *controller.Controller, arg string) error {
	index := c.Store().Len()
	if arg != "" {
		parsed, err := strconv.Atoi(arg)
		if err != nil {
			return errors.Wrapf(err, "invalid index %q", arg)
		}
		index = parsed
	}
	return c.Regenerate(ctx, index)
}

func replEdit(ctx context.Context, c *controller.Controller, arg string) error {
	parts := strings.SplitN(strings.TrimSpace(arg), " ", 2)
	if len(parts) != 2 {
		return errors.New("usage: /edit N new text")
	}
	index, err := strconv.Atoi(parts[0])
	if err != nil {
		return errors.Wrapf(err, "invalid index %q", parts[0])
	}
	return c.Edit(ctx, index, parts[1])
}

func printHistory(msgs []*conversation.Message) {
	for i, msg := range msgs {
		fmt.Printf("[%d] %s\n", i, msg.View())
	}
}

func openDirectory() (*directory.SQLiteDirectory, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}
	options := []directory.SQLiteOption{}
	if cfg.APIKey != "" {
		options = append(options,
			directory.WithTitler(completion.NewTitleGenerator(cfg.APIKey, cfg.BaseURL, cfg.Model)))
	}
	dir, err := directory.NewSQLiteDirectory(cfg.DatabasePath, options...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open conversation database")
	}
	log.Debug().Str("path", cfg.DatabasePath).Msg("opened conversation database")
	return dir, nil
}
