package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConversationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "Manage stored conversations",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := openDirectory()
			if err != nil {
				return err
			}
			defer func() { _ = dir.Close() }()

			convs, err := dir.List(cmd.Context(), "chat")
			if err != nil {
				return err
			}
			for _, conv := range convs {
				title := conv.Title
				if title == "" {
					title = "(untitled)"
				}
				fmt.Printf("%s  %s  %s\n", conv.ID, conv.UpdatedAt.Format("2006-01-02 15:04"), title)
			}
			return nil
		},
	}

	rmCmd := &cobra.Command{
		Use:   "rm <id>...",
		Short: "Remove stored conversations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := openDirectory()
			if err != nil {
				return err
			}
			defer func() { _ = dir.Close() }()

			for _, id := range args {
				if err := dir.Remove(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Printf("removed %s\n", id)
			}
			return nil
		},
	}

	cmd.AddCommand(listCmd)
	cmd.AddCommand(rmCmd)
	return cmd
}
