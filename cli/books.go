package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shelf-labs/shelfsync/core"
)

// NewBooksCmd creates the "books" subcommand group.
func NewBooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Browse and mutate the book catalog",
	}

	cmd.AddCommand(newBooksListCmd())
	cmd.AddCommand(newBooksAddCmd())
	cmd.AddCommand(newBooksUpdateCmd())
	cmd.AddCommand(newBooksRmCmd())
	cmd.AddCommand(newBooksBorrowCmd())
	cmd.AddCommand(newBooksFavCmd())

	return cmd
}

func newBooksListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books, optionally filtered",
		Args:  cobra.NoArgs,
		RunE:  runBooksList,
	}

	cmd.Flags().String("category", "", "Filter by category")
	cmd.Flags().String("author", "", "Filter by author")
	cmd.Flags().String("name", "", "Filter by title")
	cmd.Flags().String("status", "", "Filter by status (AVAILABLE or TAKEN)")

	return cmd
}

func listFilterFromFlags(cmd *cobra.Command) core.Filter {
	var f core.Filter
	f.Category, _ = cmd.Flags().GetString("category")
	f.Author, _ = cmd.Flags().GetString("author")
	f.Name, _ = cmd.Flags().GetString("name")
	status, _ := cmd.Flags().GetString("status")
	f.Status = core.BookStatus(status)
	return f
}

func runBooksList(cmd *cobra.Command, _ []string) error {
	filter := listFilterFromFlags(cmd)

	app, cleanup, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := app.Books().Search(cmd.Context(), filter); err != nil {
		return exitError(exitRuntime, "%v", err)
	}

	books := app.Books().Books()
	if len(books) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No books found")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tCATEGORY\tSTATUS")
	for _, b := range books {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", b.ID, b.Title, b.Author, b.Category, b.Status)
	}
	return w.Flush()
}

func bookDraftFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "Book title")
	cmd.Flags().String("author", "", "Book author")
	cmd.Flags().String("category", "", "Book category")
	cmd.Flags().String("image", "", "Image reference path")
}

func bookDraftFromFlags(cmd *cobra.Command) core.Book {
	var b core.Book
	b.Title, _ = cmd.Flags().GetString("title")
	b.Author, _ = cmd.Flags().GetString("author")
	b.Category, _ = cmd.Flags().GetString("category")
	b.ImageRef, _ = cmd.Flags().GetString("image")
	return b
}

func newBooksAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			draft := bookDraftFromFlags(cmd)
			if draft.Title == "" {
				return exitError(exitUsage, "--title is required")
			}

			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := app.Books().Create(cmd.Context(), draft); err != nil {
				return exitError(exitRuntime, "%v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %q\n", draft.Title)
			return nil
		},
	}

	bookDraftFlags(cmd)
	return cmd
}

func newBooksUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft := bookDraftFromFlags(cmd)
			status, _ := cmd.Flags().GetString("status")
			draft.Status = core.BookStatus(status)

			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := app.Books().Update(cmd.Context(), args[0], draft); err != nil {
				return exitError(exitRuntime, "%v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
			return nil
		},
	}

	bookDraftFlags(cmd)
	cmd.Flags().String("status", string(core.StatusAvailable), "Book status (AVAILABLE or TAKEN)")
	return cmd
}

func newBooksRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := app.Books().Delete(cmd.Context(), args[0]); err != nil {
				return exitError(exitRuntime, "%v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

func newBooksFavCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fav <id>",
		Short: "Toggle a book's favorite flag and list favorites",
		Long:  "Favorites are a client-side flag only; they reset when the listing is refetched.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := app.Books().Refresh(cmd.Context()); err != nil {
				return exitError(exitRuntime, "%v", err)
			}
			app.Books().ToggleFavorite(args[0])

			favorites := app.Books().Favorites()
			if len(favorites) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No favorites")
				return nil
			}
			for _, b := range favorites {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", b.ID, b.Title)
			}
			return nil
		},
	}
}

func newBooksBorrowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "borrow <id>",
		Short: "Borrow a book as the logged-in user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := app.Books().Borrow(cmd.Context(), args[0]); err != nil {
				return exitError(exitRuntime, "%v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Borrowed %s\n", args[0])
			return nil
		},
	}
}
