package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/iliyamo/library-catalog/internal/database"
	"github.com/iliyamo/library-catalog/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newInitCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create empty snapshot files that do not exist yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := database.Init(o.paths())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(created) == 0 {
				fmt.Fprintln(out, "nothing to do, snapshots already exist")
				return nil
			}
			for _, p := range created {
				fmt.Fprintf(out, "created %s\n", p)
			}
			return nil
		},
	}
}

func newBooksCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "books",
		Short: "List books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			books := db.Books.List(cmd.Context())
			if o.jsonOutput {
				return printJSON(cmd.OutOrStdout(), books)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tLOANEE\tLOAN DATE")
			for _, b := range books {
				status := "available"
				if b.IsLoanedOut {
					status = "loaned"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", b.ID, b.Field("title"), status, b.Loanee, b.LoanDate)
			}
			return tw.Flush()
		},
	}
}

func newUsersCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			users := db.Users.List(cmd.Context())
			if o.jsonOutput {
				return printJSON(cmd.OutOrStdout(), users)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL")
			for _, u := range users {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", u.ID, u.Username, u.Email)
			}
			return tw.Flush()
		},
	}
}

func newUserAddCmd(o *options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "useradd <username>",
		Short: "Register a user (stop the server first)",
		Long: `Register a user by rewriting the users snapshot directly.  The password is
read without echo from the terminal, or from the first line of stdin.

Run this only while the catalog server is stopped.  A running server keeps
its own copy of the users and its next write replaces the file, dropping
any user added here.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}
			db, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			user, err := db.Users.Create(cmd.Context(), model.UserDraft{Username: args[0], Email: email, Password: password})
			if err != nil {
				return err
			}
			if o.jsonOutput {
				return printJSON(cmd.OutOrStdout(), user)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s)\n", user.ID, user.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address (required)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// readPassword prompts without echo when stdin is a terminal and otherwise
// reads the first line of stdin.
func readPassword(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
