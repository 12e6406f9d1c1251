package main

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sadopc/sqlsense/internal/completion"
	"github.com/sadopc/sqlsense/internal/introspect"
	"github.com/sadopc/sqlsense/internal/ui/repl"
)

// queryArgs holds the statement text and cursor of complete and inspect.
type queryArgs struct {
	cursor int
	dsn    string
}

func (q *queryArgs) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&q.cursor, "cursor", -1, "Cursor byte offset (default: end of text)")
	cmd.Flags().StringVar(&q.dsn, "dsn", "", "Connection DSN")
}

// text joins args into the statement, or reads it from stdin for "-".
func (q *queryArgs) text(cmd *cobra.Command, args []string) (string, int, error) {
	text := strings.Join(args, " ")
	if text == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", 0, fmt.Errorf("read stdin: %w", err)
		}
		text = strings.TrimSuffix(string(data), "\n")
	}
	cursor := q.cursor
	if cursor < 0 || cursor > len(text) {
		cursor = len(text)
	}
	return text, cursor, nil
}

func (q *queryArgs) dsnArgs() []string {
	if q.dsn == "" {
		return nil
	}
	return []string{q.dsn}
}

func newCompleteCmd(opts *connOptions) *cobra.Command {
	q := &queryArgs{}
	cmd := &cobra.Command{
		Use:   "complete [flags] SQL...",
		Short: "Print completions for SQL at the cursor",
		Long: `Print one suggestion per line as KIND<TAB>TEXT<TAB>START:END, where
START:END is the byte span the suggestion replaces. Pass "-" to read SQL
from standard input.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, cursor, err := q.text(cmd, args)
			if err != nil {
				return err
			}
			s, err := openSession(cmd, opts, q.dsnArgs(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()
			s.mgr.Wait()

			writeSuggestions(cmd.OutOrStdout(), s.mgr.GetCompletions(text, cursor))
			return nil
		},
	}
	q.bind(cmd)
	return cmd
}

func writeSuggestions(w io.Writer, suggestions []completion.Suggestion) {
	for _, s := range suggestions {
		fmt.Fprintf(w, "%s\t%s\t%d:%d\n", s.Kind, s.Text, s.Start, s.End)
	}
}

func newInspectCmd(opts *connOptions) *cobra.Command {
	q := &queryArgs{}
	var explain bool
	cmd := &cobra.Command{
		Use:   "inspect [flags] SQL...",
		Short: "Classify the identifier under the cursor",
		Long: `Print KIND<TAB>WORD<TAB>DATABASE<TAB>TABLE for the identifier under the
cursor, or with --explain a description of it including sample rows.
Exits non-zero when the identifier is not recognised.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, cursor, err := q.text(cmd, args)
			if err != nil {
				return err
			}
			s, err := openSession(cmd, opts, q.dsnArgs(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()
			s.mgr.Wait()

			if explain {
				out, ok := s.mgr.Explain(cmd.Context(), text, cursor)
				if !ok {
					return fmt.Errorf("nothing recognised at offset %d", cursor)
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
				return nil
			}

			cls, ok := s.mgr.GetIntrospection(text, cursor)
			if !ok {
				return fmt.Errorf("nothing recognised at offset %d", cursor)
			}
			writeClassification(cmd.OutOrStdout(), cls)
			return nil
		},
	}
	q.bind(cmd)
	cmd.Flags().BoolVarP(&explain, "explain", "e", false, "Describe the identifier")
	return cmd
}

func writeClassification(w io.Writer, cls introspect.Classification) {
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", cls.Kind, cls.Word, cls.Database, cls.Table)
}

func runREPL(cmd *cobra.Command, opts *connOptions, args []string) error {
	logOut, err := replLog()
	if err != nil {
		logOut = nopCloser{io.Discard}
	}
	defer logOut.Close()

	s, err := openSession(cmd, opts, args, logOut)
	if err != nil {
		return err
	}
	defer s.Close()

	model := repl.New(s.mgr,
		repl.WithFavorites(s.favs),
		repl.WithAudit(s.audit),
		repl.WithSessions(s.reg, s.id, s.open),
		repl.WithFormat(s.cfg.Output.TableFormat),
	)
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("error running REPL: %w", err)
	}
	return nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
