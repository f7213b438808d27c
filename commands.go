package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"newslettersync_go/credentials"
	"newslettersync_go/gmail"
	"newslettersync_go/htmltext"
	"newslettersync_go/linkfinder"
	"newslettersync_go/llm"
	"newslettersync_go/pipeline"
	"newslettersync_go/store"
	"newslettersync_go/syncer"
)

func newSetupCmd(a *app) *cobra.Command {
	var (
		credPath string
		noAuth   bool
	)
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Store the Google OAuth client secret encrypted and authorize Gmail access",
		RunE: func(cmd *cobra.Command, args []string) error {
			if credPath == "" {
				credPath = os.Getenv("GOOGLE_CREDENTIALS_FILE")
			}
			if credPath == "" {
				return errors.New("--credentials or GOOGLE_CREDENTIALS_FILE is required for setup")
			}

			creds, err := a.credentials()
			if err != nil {
				return err
			}
			if err := creds.SetupFromFile(credPath); err != nil {
				return err
			}
			a.log.Info().Msg("credentials stored securely, the original file can be deleted")

			if noAuth {
				return nil
			}
			oc, err := creds.OAuthConfig()
			if err != nil {
				return err
			}
			if _, err := creds.Authorize(cmd.Context(), oc); err != nil {
				return err
			}
			a.log.Info().Msg("gmail access authorized")
			return nil
		},
	}
	cmd.Flags().StringVar(&credPath, "credentials", "", "path to the OAuth client secret JSON")
	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "store the secret without running the consent flow")
	return cmd
}

func newSyncCmd(a *app) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch new newsletters, enrich and store them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if userID == "" {
				userID = a.cfg.UserID
			}
			if err := a.cfg.RequireLLM(); err != nil {
				return err
			}

			creds, err := a.credentials()
			if err != nil {
				return err
			}
			client, err := creds.Client(ctx)
			if err != nil {
				return err
			}
			src, err := gmail.NewService(ctx, client, gmail.Config{
				Query:      a.cfg.Gmail.Query,
				MaxResults: a.cfg.Gmail.MaxResults,
				BatchSize:  a.cfg.Gmail.BatchSize,
			}, a.log)
			if err != nil {
				return err
			}

			p, err := a.pipeline()
			if err != nil {
				return err
			}
			db, err := store.Open(ctx, a.cfg.Database.URL, a.log)
			if err != nil {
				return err
			}
			defer db.Close()

			s := syncer.New(src, p, db, syncer.Config{
				Senders:    a.cfg.Gmail.Senders,
				Lookback:   a.cfg.Gmail.Lookback,
				Vocabulary: a.cfg.Pipeline.Vocabulary,
			}, a.log)

			stats, err := s.Sync(ctx, userID)
			if errors.Is(err, gmail.ErrNotAuthorized) {
				return fmt.Errorf("%w (delete the stored token and run setup)", err)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to sync for (default from config)")
	return cmd
}

func newProcessCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "process FILE",
		Short: "Run the enrichment pipeline on an .eml or .html file and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.RequireLLM(); err != nil {
				return err
			}
			m, err := loadMessage(args[0])
			if err != nil {
				return err
			}
			p, err := a.pipeline()
			if err != nil {
				return err
			}

			res, err := p.Run(cmd.Context(), m.Body())
			if err != nil {
				a.log.Error().Err(err).Msg("pipeline failed, showing degraded result")
				res = syncer.Degrade(m)
			}

			return printJSON(cmd.OutOrStdout(), struct {
				ID         string `json:"id"`
				Sender     string `json:"sender"`
				SenderName string `json:"senderName,omitempty"`
				Subject    string `json:"subject"`
				ReceivedAt string `json:"receivedAt"`
				pipeline.Result
			}{
				ID:         m.ID,
				Sender:     m.Sender.Email,
				SenderName: m.Sender.Name,
				Subject:    m.Subject,
				ReceivedAt: m.ReceivedAt.Format(time.RFC3339),
				Result:     res,
			})
		},
	}
}

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show the readable text and every link candidate of an .eml or .html file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadMessage(args[0])
			if err != nil {
				return err
			}
			finder, err := linkfinder.New(a.cfg.LinkRules())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "From:    %s\nSubject: %s\n\n", m.Sender, m.Subject)

			readable, err := htmltext.Readable(m.Body())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, readable)
			fmt.Fprintln(out)

			link, ok := finder.Find(m.Body())
			if ok {
				fmt.Fprintf(out, "Heuristic link: %s\n\n", link)
			} else {
				fmt.Fprint(out, "Heuristic link: none (the model fallback would run)\n\n")
			}

			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"#", "Tier", "Signal", "Href"})
			table.SetAutoWrapText(false)
			for i, c := range finder.Candidates(m.Body()) {
				tier := c.Tier.String()
				if c.Skipped != "" {
					tier = "skipped: " + c.Skipped
				}
				table.Append([]string{strconv.Itoa(i + 1), tier, truncate(c.Signal, 50), truncate(c.Href, 70)})
			}
			table.Render()
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	var topic, userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored newsletters, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				userID = a.cfg.UserID
			}
			db, err := store.Open(cmd.Context(), a.cfg.Database.URL, a.log)
			if err != nil {
				return err
			}
			defer db.Close()

			list, err := db.ListNewsletters(cmd.Context(), userID, topic)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"ID", "Received", "Subject", "Topics", "Read"})
			for _, n := range list {
				table.Append([]string{
					n.ID,
					n.ReceivedAt.Format(time.DateOnly),
					truncate(n.Subject, 60),
					fmt.Sprint([]string(n.Topics)),
					strconv.FormatBool(n.IsRead),
				})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "only newsletters tagged with this topic")
	cmd.Flags().StringVar(&userID, "user", "", "user id (default from config)")
	return cmd
}

func newReadCmd(a *app) *cobra.Command {
	var (
		unread bool
		userID string
	)
	cmd := &cobra.Command{
		Use:   "read ID",
		Short: "Mark a stored newsletter read (or unread with --unread)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				userID = a.cfg.UserID
			}
			db, err := store.Open(cmd.Context(), a.cfg.Database.URL, a.log)
			if err != nil {
				return err
			}
			defer db.Close()
			return db.SetRead(cmd.Context(), userID, args[0], !unread)
		},
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "mark unread instead")
	cmd.Flags().StringVar(&userID, "user", "", "user id (default from config)")
	return cmd
}

func newPublishersCmd(a *app) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "publishers",
		Short: "Manage the senders whose mail is imported",
	}
	cmd.PersistentFlags().StringVar(&userID, "user", "", "user id (default from config)")

	withStore := func(cmd *cobra.Command, fn func(db *store.Store, userID string) error) error {
		if userID == "" {
			userID = a.cfg.UserID
		}
		db, err := store.Open(cmd.Context(), a.cfg.Database.URL, a.log)
		if err != nil {
			return err
		}
		defer db.Close()
		return fn(db, userID)
	}

	var name string
	add := &cobra.Command{
		Use:   "add EMAIL",
		Short: "Add a publisher by sender address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(db *store.Store, userID string) error {
				p, err := db.CreatePublisher(cmd.Context(), userID, args[0], name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", p.Email, p.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List publishers, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(db *store.Store, userID string) error {
				pubs, err := db.ListPublishers(cmd.Context(), userID)
				if err != nil {
					return err
				}
				table := tablewriter.NewWriter(cmd.OutOrStdout())
				table.SetHeader([]string{"ID", "Email", "Name", "Added"})
				for _, p := range pubs {
					table.Append([]string{p.ID, p.Email, p.Name, p.CreatedAt.Format(time.DateOnly)})
				}
				table.Render()
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm ID",
		Short: "Remove a publisher and its stored newsletters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(db *store.Store, userID string) error {
				return db.DeletePublisher(cmd.Context(), userID, args[0])
			})
		},
	}

	cmd.AddCommand(add, list, rm)
	return cmd
}

func (a *app) credentials() (*credentials.Store, error) {
	if err := a.cfg.RequireCredentials(); err != nil {
		return nil, err
	}
	return credentials.NewStore(credentials.Config{
		BaseDir:    a.cfg.Credentials.Dir,
		Passphrase: a.cfg.Credentials.Passphrase,
	}, a.log)
}

func (a *app) pipeline() (*pipeline.Pipeline, error) {
	client, err := llm.NewClient(llm.Config{
		APIKey:  a.cfg.OpenAI.APIKey,
		BaseURL: a.cfg.OpenAI.BaseURL,
		Model:   a.cfg.OpenAI.ModelSmall,
		Timeout: a.cfg.OpenAI.Timeout,
	}, a.log)
	if err != nil {
		return nil, err
	}
	finder, err := linkfinder.New(a.cfg.LinkRules())
	if err != nil {
		return nil, err
	}

	return pipeline.New(client,
		pipeline.WithFinder(finder),
		pipeline.WithVocabulary(a.cfg.Pipeline.Vocabulary),
		pipeline.WithFooterMarkers(a.cfg.Pipeline.FooterMarkers),
		pipeline.WithModels("", "", a.cfg.OpenAI.ModelLink),
		pipeline.WithLogger(a.log),
	), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
