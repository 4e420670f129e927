package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"

	"github.com/teamspace-hq/teamspace/workspace/internal/channels"
	"github.com/teamspace-hq/teamspace/workspace/internal/execution"
	"github.com/teamspace-hq/teamspace/workspace/internal/messages"
)

type seedOptions struct {
	CompanyID   string
	WorkspaceID string
	Users       int
	Channels    int
	Threads     int
	Replies     int
	Seed        int64
}

type seedSummary struct {
	Users    []string
	Channels int
	Threads  int
	Messages int
}

var seedOpts = seedOptions{
	CompanyID:   "acme",
	WorkspaceID: "main",
	Users:       5,
	Channels:    3,
	Threads:     10,
	Replies:     4,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill a workspace with generated channels and conversations",
	Long: `Generate users, channels, threads and replies for development.

Messages go through the same services as the API, so they are indexed
for search. Requires database_url; in-memory data would vanish on exit.

Examples:
  workspace seed --company acme --threads 50
  workspace seed --seed 42 --users 3 --channels 1`,
	RunE: runSeed,
}

func init() {
	f := seedCmd.Flags()
	f.StringVar(&seedOpts.CompanyID, "company", seedOpts.CompanyID, "company id")
	f.StringVar(&seedOpts.WorkspaceID, "workspace", seedOpts.WorkspaceID, "workspace id")
	f.IntVar(&seedOpts.Users, "users", seedOpts.Users, "number of users")
	f.IntVar(&seedOpts.Channels, "channels", seedOpts.Channels, "number of channels")
	f.IntVar(&seedOpts.Threads, "threads", seedOpts.Threads, "number of threads")
	f.IntVar(&seedOpts.Replies, "replies", seedOpts.Replies, "maximum replies per thread")
	f.Int64Var(&seedOpts.Seed, "seed", 0, "random seed (0 picks one)")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return errors.New("database_url is not configured")
	}
	logger := newLogger(cfg)

	deps, err := openComponents(cmd.Context(), cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	_, chanSvc, msgSvc := deps.services()
	summary, err := seedWorkspace(cmd.Context(), seedOpts, chanSvc, msgSvc, gofakeit.New(seedOpts.Seed))
	if err != nil {
		return err
	}
	logger.Info("workspace seeded",
		slog.String("company_id", seedOpts.CompanyID),
		slog.String("workspace_id", seedOpts.WorkspaceID),
		slog.Int("channels", summary.Channels),
		slog.Int("threads", summary.Threads),
		slog.Int("messages", summary.Messages))
	fmt.Fprintf(cmd.OutOrStdout(), "users: %s\n", strings.Join(summary.Users, ", "))
	return nil
}

func seedWorkspace(ctx context.Context, opts seedOptions, chanSvc *channels.Service, msgSvc *messages.Service, faker *gofakeit.Faker) (seedSummary, error) {
	var summary seedSummary
	if opts.Users < 1 || opts.Channels < 1 {
		return summary, errors.New("seed needs at least one user and one channel")
	}

	contexts := make([]*execution.Context, 0, opts.Users)
	seen := map[string]bool{}
	for len(summary.Users) < opts.Users {
		name := strings.ToLower(faker.Username())
		if seen[name] {
			continue
		}
		seen[name] = true
		role := execution.RoleMember
		if len(summary.Users) == 0 {
			role = execution.RoleAdmin
		}
		ec, err := execution.Build(execution.RequestInfo{
			CompanyID: opts.CompanyID,
			Actor:     &execution.Actor{ID: name, Companies: map[string]execution.Role{opts.CompanyID: role}},
		})
		if err != nil {
			return summary, err
		}
		summary.Users = append(summary.Users, name)
		contexts = append(contexts, ec)
	}

	refs := make([]channels.Ref, 0, opts.Channels)
	for i := 0; i < opts.Channels; i++ {
		name := fmt.Sprintf("%s-%d", strings.ToLower(faker.BuzzWord()), i+1)
		res, err := chanSvc.Save(ctx, channels.Key{CompanyID: opts.CompanyID, WorkspaceID: opts.WorkspaceID},
			channels.Patch{Name: &name, Members: summary.Users[1:]}, contexts[0])
		if err != nil {
			return summary, fmt.Errorf("create channel %s: %w", name, err)
		}
		refs = append(refs, channels.Ref{CompanyID: opts.CompanyID, WorkspaceID: opts.WorkspaceID, ChannelID: res.Entity.ID})
		summary.Channels++
	}

	for i := 0; i < opts.Threads; i++ {
		ref := refs[faker.IntRange(0, len(refs)-1)]
		author := contexts[faker.IntRange(0, len(contexts)-1)]
		created, err := msgSvc.CreateThread(ctx, []messages.Participant{{
			Type:        messages.ParticipantChannel,
			ID:          ref.ChannelID,
			CompanyID:   ref.CompanyID,
			WorkspaceID: ref.WorkspaceID,
		}}, seedContent(faker), author)
		if err != nil {
			return summary, fmt.Errorf("create thread: %w", err)
		}
		summary.Threads++
		summary.Messages++

		for r := faker.IntRange(0, opts.Replies); r > 0; r-- {
			replier := contexts[faker.IntRange(0, len(contexts)-1)]
			if _, err := msgSvc.Reply(ctx, created.ID, seedContent(faker), replier); err != nil {
				return summary, fmt.Errorf("reply to thread %s: %w", created.ID, err)
			}
			summary.Messages++
		}
	}
	return summary, nil
}

// seedContent writes a sentence; roughly one message in four carries a file.
func seedContent(faker *gofakeit.Faker) messages.Patch {
	text := faker.Sentence(faker.IntRange(4, 12))
	patch := messages.Patch{Text: &text}
	if faker.IntRange(0, 3) == 0 {
		patch.Files = []messages.MessageFile{{Metadata: messages.FileMetadata{
			Source: "internal",
			Name:   faker.Word() + "." + faker.FileExtension(),
			Mime:   faker.FileMimeType(),
			Size:   int64(faker.IntRange(1, 5<<20)),
		}}}
	}
	return patch
}
