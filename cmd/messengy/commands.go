package main

import (
	stderrors "errors"
	"fmt"
	"messengy/auth"
	"messengy/channels"
	"messengy/domain"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var errUsage = stderrors.New("invalid usage")

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "messengy",
		Short:         "Chat from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", errUsage, err)
	})
	root.AddCommand(
		registerCommand(a),
		loginCommand(a),
		logoutCommand(a),
		chatsCommand(a),
		unreadCommand(a),
		searchCommand(a),
		friendsCommand(a),
		newChatCommand(a),
		notificationsCommand(a),
		sendCommand(a),
		readCommand(a),
		watchCommand(a),
	)
	return root
}

func args(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(n)(cmd, args); err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		return nil
	}
}

func registerCommand(a *app) *cobra.Command {
	var req auth.SignUpRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := a.accounts.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := a.signIn(session); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Welcome %s\n", session.Identity.DisplayName)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "last name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func loginCommand(a *app) *cobra.Command {
	var req auth.SignInRequest
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := a.accounts.Login(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := a.signIn(session); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Signed in as %s\n", session.Identity.DisplayName)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.signOut(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Signed out")
			return nil
		},
	}
}

func chatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chats",
		Short: "List conversations, most recent first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			self, err := a.connect(ctx)
			if err != nil {
				return err
			}

			var list []domain.Channel
			var total int
			g, gCtx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				list, err = a.synchronizer.ListChannels(gCtx, self)
				return err
			})
			g.Go(func() error {
				var err error
				total, err = a.synchronizer.TotalUnread(gCtx)
				return err
			})
			if err := g.Wait(); err != nil {
				return a.stale(err)
			}

			renderChats(a.out, a.projector.ChatRows(list, self.ID, time.Now()), total)
			return nil
		},
	}
}

// stale prints the cached view when the listing failed, and still returns the error.
func (a *app) stale(err error) error {
	snapshot := a.synchronizer.Snapshot()
	if snapshot.Stale && len(snapshot.Channels) > 0 {
		if self, ok := a.provider.CurrentIdentity(); ok {
			renderWarning(a.out, "Offline, showing the last known conversations")
			renderChats(a.out, a.projector.ChatRows(snapshot.Channels, self.ID, time.Now()), 0)
		}
	}
	return err
}

func unreadCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Print the total number of unread messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.connect(cmd.Context()); err != nil {
				return err
			}
			total, err := a.synchronizer.TotalUnread(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, total)
			return nil
		},
	}
}

func searchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <text>",
		Short: "Search conversations by title, member or last message",
		Args:  args(1),
		RunE: func(cmd *cobra.Command, words []string) error {
			ctx := cmd.Context()
			self, err := a.connect(ctx)
			if err != nil {
				return err
			}
			if _, err := a.synchronizer.ListChannels(ctx, self); err != nil {
				return a.stale(err)
			}
			found, err := a.synchronizer.Search(ctx, strings.Join(words, " "))
			if err != nil {
				return err
			}
			renderChats(a.out, a.projector.ChatRows(found, self.ID, time.Now()), 0)
			return nil
		},
	}
}

func friendsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "friends",
		Short: "Suggest people to talk to",
		RunE: func(cmd *cobra.Command, _ []string) error {
			self, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			users, err := a.friends.Suggestions(cmd.Context(), self)
			if err != nil {
				return err
			}
			renderFriends(a.out, a.projector.FriendRows(users))
			return nil
		},
	}
}

func newChatCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "new-chat <user-id>",
		Short: "Start a conversation with a suggested user",
		Args:  args(1),
		RunE: func(cmd *cobra.Command, ids []string) error {
			ctx := cmd.Context()
			self, err := a.connect(ctx)
			if err != nil {
				return err
			}
			users, err := a.friends.Suggestions(ctx, self)
			if err != nil {
				return err
			}
			target, ok := lo.Find(users, func(u domain.User) bool { return u.ID == ids[0] })
			if !ok {
				return fmt.Errorf("%w: unknown user %s, see `messengy friends`", errUsage, ids[0])
			}
			channel, err := a.friends.StartChat(ctx, self, target)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Chat %s started with %s\n", channel.ID, target.Name)
			return nil
		},
	}
}

func notificationsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "notifications",
		Short: "List the latest conversations started with you",
		RunE: func(cmd *cobra.Command, _ []string) error {
			self, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := a.notifications.Recent(cmd.Context(), self, time.Now())
			if err != nil {
				return err
			}
			renderNotifications(a.out, rows)
			return nil
		},
	}
}

func sendCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "send <channel-id> <text>",
		Short: "Send a message",
		Args:  args(2),
		RunE: func(cmd *cobra.Command, parts []string) error {
			self, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			message, err := a.conversations.Send(cmd.Context(), self, parts[0], strings.Join(parts[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Sent %s\n", message.ID)
			return nil
		},
	}
}

func readCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read <channel-id>",
		Short: "Mark a conversation as read",
		Args:  args(1),
		RunE: func(cmd *cobra.Command, ids []string) error {
			self, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			return a.conversations.MarkRead(cmd.Context(), self, ids[0])
		},
	}
}

func watchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the conversation list live until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, ok := a.provider.CurrentIdentity(); !ok {
				return errSignedOut()
			}

			unsubscribe := a.synchronizer.Subscribe(channels.ListenerFunc(func(result channels.ListResult) {
				self, ok := a.provider.CurrentIdentity()
				if !ok {
					return
				}
				if result.Stale {
					renderWarning(a.out, fmt.Sprintf("Offline: %v", result.Err))
				}
				renderChats(a.out, a.projector.ChatRows(result.Channels, self.ID, time.Now()), -1)
			}))
			defer unsubscribe()

			orchestrator := a.orchestrator()
			if err := orchestrator.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return orchestrator.Stop()
		},
	}
}
