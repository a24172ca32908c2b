package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/livia-app/livia/internal/agent"
	"github.com/livia-app/livia/internal/apperr"
	"github.com/livia-app/livia/internal/auth"
	"github.com/livia-app/livia/internal/client"
	"github.com/livia-app/livia/internal/conversation"
	"github.com/livia-app/livia/internal/data"
	"github.com/livia-app/livia/internal/feedback"
	"github.com/livia-app/livia/internal/quickreply"
	"github.com/livia-app/livia/internal/route"
	"github.com/livia-app/livia/internal/tenant"
)

// area binds a command subtree to one guarded route class.
type area struct {
	c     *console
	class route.Class
	root  string
}

func (a area) run(fn func(ctx context.Context, s *data.Store) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return a.c.guarded(cmd.Context(), a.class, a.root, func(ctx context.Context) error {
			return fn(ctx, a.c.store)
		})
	}
}

func newAdminCmd(c *console) *cobra.Command {
	a := area{c: c, class: route.Admin, root: c.table.DashboardRoot(auth.RoleSuperAdmin)}
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Super admin area: tenants, agents, users",
		Args:  cobra.NoArgs,
		RunE:  summaryRun(a),
	}

	tenants := resourceCmd(a, "tenants", "Manage tenants",
		func(s *data.Store) *data.Resource[tenant.Tenant, tenant.NewTenant, tenant.Patch] {
			return s.Tenants
		})
	tenants.AddCommand(&cobra.Command{
		Use:   "train <id>",
		Short: "Retrain the tenant's NeuroCore knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.run(func(ctx context.Context, s *data.Store) error {
				t, err := s.Tenants.Get(ctx, id)
				if err != nil {
					return err
				}
				return s.TrainKnowledgeBase(ctx, t)
			})(cmd, args)
		},
	})

	cmd.AddCommand(
		tenants,
		resourceCmd(a, "agents", "Manage AI agents",
			func(s *data.Store) *data.Resource[agent.Agent, agent.NewAgent, agent.Patch] {
				return s.Agents
			}),
		conversationsCmd(a),
		resourceCmd(a, "feedbacks", "Review agent feedback",
			func(s *data.Store) *data.Resource[feedback.Feedback, feedback.NewFeedback, feedback.Patch] {
				return s.Feedbacks
			}),
		resourceCmd(a, "quick-replies", "Manage quick replies",
			func(s *data.Store) *data.Resource[quickreply.QuickReply, quickreply.NewQuickReply, quickreply.Patch] {
				return s.QuickReplies.Resource
			}),
		resourceCmd(a, "users", "Manage user accounts",
			func(s *data.Store) *data.Resource[auth.Principal, auth.NewUser, auth.Patch] {
				return s.Users
			}),
	)
	return cmd
}

func newTenantCmd(c *console) *cobra.Command {
	a := area{c: c, class: route.Tenant, root: c.table.DashboardRoot(auth.RoleTenantUser)}
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Tenant area: live chat, agents, quick replies",
		Args:  cobra.NoArgs,
		RunE:  summaryRun(a),
	}

	replies := resourceCmd(a, "quick-replies", "Manage quick replies",
		func(s *data.Store) *data.Resource[quickreply.QuickReply, quickreply.NewQuickReply, quickreply.Patch] {
			return s.QuickReplies.Resource
		})
	replies.AddCommand(&cobra.Command{
		Use:   "use <id>",
		Short: "Print a quick reply and record its use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.run(func(ctx context.Context, s *data.Store) error {
				q, err := s.QuickReplies.Get(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.out, q.Message)
				s.QuickReplies.Use(ctx, id)
				return nil
			})(cmd, args)
		},
	})

	cmd.AddCommand(
		resourceCmd(a, "agents", "Manage AI agents",
			func(s *data.Store) *data.Resource[agent.Agent, agent.NewAgent, agent.Patch] {
				return s.Agents
			}),
		conversationsCmd(a),
		resourceCmd(a, "feedbacks", "Review agent feedback",
			func(s *data.Store) *data.Resource[feedback.Feedback, feedback.NewFeedback, feedback.Patch] {
				return s.Feedbacks
			}),
		replies,
	)
	return cmd
}

func summaryRun(a area) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return a.run(func(ctx context.Context, _ *data.Store) error {
			counts, err := a.c.api.Summary(ctx, a.root)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(counts))
			for k := range counts {
				names = append(names, k)
			}
			sort.Strings(names)
			fmt.Fprintln(a.c.out, headerStyle.Render(a.root))
			for _, k := range names {
				fmt.Fprintf(a.c.out, "%-18s %d\n", k, counts[k])
			}
			return nil
		})(cmd, args)
	}
}

func conversationsCmd(a area) *cobra.Command {
	cmd := resourceCmd(a, "conversations", "Work live chat conversations",
		func(s *data.Store) *data.Resource[conversation.Conversation, conversation.NewConversation, conversation.Patch] {
			return s.Conversations.Resource
		})

	toggle := func(use, short string, pause bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return a.run(func(ctx context.Context, s *data.Store) error {
					conv, err := s.Conversations.Get(ctx, id)
					if err != nil {
						return err
					}
					if pause {
						return s.Conversations.PauseAI(ctx, conv)
					}
					return s.Conversations.ResumeAI(ctx, conv)
				})(cmd, args)
			},
		}
	}

	var message string
	send := &cobra.Command{
		Use:   "send <id>",
		Short: "Send a WhatsApp message to the contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.run(func(ctx context.Context, s *data.Store) error {
				conv, err := s.Conversations.Get(ctx, id)
				if err != nil {
					return err
				}
				return s.Conversations.SendMessage(ctx, conv, strings.TrimSpace(message))
			})(cmd, args)
		},
	}
	send.Flags().StringVarP(&message, "message", "m", "", "Message text")

	cmd.AddCommand(
		toggle("pause", "Stop the AI from answering", true),
		toggle("resume", "Let the AI answer again", false),
		send,
	)
	return cmd
}

// resourceCmd builds list/get/create/update/delete for one entity.
// Payloads are JSON or YAML, given inline or read from a file.
func resourceCmd[T any, C any, P data.Patch[T]](a area, name, short string, res func(*data.Store) *data.Resource[T, C, P]) *cobra.Command {
	cmd := &cobra.Command{Use: name, Short: short}

	var tenantFilter string
	list := &cobra.Command{
		Use:   "list",
		Short: "List " + name,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := parseScope(tenantFilter)
			if err != nil {
				return err
			}
			return a.run(func(ctx context.Context, s *data.Store) error {
				items, err := res(s).List(ctx, scope)
				if err != nil {
					return err
				}
				return printRecords(a.c.out, fmt.Sprintf("%s (%d)", name, len(items)), items)
			})(cmd, args)
		},
	}
	list.Flags().StringVar(&tenantFilter, "tenant", "", "Only records of this tenant (super admin)")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.run(func(ctx context.Context, s *data.Store) error {
				item, err := res(s).Get(ctx, id)
				if apperr.Is(err, apperr.KindNotFound) {
					fmt.Fprintln(a.c.out, dimStyle.Render("No "+name+" record "+id.String()))
					return nil
				}
				if err != nil {
					return err
				}
				return printRecords(a.c.out, name+" "+id.String(), item)
			})(cmd, args)
		},
	}

	var createInput payloadFlags
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in C
			if err := createInput.decode(a.c.in, &in); err != nil {
				return err
			}
			return a.run(func(ctx context.Context, s *data.Store) error {
				item, err := res(s).Create(ctx, in)
				if err != nil {
					return err
				}
				return printRecords(a.c.out, "created", item)
			})(cmd, args)
		},
	}
	createInput.bind(create)

	var updateInput payloadFlags
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Patch a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var patch P
			if err := updateInput.decode(a.c.in, &patch); err != nil {
				return err
			}
			return a.run(func(ctx context.Context, s *data.Store) error {
				item, err := res(s).Update(ctx, id, patch)
				if err != nil {
					return err
				}
				return printRecords(a.c.out, "updated", item)
			})(cmd, args)
		},
	}
	updateInput.bind(update)

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.run(func(ctx context.Context, s *data.Store) error {
				return res(s).Delete(ctx, id)
			})(cmd, args)
		},
	}

	cmd.AddCommand(list, get, create, update, del)
	return cmd
}

type payloadFlags struct {
	inline string
	file   string
}

func (p *payloadFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&p.inline, "data", "d", "", "Payload as JSON or YAML")
	cmd.Flags().StringVarP(&p.file, "file", "f", "", "Read the payload from a file ('-' for stdin)")
}

func (p *payloadFlags) decode(stdin io.Reader, v any) error {
	var raw []byte
	switch {
	case p.inline != "" && p.file != "":
		return fmt.Errorf("use either --data or --file")
	case p.inline != "":
		raw = []byte(p.inline)
	case p.file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("reading payload: %w", err)
		}
		raw = b
	case p.file != "":
		b, err := os.ReadFile(p.file)
		if err != nil {
			return fmt.Errorf("reading payload: %w", err)
		}
		raw = b
	default:
		return fmt.Errorf("a payload is required (--data or --file)")
	}
	if err := yaml.UnmarshalStrict(raw, v); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	return nil
}

func printRecords(w io.Writer, title string, v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("rendering output: %w", err)
	}
	fmt.Fprintln(w, headerStyle.Render(title))
	_, err = w.Write(out)
	return err
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseScope(tenantID string) (client.Scope, error) {
	if tenantID == "" {
		return client.Scope{}, nil
	}
	id, err := parseID(tenantID)
	if err != nil {
		return client.Scope{}, err
	}
	return client.Scope{TenantID: &id}, nil
}
