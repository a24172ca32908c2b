package data

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/livia-app/livia/internal/agent"
	"github.com/livia-app/livia/internal/apperr"
	"github.com/livia-app/livia/internal/auth"
	"github.com/livia-app/livia/internal/cache"
	"github.com/livia-app/livia/internal/client"
	"github.com/livia-app/livia/internal/conversation"
	"github.com/livia-app/livia/internal/feedback"
	"github.com/livia-app/livia/internal/notify"
	"github.com/livia-app/livia/internal/quickreply"
	"github.com/livia-app/livia/internal/tenant"
	"github.com/livia-app/livia/internal/workflow"
)

// WorkflowFunc forwards a call through the caller's workflow proxy.
type WorkflowFunc func(ctx context.Context, endpoint string, data map[string]any) (json.RawMessage, error)

// UseFunc records one use of a quick reply on the server.
type UseFunc func(ctx context.Context, id uuid.UUID) (quickreply.QuickReply, error)

// Store groups every cached entity of the console.
type Store struct {
	Tenants       *Resource[tenant.Tenant, tenant.NewTenant, tenant.Patch]
	Agents        *Resource[agent.Agent, agent.NewAgent, agent.Patch]
	Conversations *Conversations
	Feedbacks     *Resource[feedback.Feedback, feedback.NewFeedback, feedback.Patch]
	QuickReplies  *QuickReplies
	Users         *Resource[auth.Principal, auth.NewUser, auth.Patch]

	cache    *cache.Client
	workflow WorkflowFunc
	notify   notify.Notifier
}

// NewStore wires every entity to api under the area returned by root.
func NewStore(c *cache.Client, api *client.Client, root func() string, n notify.Notifier) *Store {
	wf := func(ctx context.Context, endpoint string, data map[string]any) (json.RawMessage, error) {
		return api.Workflow(ctx, root(), endpoint, data)
	}
	qr := client.NewCollection[quickreply.QuickReply, quickreply.NewQuickReply, quickreply.Patch](api, root, "quick-replies")
	use := func(ctx context.Context, id uuid.UUID) (quickreply.QuickReply, error) {
		return qr.Post(ctx, id, "use", nil)
	}

	s := &Store{
		Tenants: NewResource(c,
			Remote[tenant.Tenant, tenant.NewTenant, tenant.Patch](client.NewCollection[tenant.Tenant, tenant.NewTenant, tenant.Patch](api, root, "tenants")),
			"Tenant", func(t tenant.Tenant) uuid.UUID { return t.ID }, n),
		Agents: NewResource(c,
			Remote[agent.Agent, agent.NewAgent, agent.Patch](client.NewCollection[agent.Agent, agent.NewAgent, agent.Patch](api, root, "agents")),
			"Agent", func(a agent.Agent) uuid.UUID { return a.ID }, n),
		Conversations: NewConversations(c,
			client.NewCollection[conversation.Conversation, conversation.NewConversation, conversation.Patch](api, root, "conversations"),
			wf, n),
		Feedbacks: NewResource(c,
			Remote[feedback.Feedback, feedback.NewFeedback, feedback.Patch](client.NewCollection[feedback.Feedback, feedback.NewFeedback, feedback.Patch](api, root, "feedbacks")),
			"Feedback", func(f feedback.Feedback) uuid.UUID { return f.ID }, n),
		QuickReplies: NewQuickReplies(c, qr, use, n),
		Users: NewResource(c,
			Remote[auth.Principal, auth.NewUser, auth.Patch](client.NewCollection[auth.Principal, auth.NewUser, auth.Patch](api, root, "users")),
			"User", func(p auth.Principal) uuid.UUID { return p.ID }, n),
		cache:    c,
		workflow: wf,
		notify:   n,
	}
	s.Tenants.bind(root)
	s.Agents.bind(root)
	s.Conversations.bind(root)
	s.Feedbacks.bind(root)
	s.QuickReplies.bind(root)
	s.Users.bind(root)
	return s
}

// TrainKnowledgeBase asks the workflow engine to retrain a tenant's
// NeuroCore knowledge base.
func (s *Store) TrainKnowledgeBase(ctx context.Context, t tenant.Tenant) error {
	data := map[string]any{"tenantId": t.ID.String()}
	if t.NeurocoreID != nil {
		data["neurocoreId"] = t.NeurocoreID.String()
	}
	if _, err := s.workflow(ctx, workflow.TrainKnowledgeBase, data); err != nil {
		ae := apperr.Normalize(err)
		report(s.notify, "Could not start training", ae)
		return ae
	}
	s.notify.Success("Knowledge base training started")
	return nil
}

// Conversations adds the AI controls and messaging to the conversation resource.
type Conversations struct {
	*Resource[conversation.Conversation, conversation.NewConversation, conversation.Patch]
	workflow WorkflowFunc
}

// NewConversations creates the conversation resource.
func NewConversations(c *cache.Client, remote Remote[conversation.Conversation, conversation.NewConversation, conversation.Patch], wf WorkflowFunc, n notify.Notifier) *Conversations {
	return &Conversations{
		Resource: NewResource(c, remote, "Conversation", func(cv conversation.Conversation) uuid.UUID { return cv.ID }, n),
		workflow: wf,
	}
}

// PauseAI stops the AI from answering in conv.
func (cs *Conversations) PauseAI(ctx context.Context, conv conversation.Conversation) error {
	return cs.setAIPaused(ctx, conv, true)
}

// ResumeAI lets the AI answer in conv again.
func (cs *Conversations) ResumeAI(ctx context.Context, conv conversation.Conversation) error {
	return cs.setAIPaused(ctx, conv, false)
}

func (cs *Conversations) setAIPaused(ctx context.Context, conv conversation.Conversation, paused bool) error {
	endpoint, verb := workflow.ResumeAI, "resumed"
	if paused {
		endpoint, verb = workflow.PauseAI, "paused"
	}
	patch := conversation.Patch{AIPaused: &paused}

	m := cache.Mutation[conversation.Conversation, json.RawMessage]{
		Keys: func(cv conversation.Conversation) []cache.Key {
			return []cache.Key{cs.ListPrefix(), cs.DetailKey(cv.ID)}
		},
		Optimistic: func(c *cache.Client, cv conversation.Conversation) {
			cache.Update(c, cs.DetailKey(cv.ID), patch.Apply)
			cache.UpdateAll(c, cs.ListPrefix(), func(_ cache.Key, items []conversation.Conversation) []conversation.Conversation {
				out := make([]conversation.Conversation, len(items))
				for i, it := range items {
					if it.ID == cv.ID {
						it = patch.Apply(it)
					}
					out[i] = it
				}
				return out
			})
		},
		Do: func(ctx context.Context, cv conversation.Conversation) (json.RawMessage, error) {
			return cs.workflow(ctx, endpoint, conversationData(cv))
		},
		OnSuccess: func(conversation.Conversation, json.RawMessage) {
			cs.notify.Success("AI " + verb)
		},
		OnError: func(_ conversation.Conversation, err *apperr.Error) {
			report(cs.notify, "Could not change AI state", err)
		},
	}
	_, _, err := m.Run(ctx, cs.cache, conv)
	return err
}

// SendMessage sends text to the contact of conv through the workflow engine.
func (cs *Conversations) SendMessage(ctx context.Context, conv conversation.Conversation, text string) error {
	if text == "" {
		return &apperr.Error{Message: "message is required", Code: "VALIDATION_ERROR", Kind: apperr.KindValidation,
			Details: []map[string]string{{"field": "message", "message": "is required"}}}
	}

	type send struct {
		conv conversation.Conversation
		text string
	}
	m := cache.Mutation[send, json.RawMessage]{
		Keys: func(in send) []cache.Key {
			return []cache.Key{cs.ListPrefix(), cs.DetailKey(in.conv.ID)}
		},
		Do: func(ctx context.Context, in send) (json.RawMessage, error) {
			data := conversationData(in.conv)
			data["message"] = in.text
			return cs.workflow(ctx, workflow.SendMessage, data)
		},
		OnSuccess: func(send, json.RawMessage) {
			cs.notify.Success("Message sent")
		},
		OnError: func(_ send, err *apperr.Error) {
			report(cs.notify, "Could not send message", err)
		},
	}
	_, _, err := m.Run(ctx, cs.cache, send{conv: conv, text: text})
	return err
}

func conversationData(cv conversation.Conversation) map[string]any {
	return map[string]any{
		"conversationId": cv.ID.String(),
		"tenantId":       cv.TenantID.String(),
		"phone":          cv.ContactPhone,
	}
}

// QuickReplies adds usage tracking to the quick reply resource.
type QuickReplies struct {
	*Resource[quickreply.QuickReply, quickreply.NewQuickReply, quickreply.Patch]
	use UseFunc
	wg  sync.WaitGroup
}

// NewQuickReplies creates the quick reply resource.
func NewQuickReplies(c *cache.Client, remote Remote[quickreply.QuickReply, quickreply.NewQuickReply, quickreply.Patch], use UseFunc, n notify.Notifier) *QuickReplies {
	return &QuickReplies{
		Resource: NewResource(c, remote, "Quick reply", func(q quickreply.QuickReply) uuid.UUID { return q.ID }, n),
		use:      use,
	}
}

// Use records one use of quick reply id without waiting for the server.
// The cached counters are only refreshed once the call settles.
func (qs *QuickReplies) Use(ctx context.Context, id uuid.UUID) {
	keys := []cache.Key{qs.ListPrefix(), qs.DetailKey(id)}
	m := cache.Mutation[uuid.UUID, quickreply.QuickReply]{
		Keys: func(uuid.UUID) []cache.Key { return keys },
		Do:   qs.use,
	}

	ctx = context.WithoutCancel(ctx)
	qs.wg.Add(1)
	go func() {
		defer qs.wg.Done()
		if _, _, err := m.Run(ctx, qs.cache, id); err != nil {
			slog.Debug("quick reply use not recorded", "id", id, "error", err)
		}
	}()
}

// Flush waits for pending usage calls.
func (qs *QuickReplies) Flush() {
	qs.wg.Wait()
}
