// Package memory provides in-process repositories for tests and ephemeral runs.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/0xcro3dile/coopchat-go/internal/adapters/storage"
	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

// Conversations implements ports.ConversationRepository.
type Conversations struct {
	mu     sync.RWMutex
	convs  map[string]entities.Conversation
	turns  map[string][]entities.Turn
	nextID int64
}

// NewConversations creates an empty repository.
func NewConversations() *Conversations {
	return &Conversations{
		convs: make(map[string]entities.Conversation),
		turns: make(map[string][]entities.Turn),
	}
}

func (r *Conversations) Create(ctx context.Context, conv *entities.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.convs[conv.SessionID]; ok {
		return ports.ErrSessionExists
	}
	r.convs[conv.SessionID] = copyConversation(conv)
	return nil
}

func (r *Conversations) Get(ctx context.Context, sessionID string) (*entities.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.convs[sessionID]
	if !ok {
		return nil, ports.ErrSessionNotFound
	}
	cp := copyConversation(&c)
	return &cp, nil
}

func (r *Conversations) Save(ctx context.Context, conv *entities.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.convs[conv.SessionID]; !ok {
		return ports.ErrSessionNotFound
	}
	r.convs[conv.SessionID] = copyConversation(conv)
	return nil
}

func (r *Conversations) AppendTurn(ctx context.Context, turn *entities.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.convs[turn.SessionID]; !ok {
		return ports.ErrSessionNotFound
	}
	r.nextID++
	turn.ID = r.nextID
	stored := *turn
	stored.Metadata = copyMap(turn.Metadata)
	r.turns[turn.SessionID] = append(r.turns[turn.SessionID], stored)
	return nil
}

func (r *Conversations) RecentTurns(ctx context.Context, sessionID string, n int) ([]entities.Turn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	turns := r.turns[sessionID]
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return append([]entities.Turn(nil), turns...), nil
}

func (r *Conversations) ListIdle(ctx context.Context, before time.Time) ([]entities.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []entities.Conversation
	for _, c := range r.convs {
		if !c.Stage.IsTerminal() && c.UpdatedAt.Before(before) {
			out = append(out, copyConversation(&c))
		}
	}
	return out, nil
}

func copyConversation(c *entities.Conversation) entities.Conversation {
	cp := *c
	cp.Facts = c.Facts.Clone()
	cp.LinkedRecordIDs = append([]string(nil), c.LinkedRecordIDs...)
	cp.Metadata = copyMap(c.Metadata)
	if c.EndedAt != nil {
		t := *c.EndedAt
		cp.EndedAt = &t
	}
	return cp
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Invoices implements ports.InvoiceRepository.
type Invoices struct {
	mu   sync.RWMutex
	byID map[string]entities.Invoice
}

// NewInvoices creates a repository seeded with invoices.
func NewInvoices(seed ...entities.Invoice) *Invoices {
	r := &Invoices{byID: make(map[string]entities.Invoice)}
	for _, inv := range seed {
		r.byID[inv.ID] = inv
	}
	return r
}

func (r *Invoices) FindByKey(ctx context.Context, rut string) (entities.LookupResult, error) {
	invoices, err := r.FindAllByKey(ctx, rut, 0)
	if err != nil {
		return entities.NotFound(), err
	}
	return entities.Found(invoices), nil
}

func (r *Invoices) FindAllByKey(ctx context.Context, rut string, limit int) ([]entities.Invoice, error) {
	r.mu.RLock()
	var out []entities.Invoice
	for _, inv := range r.byID {
		if inv.RUT == rut {
			out = append(out, inv)
		}
	}
	r.mu.RUnlock()

	storage.SortRecent(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Invoices) FindByName(ctx context.Context, name string) ([]entities.Invoice, error) {
	needle := storage.FoldName(name)
	if needle == "" {
		return nil, nil
	}
	r.mu.RLock()
	var out []entities.Invoice
	for _, inv := range r.byID {
		if strings.Contains(storage.FoldName(inv.CustomerName), needle) {
			out = append(out, inv)
		}
	}
	r.mu.RUnlock()
	storage.SortRecent(out)
	return out, nil
}

func (r *Invoices) Get(ctx context.Context, id string) (*entities.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.byID[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &inv, nil
}

// Save inserts or replaces an invoice. Another invoice with the same
// customer and period is replaced.
func (r *Invoices) Save(ctx context.Context, inv *entities.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.byID {
		if id != inv.ID && existing.RUT == inv.RUT && existing.Period == inv.Period {
			delete(r.byID, id)
		}
	}
	r.byID[inv.ID] = *inv
	return nil
}

// Tickets implements ports.TicketRepository.
type Tickets struct {
	mu   sync.RWMutex
	byID map[string]entities.Ticket
}

// NewTickets creates an empty repository.
func NewTickets() *Tickets {
	return &Tickets{byID: make(map[string]entities.Ticket)}
}

func (r *Tickets) Create(ctx context.Context, t *entities.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[t.ID] = *t
	return nil
}

func (r *Tickets) Update(ctx context.Context, t *entities.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[t.ID]; !ok {
		return ports.ErrNotFound
	}
	r.byID[t.ID] = *t
	return nil
}

func (r *Tickets) Get(ctx context.Context, id string) (*entities.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &t, nil
}
