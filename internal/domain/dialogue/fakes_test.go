package dialogue

import (
	"context"
	"errors"
	"time"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type fakeLLM struct {
	replies []string
	err     error
	prompts []string
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", errors.New("no reply scripted")
	}
	r := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return r, nil
}

type fakeKnowledge struct {
	text string
}

func (f fakeKnowledge) BuildWithSources(ctx context.Context, query string, maxChars int) (string, []entities.QueryResult) {
	return f.text, []entities.QueryResult{{Chunk: entities.Chunk{ID: "k1", Content: f.text}}}
}

type fakeInvoices struct {
	byRUT map[string][]entities.Invoice
	err   error
	calls int
}

func (f *fakeInvoices) FindByKey(ctx context.Context, rut string) (entities.LookupResult, error) {
	inv, err := f.FindAllByKey(ctx, rut, 0)
	return entities.Found(inv), err
}

func (f *fakeInvoices) FindAllByKey(ctx context.Context, rut string, limit int) ([]entities.Invoice, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := f.byRUT[rut]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeInvoices) FindByName(ctx context.Context, name string) ([]entities.Invoice, error) {
	return nil, nil
}

func (f *fakeInvoices) Get(ctx context.Context, id string) (*entities.Invoice, error) {
	for _, list := range f.byRUT {
		for i := range list {
			if list[i].ID == id {
				inv := list[i]
				return &inv, nil
			}
		}
	}
	return nil, ports.ErrNotFound
}

func (f *fakeInvoices) Save(ctx context.Context, inv *entities.Invoice) error {
	if f.byRUT == nil {
		f.byRUT = map[string][]entities.Invoice{}
	}
	f.byRUT[inv.RUT] = append(f.byRUT[inv.RUT], *inv)
	return nil
}

type fakeTickets struct {
	created []*entities.Ticket
	updated []*entities.Ticket
}

func (f *fakeTickets) Create(ctx context.Context, t *entities.Ticket) error {
	f.created = append(f.created, t)
	return nil
}

func (f *fakeTickets) Update(ctx context.Context, t *entities.Ticket) error {
	f.updated = append(f.updated, t)
	return nil
}

func (f *fakeTickets) Get(ctx context.Context, id string) (*entities.Ticket, error) {
	for _, t := range f.created {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ports.ErrNotFound
}

func dueIn(days int) *time.Time {
	d := testNow.AddDate(0, 0, days)
	return &d
}

func invoice(id, period string, consumption float64, amount int64) entities.Invoice {
	return entities.Invoice{
		ID:           id,
		CustomerName: "María González",
		RUT:          "12345678-9",
		IssueDate:    time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC),
		Period:       period,
		Consumption:  consumption,
		Amount:       amount,
		DueDate:      dueIn(10),
		Status:       entities.PaymentPending,
	}
}
