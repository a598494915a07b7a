// Package storagetest holds behaviour suites shared by the repository adapters.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// Conversations exercises a ports.ConversationRepository.
func Conversations(t *testing.T, newRepo func(t *testing.T) ports.ConversationRepository) {
	ctx := context.Background()

	t.Run("create get save", func(t *testing.T) {
		repo := newRepo(t)
		conv := entities.NewConversation("s-1", entities.DomainBilling, base)
		conv.Facts["rut"] = "12.345.678-5"
		conv.Facts["tiene_boleta"] = true
		conv.Metadata["origin"] = "web"
		require.NoError(t, repo.Create(ctx, conv))

		assert.ErrorIs(t, repo.Create(ctx, conv), ports.ErrSessionExists)

		got, err := repo.Get(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, entities.StageStarted, got.Stage)
		assert.Equal(t, "12.345.678-5", got.Facts.String("rut"))
		v, ok := got.Facts.Bool("tiene_boleta")
		assert.True(t, ok && v)
		assert.Equal(t, "web", got.Metadata["origin"])

		got.Stage = entities.StageComparing
		got.RecordID = "b4"
		got.LinkedRecordIDs = []string{"b4", "b3"}
		got.Awaiting = "rut"
		got.UpdatedAt = base.Add(time.Minute)
		require.NoError(t, repo.Save(ctx, got))

		again, err := repo.Get(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, entities.StageComparing, again.Stage)
		assert.Equal(t, []string{"b4", "b3"}, again.LinkedRecordIDs)
		assert.Equal(t, "rut", again.Awaiting)
		assert.True(t, again.UpdatedAt.Equal(base.Add(time.Minute)))
		assert.Nil(t, again.EndedAt)
	})

	t.Run("missing session", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, "nope")
		assert.ErrorIs(t, err, ports.ErrSessionNotFound)
		assert.ErrorIs(t, repo.Save(ctx, entities.NewConversation("nope", entities.DomainBilling, base)), ports.ErrSessionNotFound)
	})

	t.Run("finish records end time", func(t *testing.T) {
		repo := newRepo(t)
		conv := entities.NewConversation("s-2", entities.DomainEmergency, base)
		require.NoError(t, repo.Create(ctx, conv))
		conv.Finish(entities.StageClosed, base.Add(time.Hour))
		require.NoError(t, repo.Save(ctx, conv))

		got, err := repo.Get(ctx, "s-2")
		require.NoError(t, err)
		require.NotNil(t, got.EndedAt)
		assert.True(t, got.EndedAt.Equal(base.Add(time.Hour)))
	})

	t.Run("turns keep insertion order", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, entities.NewConversation("s-3", entities.DomainBilling, base)))
		for i, content := range []string{"uno", "dos", "tres", "cuatro"} {
			turn := &entities.Turn{SessionID: "s-3", Role: entities.RoleUser, Content: content,
				Metadata: map[string]any{"i": i}, CreatedAt: base.Add(time.Duration(i) * time.Second)}
			require.NoError(t, repo.AppendTurn(ctx, turn))
			assert.NotZero(t, turn.ID)
		}

		last, err := repo.RecentTurns(ctx, "s-3", 2)
		require.NoError(t, err)
		require.Len(t, last, 2)
		assert.Equal(t, "tres", last[0].Content)
		assert.Equal(t, "cuatro", last[1].Content)
		assert.Less(t, last[0].ID, last[1].ID)

		all, err := repo.RecentTurns(ctx, "s-3", 0)
		require.NoError(t, err)
		assert.Len(t, all, 4)
		assert.Equal(t, "uno", all[0].Content)
	})

	t.Run("turn for unknown session", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.AppendTurn(ctx, &entities.Turn{SessionID: "ghost", Role: entities.RoleUser, Content: "x", CreatedAt: base})
		assert.ErrorIs(t, err, ports.ErrSessionNotFound)
	})

	t.Run("list idle skips terminal", func(t *testing.T) {
		repo := newRepo(t)
		old := entities.NewConversation("old", entities.DomainBilling, base)
		fresh := entities.NewConversation("fresh", entities.DomainBilling, base.Add(2*time.Hour))
		closed := entities.NewConversation("closed", entities.DomainBilling, base)
		closed.Finish(entities.StageClosed, base)
		for _, c := range []*entities.Conversation{old, fresh, closed} {
			require.NoError(t, repo.Create(ctx, c))
		}

		idle, err := repo.ListIdle(ctx, base.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, idle, 1)
		assert.Equal(t, "old", idle[0].SessionID)
	})
}

func reading(v float64) *float64 { return &v }

// Invoices exercises a ports.InvoiceRepository.
func Invoices(t *testing.T, newRepo func(t *testing.T) ports.InvoiceRepository) {
	ctx := context.Background()
	due := base.AddDate(0, 0, 10)

	seed := func(t *testing.T, repo ports.InvoiceRepository) {
		for i, period := range []string{"2024-12", "2025-02", "2025-01"} {
			inv := &entities.Invoice{
				ID:              "b" + period,
				CustomerName:    "José Pérez Muñoz",
				RUT:             "12.345.678-5",
				IssueDate:       base.AddDate(0, -i, 0),
				Period:          period,
				Consumption:     float64(10 + i),
				Amount:          18500,
				PreviousReading: reading(100),
				CurrentReading:  reading(112.5),
				DueDate:         &due,
				Status:          entities.PaymentPending,
				CreatedAt:       base,
				UpdatedAt:       base,
			}
			require.NoError(t, repo.Save(ctx, inv))
		}
		require.NoError(t, repo.Save(ctx, &entities.Invoice{
			ID: "other", CustomerName: "Ana Rojas", RUT: "9.876.543-3", Period: "2025-02",
			IssueDate: base, Status: entities.PaymentPaid, CreatedAt: base, UpdatedAt: base,
		}))
	}

	t.Run("most recent first", func(t *testing.T) {
		repo := newRepo(t)
		seed(t, repo)

		all, err := repo.FindAllByKey(ctx, "12.345.678-5", 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"2025-02", "2025-01", "2024-12"}, []string{all[0].Period, all[1].Period, all[2].Period})

		two, err := repo.FindAllByKey(ctx, "12.345.678-5", 2)
		require.NoError(t, err)
		assert.Len(t, two, 2)

		res, err := repo.FindByKey(ctx, "12.345.678-5")
		require.NoError(t, err)
		require.True(t, res.Found)
		assert.Equal(t, "b2025-02", res.Invoice.ID)
	})

	t.Run("unknown rut", func(t *testing.T) {
		repo := newRepo(t)
		seed(t, repo)
		res, err := repo.FindByKey(ctx, "1.111.111-1")
		require.NoError(t, err)
		assert.False(t, res.Found)
		assert.Nil(t, res.Invoice)
	})

	t.Run("get keeps optional fields", func(t *testing.T) {
		repo := newRepo(t)
		seed(t, repo)
		inv, err := repo.Get(ctx, "b2025-01")
		require.NoError(t, err)
		require.NotNil(t, inv.DueDate)
		assert.True(t, inv.DueDate.Equal(due))
		assert.InDelta(t, 12.5, inv.MeterConsumption(), 1e-9)
		assert.Equal(t, int64(18500), inv.Amount)

		other, err := repo.Get(ctx, "other")
		require.NoError(t, err)
		assert.Nil(t, other.DueDate)
		assert.Nil(t, other.PreviousReading)

		_, err = repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("name ignores case and accents", func(t *testing.T) {
		repo := newRepo(t)
		seed(t, repo)
		for _, q := range []string{"jose perez", "JOSÉ", "munoz"} {
			got, err := repo.FindByName(ctx, q)
			require.NoError(t, err)
			assert.Len(t, got, 3, q)
		}
		none, err := repo.FindByName(ctx, "   ")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("same rut and period replaces", func(t *testing.T) {
		repo := newRepo(t)
		seed(t, repo)
		require.NoError(t, repo.Save(ctx, &entities.Invoice{
			ID: "reissued", CustomerName: "José Pérez Muñoz", RUT: "12.345.678-5", Period: "2025-02",
			IssueDate: base, Amount: 20000, Status: entities.PaymentPending, CreatedAt: base, UpdatedAt: base,
		}))
		all, err := repo.FindAllByKey(ctx, "12.345.678-5", 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "reissued", all[0].ID)
	})
}

// Tickets exercises a ports.TicketRepository.
func Tickets(t *testing.T, newRepo func(t *testing.T) ports.TicketRepository) {
	ctx := context.Background()
	running := true

	t.Run("create update get", func(t *testing.T) {
		repo := newRepo(t)
		ticket := entities.NewTicket("t-1", entities.EmergencyFacts{
			Type: entities.EmergencyLeak, Sector: entities.SectorLaMorera, ReporterName: "Ana",
			Address: "Los Aromos 12", Phone: "+56912345678", Description: "fuga en la vereda",
			MeterRunning: &running,
		}, base)
		require.NoError(t, repo.Create(ctx, ticket))

		got, err := repo.Get(ctx, "t-1")
		require.NoError(t, err)
		assert.Equal(t, entities.PriorityHigh, got.Priority)
		require.NotNil(t, got.MeterRunning)
		assert.True(t, *got.MeterRunning)
		assert.Nil(t, got.WantsContact)

		wants := false
		got.WantsContact = &wants
		got.UpdatedAt = base.Add(time.Minute)
		require.NoError(t, repo.Update(ctx, got))

		again, err := repo.Get(ctx, "t-1")
		require.NoError(t, err)
		require.NotNil(t, again.WantsContact)
		assert.False(t, *again.WantsContact)
	})

	t.Run("missing ticket", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, "nope")
		assert.ErrorIs(t, err, ports.ErrNotFound)
		assert.ErrorIs(t, repo.Update(ctx, &entities.Ticket{ID: "nope"}), ports.ErrNotFound)
	})
}
