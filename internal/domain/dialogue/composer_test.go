package dialogue

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

func newTestComposer(llm ports.LLMService) *Composer {
	return NewComposer(llm, fakeKnowledge{text: "INFORMACIÓN RELEVANTE"}, ComposerOptions{}, fixedClock, nil)
}

func TestInvoiceSummary_AmountCountsDaysUntilDue(t *testing.T) {
	c := newTestComposer(nil)
	inv := invoice("b1", "2025-02", 20, 18500)

	reply := c.InvoiceSummary(entities.IntentAmount, &inv)

	assert.Contains(t, reply, "$18.500")
	assert.Contains(t, reply, "**10 días**")
	assert.Contains(t, reply, "**Fecha Vencimiento:** 11/03/2025")
	assert.Contains(t, reply, "**Fecha Emisión:** 20/02/2025")
	assert.True(t, strings.HasSuffix(reply, BillingFollowUp))
}

func TestInvoiceSummary_OverdueAlert(t *testing.T) {
	c := newTestComposer(nil)
	inv := invoice("b1", "2025-01", 20, 18500)
	inv.DueDate = dueIn(-3)

	reply := c.InvoiceSummary(entities.IntentAmount, &inv)
	assert.Contains(t, reply, "BOLETA VENCIDA")
	assert.NotContains(t, reply, "días** hasta")
}

func TestInvoiceSummary_DailyConsumption(t *testing.T) {
	c := newTestComposer(nil)
	inv := invoice("b1", "2025-02", 24, 18500)

	reply := c.InvoiceSummary(entities.IntentConsumption, &inv)
	assert.Contains(t, reply, "**0.80 m³/día**")
	assert.Contains(t, reply, "**Consumo:** 24 m³")
}

func TestComparison(t *testing.T) {
	c := newTestComposer(nil)

	reply := c.Comparison([]entities.Invoice{
		invoice("b3", "2025-02", 10, 12000),
		invoice("b2", "2025-01", 8, 10000),
		invoice("b1", "2024-12", 9, 11000),
		invoice("b0", "2024-11", 30, 40000),
	})

	assert.Contains(t, reply, "**1. 2025-02**")
	assert.Contains(t, reply, "**3. 2024-12**")
	assert.NotContains(t, reply, "2024-11", "only the three most recent are shown")
	assert.Contains(t, reply, "aumentó un 25.0%")
	assert.Contains(t, reply, "Consumo promedio: 9.00 m³")
	assert.Contains(t, reply, "Monto promedio: $11.000")
}

func TestComparison_Stable(t *testing.T) {
	c := newTestComposer(nil)
	reply := c.Comparison([]entities.Invoice{
		invoice("b2", "2025-02", 10, 12000),
		invoice("b1", "2025-01", 9.5, 11000),
	})
	assert.Contains(t, reply, "se mantiene estable")
}

func TestComparison_SingleInvoice(t *testing.T) {
	c := newTestComposer(nil)
	reply := c.Comparison([]entities.Invoice{invoice("b1", "2025-02", 10, 12000)})
	assert.Contains(t, reply, "Solo encontré una boleta")
}

func TestAnswer_RetriesShortReplyOnce(t *testing.T) {
	llm := &fakeLLM{replies: []string{"Sí", "Tu boleta vence el 11/03/2025 y el monto es de $18.500."}}
	c := newTestComposer(llm)
	inv := invoice("b1", "2025-02", 20, 18500)

	ans, err := c.Answer(context.Background(), AnswerRequest{
		Domain:   entities.DomainBilling,
		Question: "¿cuándo vence?",
		Invoice:  &inv,
		History:  []entities.Turn{{Role: entities.RoleUser, Content: "hola"}},
	})

	require.NoError(t, err)
	require.Len(t, llm.prompts, 2)
	assert.Equal(t, "Tu boleta vence el 11/03/2025 y el monto es de $18.500.", ans.Text)
	assert.Len(t, ans.Sources, 1)
	assert.Contains(t, llm.prompts[0], "INFORMACIÓN RELEVANTE")
	assert.Contains(t, llm.prompts[0], "- RUT: 12345678-9")
	assert.Contains(t, llm.prompts[0], "user: hola")
	assert.Contains(t, llm.prompts[1], "Sí")
}

func TestAnswer_AcceptsPlausibleReply(t *testing.T) {
	llm := &fakeLLM{replies: []string{"El horario de atención es de lunes a viernes entre 08:00 y 17:00."}}
	c := newTestComposer(llm)

	_, err := c.Answer(context.Background(), AnswerRequest{Domain: entities.DomainBilling, Question: "horario"})
	require.NoError(t, err)
	assert.Len(t, llm.prompts, 1)
}

func TestAnswer_NoModel(t *testing.T) {
	c := newTestComposer(nil)
	_, err := c.Answer(context.Background(), AnswerRequest{Question: "hola"})
	assert.ErrorIs(t, err, ports.ErrUpstreamUnavailable)
}

func TestCompareAnswer_FallsBackOnError(t *testing.T) {
	llm := &fakeLLM{err: errors.New("boom")}
	c := newTestComposer(llm)

	reply := c.CompareAnswer(context.Background(), "¿cómo ha cambiado?", []entities.Invoice{
		invoice("b2", "2025-02", 10, 12000),
		invoice("b1", "2025-01", 8, 10000),
	})
	assert.Contains(t, reply, "Comparación de tus últimas boletas")
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], `"periodo": "2025-02"`)
}

func TestTicketSummaryAndClosing(t *testing.T) {
	c := newTestComposer(nil)
	ticket := &entities.Ticket{
		Type:     entities.EmergencyMainBreak,
		Sector:   entities.SectorElMolino,
		Priority: entities.PriorityCritical,
	}

	summary := c.TicketSummary(ticket)
	assert.Contains(t, summary, "- Tipo: Rotura de Matriz")
	assert.Contains(t, summary, "- Sector: El Molino")
	assert.Contains(t, summary, "🔴 CRÍTICA")
	assert.True(t, strings.HasSuffix(summary, ContactQuestion))

	assert.True(t, strings.HasPrefix(c.Closing(true), ContactList))
	assert.Equal(t, EmergencyRegistered, c.Closing(false))
}

func TestEmergencyPromptProgress(t *testing.T) {
	c := newTestComposer(nil)
	reply := c.EmergencyPrompt(entities.KeySector, Progress{Collected: 1, Total: 6})
	assert.Contains(t, reply, "¿En qué sector te encuentras?")
	assert.Contains(t, reply, "📊 Progreso: 1/6 datos recolectados")
}
