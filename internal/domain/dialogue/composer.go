package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

// KnowledgeContext renders retrieved knowledge for a prompt.
type KnowledgeContext interface {
	BuildWithSources(ctx context.Context, query string, maxChars int) (string, []entities.QueryResult)
}

// ComposerOptions tunes model-generated replies.
type ComposerOptions struct {
	ContextBudget   int
	HistoryTurns    int
	MinReplyRunes   int
	Temperature     float64
	MaxOutputTokens int
	Timeout         time.Duration
}

// DefaultComposerOptions returns the production settings.
func DefaultComposerOptions() ComposerOptions {
	return ComposerOptions{
		ContextBudget:   1500,
		HistoryTurns:    5,
		MinReplyRunes:   40,
		Temperature:     0.7,
		MaxOutputTokens: 500,
	}
}

// Composer renders replies: fixed prompts, record summaries and
// model-generated answers.
type Composer struct {
	llm       ports.LLMService
	knowledge KnowledgeContext
	opts      ComposerOptions
	now       ports.Clock
	logger    *zap.Logger
}

// NewComposer creates a Composer. llm and knowledge may be nil; open-ended
// answers then fail with ports.ErrUpstreamUnavailable.
func NewComposer(llm ports.LLMService, knowledge KnowledgeContext, opts ComposerOptions, clock ports.Clock, logger *zap.Logger) *Composer {
	def := DefaultComposerOptions()
	if opts.ContextBudget <= 0 {
		opts.ContextBudget = def.ContextBudget
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = def.HistoryTurns
	}
	if opts.MinReplyRunes <= 0 {
		opts.MinReplyRunes = def.MinReplyRunes
	}
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = def.MaxOutputTokens
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		llm:       llm,
		knowledge: knowledge,
		opts:      opts,
		now:       clock,
		logger:    logger.With(zap.String("component", "composer")),
	}
}

// Welcome returns the greeting of a domain.
func (c *Composer) Welcome(d entities.Domain) string {
	if d == entities.DomainEmergency {
		return EmergencyWelcome
	}
	return BillingWelcome
}

// BillingPrompt asks for the first missing billing fact.
func (c *Composer) BillingPrompt(missing string, facts entities.BillingFacts) string {
	if missing == entities.KeyRUT {
		return RUTPrompt(facts.Intent)
	}
	return IntentMenu
}

// EmergencyPrompt asks for the first missing emergency fact with progress.
func (c *Composer) EmergencyPrompt(missing string, p Progress) string {
	return EmergencyQuestion(missing) + fmt.Sprintf("\n\n📊 Progreso: %d/%d datos recolectados", p.Collected, p.Total)
}

// InvoiceBlock renders the labeled invoice fields.
func (c *Composer) InvoiceBlock(inv *entities.Invoice) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Período:** %s\n", inv.Period)
	if !inv.IssueDate.IsZero() {
		fmt.Fprintf(&sb, "**Fecha Emisión:** %s\n", FormatDate(inv.IssueDate))
	}
	if inv.DueDate != nil {
		fmt.Fprintf(&sb, "**Fecha Vencimiento:** %s\n", FormatDate(*inv.DueDate))
	}
	fmt.Fprintf(&sb, "**Consumo:** %s\n", FormatConsumption(inv.Consumption))
	fmt.Fprintf(&sb, "**Monto:** %s\n", FormatCLP(inv.Amount))
	fmt.Fprintf(&sb, "**Estado:** %s %s", inv.Status.Emoji(), inv.Status.Label())
	return sb.String()
}

// InvoiceSummary renders the record with commentary for the intent.
func (c *Composer) InvoiceSummary(intent entities.Intent, inv *entities.Invoice) string {
	info := c.InvoiceBlock(inv)
	now := c.now()

	switch intent {
	case entities.IntentAmount:
		var sb strings.Builder
		sb.WriteString("💵 **Información de Pago**\n\n")
		sb.WriteString(info)
		sb.WriteString("\n\n")
		if inv.IsOverdue(now) {
			sb.WriteString("⚠️ **BOLETA VENCIDA** - Te recomendamos realizar el pago lo antes posible para evitar cortes de servicio.")
		} else if days, ok := inv.DaysUntilDue(now); ok && inv.Status != entities.PaymentPaid {
			fmt.Fprintf(&sb, "✅ Tienes **%d días** hasta el vencimiento.", days)
		} else if inv.Status == entities.PaymentPaid {
			sb.WriteString("✅ Esta boleta ya se encuentra pagada.")
		}
		return sb.String() + BillingFollowUp

	case entities.IntentConsumption:
		return fmt.Sprintf("📊 **Información de Consumo**\n\n%s\n\n📈 Tu consumo promedio diario es de **%.2f m³/día**",
			info, inv.DailyConsumption()) + BillingFollowUp

	case entities.IntentPaymentStatus:
		return "📋 **Estado de tu Boleta**\n\n" + info + BillingFollowUp
	}
	return "📄 **Tu Boleta Actual**\n\n" + info + "\n\n¿Tienes alguna pregunta adicional sobre tu boleta?"
}

// Comparison renders up to the three most recent invoices with averages
// and the change of the latest period over the previous one.
func (c *Composer) Comparison(invoices []entities.Invoice) string {
	if len(invoices) == 0 {
		return NoInvoiceReply
	}
	if len(invoices) == 1 {
		return "Solo encontré una boleta en el sistema:\n\n" + c.InvoiceBlock(&invoices[0]) +
			"\n\nPara poder hacer comparaciones, necesitamos al menos dos boletas registradas."
	}
	if len(invoices) > 3 {
		invoices = invoices[:3]
	}

	var sb strings.Builder
	sb.WriteString("📊 **Comparación de tus últimas boletas:**\n\n")
	var totalConsumption float64
	var totalAmount int64
	for i, inv := range invoices {
		fmt.Fprintf(&sb, "**%d. %s**\n", i+1, inv.Period)
		fmt.Fprintf(&sb, "   Consumo: %s\n", FormatConsumption(inv.Consumption))
		fmt.Fprintf(&sb, "   Monto: %s\n", FormatCLP(inv.Amount))
		fmt.Fprintf(&sb, "   Estado: %s %s\n\n", inv.Status.Emoji(), inv.Status.Label())
		totalConsumption += inv.Consumption
		totalAmount += inv.Amount
	}

	n := len(invoices)
	sb.WriteString("📈 **Análisis:**\n")
	fmt.Fprintf(&sb, "   • Consumo promedio: %.2f m³\n", totalConsumption/float64(n))
	fmt.Fprintf(&sb, "   • Monto promedio: %s\n", FormatCLP(totalAmount/int64(n)))

	if change, ok := ConsumptionChange(invoices[0].Consumption, invoices[1].Consumption); ok {
		switch change.Trend {
		case TrendIncreased:
			fmt.Fprintf(&sb, "   • ⚠️ Tu consumo aumentó un %.1f%% respecto al período anterior", change.Percent)
		case TrendDecreased:
			fmt.Fprintf(&sb, "   • ✅ Tu consumo disminuyó un %.1f%% respecto al período anterior", -change.Percent)
		default:
			sb.WriteString("   • ➡️ Tu consumo se mantiene estable")
		}
	}
	return strings.TrimRight(sb.String(), "\n") + BillingFollowUp
}

// TicketSummary renders the registered ticket and asks about contacts.
func (c *Composer) TicketSummary(t *entities.Ticket) string {
	return fmt.Sprintf("✅ Hemos registrado tu emergencia exitosamente.\n\n📋 **Resumen:**\n- Tipo: %s\n- Sector: %s\n- Prioridad: %s\n\n%s",
		t.Type.Label(), t.Sector.Label(), PriorityLevel(t.Priority), PriorityExplanation(t.Priority)) + ContactQuestion
}

// Closing is the final emergency reply.
func (c *Composer) Closing(wantsContact bool) string {
	if wantsContact {
		return ContactList + "\n\n" + EmergencyRegistered
	}
	return EmergencyRegistered
}

// AnswerRequest is the input of an open-ended answer.
type AnswerRequest struct {
	Domain   entities.Domain
	Question string
	Invoice  *entities.Invoice
	History  []entities.Turn
}

var answerPreambles = map[entities.Domain]string{
	entities.DomainBilling:   "Eres un asistente virtual especializado en consultas de boletas de agua potable.",
	entities.DomainEmergency: "Eres el asistente virtual de la Cooperativa de Agua Potable, especializado en emergencias del servicio de agua potable.",
}

// Answer generates a grounded reply. A reply that is too short or lacks
// terminal punctuation is retried once and the retry is accepted as is.
func (c *Composer) Answer(ctx context.Context, req AnswerRequest) (entities.Answer, error) {
	if c.llm == nil {
		return entities.Answer{}, fmt.Errorf("composing answer: %w", ports.ErrUpstreamUnavailable)
	}
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	var rag string
	var sources []entities.QueryResult
	if c.knowledge != nil {
		rag, sources = c.knowledge.BuildWithSources(ctx, req.Question, c.opts.ContextBudget)
	}

	prompt := c.answerPrompt(req, rag)
	reply, err := c.generate(ctx, prompt)
	if err != nil {
		return entities.Answer{}, err
	}

	if !c.plausible(reply) {
		c.logger.Debug("retrying short reply", zap.Int("runes", utf8.RuneCountInString(reply)))
		retry, err := c.generate(ctx, expandPrompt(prompt, reply))
		if err != nil {
			c.logger.Warn("reply expansion failed", zap.Error(err))
		} else if retry != "" {
			reply = retry
		}
	}
	return entities.Answer{Text: reply, Sources: sources}, nil
}

func (c *Composer) answerPrompt(req AnswerRequest, rag string) string {
	preamble, ok := answerPreambles[req.Domain]
	if !ok {
		preamble = answerPreambles[entities.DomainBilling]
	}

	var sb strings.Builder
	sb.WriteString(preamble)
	sb.WriteString("\n")
	sb.WriteString(rag)
	sb.WriteString("\n\n")

	if inv := req.Invoice; inv != nil {
		sb.WriteString("Información de la boleta del usuario:\n")
		fmt.Fprintf(&sb, "- RUT: %s\n", inv.RUT)
		fmt.Fprintf(&sb, "- Nombre: %s\n", inv.CustomerName)
		fmt.Fprintf(&sb, "- Período: %s\n", inv.Period)
		fmt.Fprintf(&sb, "- Consumo: %s\n", FormatConsumption(inv.Consumption))
		fmt.Fprintf(&sb, "- Monto: %s\n", FormatCLP(inv.Amount))
		fmt.Fprintf(&sb, "- Estado de pago: %s\n", inv.Status.Label())
		if inv.DueDate != nil {
			fmt.Fprintf(&sb, "- Fecha de vencimiento: %s\n", FormatDate(*inv.DueDate))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("HISTORIAL DE CONVERSACIÓN:\n")
	sb.WriteString(formatHistory(req.History, c.opts.HistoryTurns))
	sb.WriteString("\n\nPREGUNTA DEL USUARIO:\n")
	sb.WriteString(req.Question)
	sb.WriteString("\n\nResponde de manera clara, concisa y amigable. ")
	sb.WriteString("Usa solo la información entregada; si no sabes algo, dilo. ")
	sb.WriteString("Responde en máximo 3-4 líneas:")
	return sb.String()
}

type invoiceDigest struct {
	Period      string  `json:"periodo"`
	Consumption float64 `json:"consumo"`
	Amount      int64   `json:"monto"`
	Status      string  `json:"estado"`
}

// CompareAnswer asks the model for a comparative analysis of up to six
// invoices and falls back to the deterministic comparison.
func (c *Composer) CompareAnswer(ctx context.Context, question string, invoices []entities.Invoice) string {
	if len(invoices) > 6 {
		invoices = invoices[:6]
	}
	if c.llm == nil || len(invoices) < 2 {
		return c.Comparison(invoices)
	}
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	digest := make([]invoiceDigest, len(invoices))
	for i, inv := range invoices {
		digest[i] = invoiceDigest{inv.Period, inv.Consumption, inv.Amount, string(inv.Status)}
	}
	data, _ := json.MarshalIndent(digest, "", "  ")

	var sb strings.Builder
	sb.WriteString("Eres un asistente especializado en análisis de consumo de agua potable.\n\n")
	sb.WriteString("BOLETAS DEL USUARIO (últimos 6 períodos):\n")
	sb.Write(data)
	sb.WriteString("\n\nPREGUNTA DEL USUARIO:\n")
	sb.WriteString(question)
	sb.WriteString("\n\nGenera un análisis comparativo claro que responda la pregunta. ")
	sb.WriteString("Incluye tendencias de consumo y montos. Usa un máximo de 8 líneas.\n\nResponde:")

	reply, err := c.generate(ctx, sb.String())
	if err != nil || reply == "" {
		c.logger.Warn("comparative analysis unavailable, using fixed comparison", zap.Error(err))
		return c.Comparison(invoices)
	}
	return reply
}

func (c *Composer) generate(ctx context.Context, prompt string) (string, error) {
	reply, err := c.llm.Generate(ctx, prompt, ports.GenerateOptions{
		Temperature:     c.opts.Temperature,
		MaxOutputTokens: c.opts.MaxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generating reply: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

func (c *Composer) plausible(reply string) bool {
	if utf8.RuneCountInString(reply) < c.opts.MinReplyRunes {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(reply)
	return strings.ContainsRune(".!?…)\"»", last)
}

func expandPrompt(prompt, reply string) string {
	return prompt + "\n\nTu respuesta anterior fue demasiado breve:\n" + reply +
		"\n\nAmplía la respuesta con una o dos oraciones completas:"
}

func formatHistory(turns []entities.Turn, n int) string {
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("%s: %s", t.Role, t.Content))
	}
	return strings.Join(lines, "\n")
}
