package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/0xcro3dile/coopchat-go/internal/adapters/storage"
	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

// Invoices implements ports.InvoiceRepository.
type Invoices struct {
	db *sqlx.DB
}

type invoiceRow struct {
	ID              string          `db:"id"`
	CustomerName    string          `db:"customer_name"`
	NameFolded      string          `db:"name_folded"`
	RUT             string          `db:"rut"`
	Address         string          `db:"address"`
	IssueDate       time.Time       `db:"issue_date"`
	Period          string          `db:"period"`
	Consumption     float64         `db:"consumption"`
	Amount          int64           `db:"amount"`
	PreviousReading sql.NullFloat64 `db:"previous_reading"`
	CurrentReading  sql.NullFloat64 `db:"current_reading"`
	DueDate         sql.NullTime    `db:"due_date"`
	Status          string          `db:"status"`
	Notes           string          `db:"notes"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

func (r invoiceRow) toEntity() entities.Invoice {
	return entities.Invoice{
		ID:              r.ID,
		CustomerName:    r.CustomerName,
		RUT:             r.RUT,
		Address:         r.Address,
		IssueDate:       r.IssueDate,
		Period:          r.Period,
		Consumption:     r.Consumption,
		Amount:          r.Amount,
		PreviousReading: floatPtr(r.PreviousReading),
		CurrentReading:  floatPtr(r.CurrentReading),
		DueDate:         timePtr(r.DueDate),
		Status:          entities.PaymentStatus(r.Status),
		Notes:           r.Notes,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

const invoiceColumns = `id, customer_name, name_folded, rut, address, issue_date, period,
	consumption, amount, previous_reading, current_reading, due_date, status, notes,
	created_at, updated_at`

const invoiceOrder = ` ORDER BY period DESC, issue_date DESC, id DESC`

func (r *Invoices) selectInvoices(ctx context.Context, query string, args ...any) ([]entities.Invoice, error) {
	var rows []invoiceRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying invoices: %w", err)
	}
	out := make([]entities.Invoice, len(rows))
	for i, row := range rows {
		out[i] = row.toEntity()
	}
	return out, nil
}

func (r *Invoices) FindByKey(ctx context.Context, rut string) (entities.LookupResult, error) {
	invoices, err := r.FindAllByKey(ctx, rut, 0)
	if err != nil {
		return entities.NotFound(), err
	}
	return entities.Found(invoices), nil
}

func (r *Invoices) FindAllByKey(ctx context.Context, rut string, limit int) ([]entities.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE rut = ?` + invoiceOrder
	if limit > 0 {
		return r.selectInvoices(ctx, query+` LIMIT ?`, rut, limit)
	}
	return r.selectInvoices(ctx, query, rut)
}

func (r *Invoices) FindByName(ctx context.Context, name string) ([]entities.Invoice, error) {
	needle := storage.FoldName(name)
	if needle == "" {
		return nil, nil
	}
	return r.selectInvoices(ctx, `SELECT `+invoiceColumns+` FROM invoices
		WHERE instr(name_folded, ?) > 0`+invoiceOrder, needle)
}

func (r *Invoices) Get(ctx context.Context, id string) (*entities.Invoice, error) {
	var row invoiceRow
	err := r.db.GetContext(ctx, &row, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading invoice: %w", err)
	}
	inv := row.toEntity()
	return &inv, nil
}

// Save inserts or replaces an invoice, including one with the same rut and period.
func (r *Invoices) Save(ctx context.Context, inv *entities.Invoice) error {
	row := invoiceRow{
		ID:              inv.ID,
		CustomerName:    inv.CustomerName,
		NameFolded:      storage.FoldName(inv.CustomerName),
		RUT:             inv.RUT,
		Address:         inv.Address,
		IssueDate:       inv.IssueDate.UTC(),
		Period:          inv.Period,
		Consumption:     inv.Consumption,
		Amount:          inv.Amount,
		PreviousReading: nullFloat(inv.PreviousReading),
		CurrentReading:  nullFloat(inv.CurrentReading),
		DueDate:         nullTime(inv.DueDate),
		Status:          string(inv.Status),
		Notes:           inv.Notes,
		CreatedAt:       inv.CreatedAt.UTC(),
		UpdatedAt:       inv.UpdatedAt.UTC(),
	}
	_, err := r.db.NamedExecContext(ctx, `INSERT OR REPLACE INTO invoices (`+invoiceColumns+`)
		VALUES (:id, :customer_name, :name_folded, :rut, :address, :issue_date, :period,
			:consumption, :amount, :previous_reading, :current_reading, :due_date, :status, :notes,
			:created_at, :updated_at)`, row)
	if err != nil {
		return fmt.Errorf("saving invoice: %w", err)
	}
	return nil
}

// Tickets implements ports.TicketRepository.
type Tickets struct {
	db *sqlx.DB
}

type ticketRow struct {
	ID           string       `db:"id"`
	ReporterName string       `db:"reporter_name"`
	Phone        string       `db:"phone"`
	Sector       string       `db:"sector"`
	Address      string       `db:"address"`
	Description  string       `db:"description"`
	Type         string       `db:"type"`
	MeterRunning sql.NullBool `db:"meter_running"`
	WaterAmount  string       `db:"water_amount"`
	HasPhoto     bool         `db:"has_photo"`
	Status       string       `db:"status"`
	Priority     string       `db:"priority"`
	WantsContact sql.NullBool `db:"wants_contact"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

func toTicketRow(t *entities.Ticket) ticketRow {
	return ticketRow{
		ID:           t.ID,
		ReporterName: t.ReporterName,
		Phone:        t.Phone,
		Sector:       string(t.Sector),
		Address:      t.Address,
		Description:  t.Description,
		Type:         string(t.Type),
		MeterRunning: nullBool(t.MeterRunning),
		WaterAmount:  t.WaterAmount,
		HasPhoto:     t.HasPhoto,
		Status:       string(t.Status),
		Priority:     string(t.Priority),
		WantsContact: nullBool(t.WantsContact),
		CreatedAt:    t.CreatedAt.UTC(),
		UpdatedAt:    t.UpdatedAt.UTC(),
	}
}

func (r ticketRow) toEntity() *entities.Ticket {
	return &entities.Ticket{
		ID:           r.ID,
		ReporterName: r.ReporterName,
		Phone:        r.Phone,
		Sector:       entities.Sector(r.Sector),
		Address:      r.Address,
		Description:  r.Description,
		Type:         entities.EmergencyType(r.Type),
		MeterRunning: boolPtr(r.MeterRunning),
		WaterAmount:  r.WaterAmount,
		HasPhoto:     r.HasPhoto,
		Status:       entities.TicketStatus(r.Status),
		Priority:     entities.Priority(r.Priority),
		WantsContact: boolPtr(r.WantsContact),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

const ticketColumns = `id, reporter_name, phone, sector, address, description, type,
	meter_running, water_amount, has_photo, status, priority, wants_contact, created_at, updated_at`

func (r *Tickets) Create(ctx context.Context, t *entities.Ticket) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO tickets (`+ticketColumns+`)
		VALUES (:id, :reporter_name, :phone, :sector, :address, :description, :type,
			:meter_running, :water_amount, :has_photo, :status, :priority, :wants_contact,
			:created_at, :updated_at)`, toTicketRow(t))
	if err != nil {
		return fmt.Errorf("inserting ticket: %w", err)
	}
	return nil
}

func (r *Tickets) Update(ctx context.Context, t *entities.Ticket) error {
	res, err := r.db.NamedExecContext(ctx, `UPDATE tickets SET
		reporter_name = :reporter_name, phone = :phone, sector = :sector, address = :address,
		description = :description, type = :type, meter_running = :meter_running,
		water_amount = :water_amount, has_photo = :has_photo, status = :status,
		priority = :priority, wants_contact = :wants_contact, updated_at = :updated_at
		WHERE id = :id`, toTicketRow(t))
	if err != nil {
		return fmt.Errorf("updating ticket: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *Tickets) Get(ctx context.Context, id string) (*entities.Ticket, error) {
	var row ticketRow
	err := r.db.GetContext(ctx, &row, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading ticket: %w", err)
	}
	return row.toEntity(), nil
}
