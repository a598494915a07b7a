package entities

import "time"

// Sector is a cooperative service area.
type Sector string

const (
	SectorAnibana        Sector = "anibana"
	SectorElMolino       Sector = "el_molino"
	SectorLaCompania     Sector = "la_compania"
	SectorElMaiten1      Sector = "el_maiten_1"
	SectorLaMorera       Sector = "la_morera"
	SectorElMaiten2      Sector = "el_maiten_2"
	SectorSantaMargarita Sector = "santa_margarita"
)

// Sectors lists every sector in display order.
var Sectors = []Sector{
	SectorAnibana, SectorElMolino, SectorLaCompania, SectorElMaiten1,
	SectorLaMorera, SectorElMaiten2, SectorSantaMargarita,
}

var sectorLabels = map[Sector]string{
	SectorAnibana:        "Anibana",
	SectorElMolino:       "El Molino",
	SectorLaCompania:     "La Compañía",
	SectorElMaiten1:      "El Maitén 1",
	SectorLaMorera:       "La Morera",
	SectorElMaiten2:      "El Maitén 2",
	SectorSantaMargarita: "Santa Margarita",
}

// Label returns the display name.
func (s Sector) Label() string {
	if l, ok := sectorLabels[s]; ok {
		return l
	}
	return string(s)
}

// Valid reports whether s is a known sector.
func (s Sector) Valid() bool {
	_, ok := sectorLabels[s]
	return ok
}

// EmergencyType classifies the reported problem.
type EmergencyType string

const (
	EmergencyMainBreak    EmergencyType = "rotura_matriz"
	EmergencyLowPressure  EmergencyType = "baja_presion"
	EmergencyLeak         EmergencyType = "fuga_agua"
	EmergencyPipeBreak    EmergencyType = "caneria_rota"
	EmergencyContaminated EmergencyType = "agua_contaminada"
	EmergencyNoWater      EmergencyType = "sin_agua"
	EmergencyOther        EmergencyType = "otro"
)

// EmergencyTypes is the closed type vocabulary.
var EmergencyTypes = []EmergencyType{
	EmergencyMainBreak, EmergencyLowPressure, EmergencyLeak, EmergencyPipeBreak,
	EmergencyContaminated, EmergencyNoWater, EmergencyOther,
}

var emergencyLabels = map[EmergencyType]string{
	EmergencyMainBreak:    "Rotura de Matriz",
	EmergencyLowPressure:  "Baja Presión",
	EmergencyLeak:         "Fuga de Agua",
	EmergencyPipeBreak:    "Cañería Rota",
	EmergencyContaminated: "Agua Contaminada",
	EmergencyNoWater:      "Sin Agua",
	EmergencyOther:        "Otro",
}

// Label returns the display name.
func (t EmergencyType) Label() string {
	if l, ok := emergencyLabels[t]; ok {
		return l
	}
	return string(t)
}

// Valid reports whether t is a known type.
func (t EmergencyType) Valid() bool {
	_, ok := emergencyLabels[t]
	return ok
}

// Priority is the attention level of a ticket.
type Priority string

const (
	PriorityLow      Priority = "baja"
	PriorityMedium   Priority = "media"
	PriorityHigh     Priority = "alta"
	PriorityCritical Priority = "critica"
)

// Rank orders priorities from 0 (low) to 3 (critical).
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityCritical:
		return 3
	}
	return -1
}

var basePriority = map[EmergencyType]Priority{
	EmergencyMainBreak:    PriorityCritical,
	EmergencyNoWater:      PriorityCritical,
	EmergencyContaminated: PriorityHigh,
	EmergencyPipeBreak:    PriorityHigh,
	EmergencyLeak:         PriorityMedium,
	EmergencyLowPressure:  PriorityMedium,
	EmergencyOther:        PriorityLow,
}

// CalculatePriority maps the emergency type to its base level and escalates
// medium and low by one step when the meter is running. Unknown types are medium.
func CalculatePriority(t EmergencyType, meterRunning bool) Priority {
	p, ok := basePriority[t]
	if !ok {
		p = PriorityMedium
	}
	if meterRunning {
		switch p {
		case PriorityMedium:
			return PriorityHigh
		case PriorityLow:
			return PriorityMedium
		}
	}
	return p
}

// TicketStatus is the operational state of a ticket.
type TicketStatus string

const (
	TicketPending    TicketStatus = "pendiente"
	TicketInProgress TicketStatus = "en_proceso"
	TicketAttended   TicketStatus = "atendida"
	TicketResolved   TicketStatus = "resuelta"
	TicketCancelled  TicketStatus = "cancelada"
)

// Ticket is an emergency report created once intake is complete.
type Ticket struct {
	ID           string
	ReporterName string
	Phone        string
	Sector       Sector
	Address      string
	Description  string
	Type         EmergencyType
	MeterRunning *bool
	WaterAmount  string
	HasPhoto     bool
	Status       TicketStatus
	Priority     Priority
	WantsContact *bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewTicket builds a pending ticket from collected facts and assigns its priority.
func NewTicket(id string, f EmergencyFacts, now time.Time) *Ticket {
	t := &Ticket{
		ID:           id,
		ReporterName: f.ReporterName,
		Phone:        f.Phone,
		Sector:       f.Sector,
		Address:      f.Address,
		Description:  f.Description,
		Type:         f.Type,
		MeterRunning: f.MeterRunning,
		WaterAmount:  f.WaterAmount,
		HasPhoto:     f.HasPhoto,
		Status:       TicketPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if t.Type == "" {
		t.Type = EmergencyOther
	}
	t.Priority = CalculatePriority(t.Type, f.MeterRunning != nil && *f.MeterRunning)
	return t
}
