package repository

import (
	"fmt"
	"strings"

	"nightpass/internal/database"
)

type Repositories struct {
	Tenants      *TenantRepository
	Events       *EventRepository
	Tables       *TableRepository
	Products     *TableProductRepository
	Reservations *ReservationRepository
	Codes        *CodeRepository
	Promoters    *PromoterRepository
	Persons      *PersonRepository
	Staff        *StaffRepository
	Tickets      *TicketRepository
	Payments     *PaymentRepository
	Settings     *SettingsRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Tenants:      NewTenantRepository(db),
		Events:       NewEventRepository(db),
		Tables:       NewTableRepository(db),
		Products:     NewTableProductRepository(db),
		Reservations: NewReservationRepository(db),
		Codes:        NewCodeRepository(db),
		Promoters:    NewPromoterRepository(db),
		Persons:      NewPersonRepository(db),
		Staff:        NewStaffRepository(db),
		Tickets:      NewTicketRepository(db),
		Payments:     NewPaymentRepository(db),
		Settings:     NewSettingsRepository(db),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

// whereBuilder accumulates AND-ed predicates with positional arguments.
type whereBuilder struct {
	conds []string
	args  []any
}

func newWhere(conds ...string) *whereBuilder {
	return &whereBuilder{conds: conds}
}

// add appends a predicate; "?" in cond is replaced by the next placeholder.
func (w *whereBuilder) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1))
}

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

// next returns the placeholder for an argument appended after the predicates.
func (w *whereBuilder) next(arg any) string {
	w.args = append(w.args, arg)
	return fmt.Sprintf("$%d", len(w.args))
}

// likePattern escapes LIKE wildcards in a user search term.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(q)) + "%"
}
