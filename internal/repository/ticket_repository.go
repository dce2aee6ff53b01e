package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vuny-labs/marketplace-service/internal/domain"
)

// TicketRepository owns ticket records and their message transcripts.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetOpenCommerce returns the opener's open ticket for the product, if any.
	GetOpenCommerce(ctx context.Context, openerID, productID string) (*domain.Ticket, error)
	// GetOpenSupport returns the opener's open support ticket with the title, if any.
	GetOpenSupport(ctx context.Context, openerID, title string) (*domain.Ticket, error)
	ListByOpener(ctx context.Context, kind domain.TicketKind, openerID string) ([]domain.Ticket, error)
	List(ctx context.Context, kind domain.TicketKind, status *domain.TicketStatus) ([]domain.Ticket, error)
	CountOpen(ctx context.Context, kind domain.TicketKind) (int, error)
	// AppendMessage assigns the next per-ticket sequence number and inserts
	// the message. It fails with pgx.ErrNoRows when the ticket is missing or
	// not open.
	AppendMessage(ctx context.Context, msg *domain.Message) error
	ListMessages(ctx context.Context, ticketID string) ([]domain.Message, error)
	// Close records the terminal close fields. The status check is repeated
	// in SQL so a stale ticket row cannot be closed twice.
	Close(ctx context.Context, id string, status domain.TicketStatus, closedByID string, reason *string) error
	Delete(ctx context.Context, id string) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, kind, opener_id, product_id, title, description, quantity,
	total_price, status, message_seq, close_reason, closed_by_id, closed_at,
	created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (kind, opener_id, product_id, title, description, quantity, total_price, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, message_seq, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Kind,
		ticket.OpenerID,
		ticket.ProductID,
		ticket.Title,
		ticket.Description,
		ticket.Quantity,
		ticket.TotalPrice,
		ticket.Status,
	).Scan(&ticket.ID, &ticket.MessageSeq, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
}

func (r *ticketRepository) GetOpenCommerce(ctx context.Context, openerID, productID string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets
        WHERE kind='COMMERCE' AND status='open' AND opener_id=$1 AND product_id=$2`
	return r.fetchSingle(ctx, query, openerID, productID)
}

func (r *ticketRepository) GetOpenSupport(ctx context.Context, openerID, title string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets
        WHERE kind='SUPPORT' AND status='open' AND opener_id=$1 AND title=$2`
	return r.fetchSingle(ctx, query, openerID, title)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&ticket.ID,
		&ticket.Kind,
		&ticket.OpenerID,
		&ticket.ProductID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Quantity,
		&ticket.TotalPrice,
		&ticket.Status,
		&ticket.MessageSeq,
		&ticket.CloseReason,
		&ticket.ClosedByID,
		&ticket.ClosedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListByOpener(ctx context.Context, kind domain.TicketKind, openerID string) ([]domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets
        WHERE kind=$1 AND opener_id=$2 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, kind, openerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) List(ctx context.Context, kind domain.TicketKind, status *domain.TicketStatus) ([]domain.Ticket, error) {
	clauses := []string{"kind=$1"}
	args := []any{kind}
	if status != nil {
		args = append(args, *status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC`,
		ticketColumns, strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountOpen(ctx context.Context, kind domain.TicketKind) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE kind=$1 AND status='open'`, kind).Scan(&count)
	return count, err
}

func (r *ticketRepository) AppendMessage(ctx context.Context, msg *domain.Message) error {
	var seq int
	err := r.pool.QueryRow(ctx,
		`UPDATE tickets SET message_seq=message_seq+1, updated_at=NOW()
         WHERE id=$1 AND status='open' RETURNING message_seq`, msg.TicketID).Scan(&seq)
	if err != nil {
		return err
	}
	msg.Seq = seq

	const query = `
        INSERT INTO ticket_messages (ticket_id, seq, sender_id, content, image_url)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		msg.TicketID,
		msg.Seq,
		msg.SenderID,
		msg.Content,
		msg.ImageURL,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *ticketRepository) ListMessages(ctx context.Context, ticketID string) ([]domain.Message, error) {
	const query = `
        SELECT id, ticket_id, seq, sender_id, content, image_url, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY seq`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.Seq,
			&msg.SenderID,
			&msg.Content,
			&msg.ImageURL,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (r *ticketRepository) Close(ctx context.Context, id string, status domain.TicketStatus, closedByID string, reason *string) error {
	const query = `
        UPDATE tickets SET status=$1, closed_by_id=$2, close_reason=$3,
            closed_at=NOW(), updated_at=NOW()
        WHERE id=$4 AND status='open'`
	cmd, err := r.pool.Exec(ctx, query, status, closedByID, reason, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	return err
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Kind,
			&ticket.OpenerID,
			&ticket.ProductID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Quantity,
			&ticket.TotalPrice,
			&ticket.Status,
			&ticket.MessageSeq,
			&ticket.CloseReason,
			&ticket.ClosedByID,
			&ticket.ClosedAt,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
