package repository

import (
	"context"

	"vehicle-rental/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type Repository struct {
	Booking    BookingRepository
	Payment    PaymentRepository
	Deposit    DepositRepository
	Inspection InspectionRepository
	Claim      DamageClaimRepository
	Payout     PayoutRepository
	Timeline   TimelineRepository
	Relay      RelayCursorRepository

	// Tx opens a transaction and hands the callback a Repository bound to it.
	Tx Transactor
}

// Transactor runs fn against a Repository whose statements share one
// transaction. Calling WithinTx on an already transactional Repository
// reuses the outer transaction.
type Transactor interface {
	WithinTx(ctx context.Context, iso pgx.TxIsoLevel, fn func(repo *Repository) error) error
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	repo := newRepository(db, log)
	repo.Tx = &pgxTransactor{db: db, log: log}
	return repo
}

func newRepository(q database.Querier, log *zap.Logger) *Repository {
	return &Repository{
		Booking:    NewBookingRepository(q, log),
		Payment:    NewPaymentRepository(q, log),
		Deposit:    NewDepositRepository(q, log),
		Inspection: NewInspectionRepository(q, log),
		Claim:      NewDamageClaimRepository(q, log),
		Payout:     NewPayoutRepository(q, log),
		Timeline:   NewTimelineRepository(q, log),
		Relay:      NewRelayCursorRepository(q, log),
	}
}

type pgxTransactor struct {
	db  database.PgxIface
	log *zap.Logger
}

func (t *pgxTransactor) WithinTx(ctx context.Context, iso pgx.TxIsoLevel, fn func(repo *Repository) error) error {
	return database.RunInTx(ctx, t.db, iso, func(tx pgx.Tx) error {
		txRepo := newRepository(tx, t.log)
		txRepo.Tx = nestedTransactor{repo: txRepo}
		return fn(txRepo)
	})
}

type nestedTransactor struct {
	repo *Repository
}

func (n nestedTransactor) WithinTx(_ context.Context, _ pgx.TxIsoLevel, fn func(repo *Repository) error) error {
	return fn(n.repo)
}
