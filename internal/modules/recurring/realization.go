package recurring

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/avelis/coinkeeper/internal/database"
	"github.com/avelis/coinkeeper/internal/domain"
	"github.com/avelis/coinkeeper/internal/events"
	"github.com/avelis/coinkeeper/internal/modules/transactions"
)

// RealizeRequest identifies one occurrence and carries optional per-field
// overrides. InstanceDate is always the original occurrence date; it stays
// the idempotency key even when Date overrides the posted date.
type RealizeRequest struct {
	RuleID       uuid.UUID
	InstanceDate time.Time
	Date         *time.Time
	Amount       *decimal.Decimal
	Description  *string
}

func (req *RealizeRequest) overrides() *domain.Overrides {
	return &domain.Overrides{
		Date:        req.Date,
		Amount:      req.Amount,
		Description: req.Description,
	}
}

// RealizationService converts occurrences into permanent ledger transactions,
// exactly once per occurrence. All writes for one realization share a single
// unit of work on ledger.db.
type RealizationService struct {
	ledgerDB *database.DB
	rules    *Repository
	txs      *transactions.Repository
	bus      *events.Bus
	log      zerolog.Logger
}

// NewRealizationService creates a new realization service.
func NewRealizationService(
	ledgerDB *database.DB,
	rules *Repository,
	txs *transactions.Repository,
	bus *events.Bus,
	log zerolog.Logger,
) *RealizationService {
	return &RealizationService{
		ledgerDB: ledgerDB,
		rules:    rules,
		txs:      txs,
		bus:      bus,
		log:      log.With().Str("service", "realization").Logger(),
	}
}

// RealizeTransaction materializes one occurrence of a recurring transaction
// rule. Fails with domain.ErrRecurringTransactionNotFound when the rule does
// not exist, domain.ErrAlreadyRealized when the occurrence already has a
// ledger row, and domain.ErrInstanceSkipped when a skip exception covers it.
func (s *RealizationService) RealizeTransaction(req RealizeRequest) (*domain.Transaction, error) {
	instanceDate := domain.DateOf(req.InstanceDate)

	rule, err := s.rules.GetTransactionByID(req.RuleID)
	if err != nil {
		return nil, err
	}

	existing, err := s.txs.GetByRecurringInstance(rule.ID, instanceDate)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAlreadyRealized
	}

	res, err := s.resolve(rule.ID, instanceDate, domain.OccurrenceDefaults{
		Date:        instanceDate,
		Amount:      rule.Amount,
		Description: rule.Description,
	}, req.overrides())
	if err != nil {
		return nil, err
	}

	t := domain.Transaction{
		ID:                    uuid.New(),
		AccountID:             rule.AccountID,
		CategoryID:            rule.CategoryID,
		Amount:                res.Amount,
		Date:                  res.Date,
		Description:           res.Description,
		RecurringRuleID:       &rule.ID,
		RecurringInstanceDate: &instanceDate,
		CreatedAt:             time.Now().UTC(),
	}

	tx, err := s.ledgerDB.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin realization: %w", err)
	}
	if err := s.txs.AddTx(tx, t); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		tx.Rollback()
		if isUniqueViolation(err) {
			return nil, domain.ErrAlreadyRealized
		}
		return nil, fmt.Errorf("failed to commit realization: %w", err)
	}

	s.log.Info().
		Str("rule_id", rule.ID.String()).
		Str("instance_date", instanceDate.Format(domain.DateFormat)).
		Str("amount", t.Amount.String()).
		Msg("Realized recurring transaction")

	s.bus.Emit(events.TransactionRealized, "recurring", map[string]interface{}{
		"rule_id":        rule.ID.String(),
		"instance_date":  instanceDate.Format(domain.DateFormat),
		"transaction_id": t.ID.String(),
		"amount":         t.Amount.String(),
	})

	return &t, nil
}

// RealizeTransfer materializes one occurrence of a recurring transfer rule as
// two linked ledger rows, a debit on the source account and a credit on the
// destination, committed atomically or not at all.
func (s *RealizationService) RealizeTransfer(req RealizeRequest) (*domain.TransferResult, error) {
	instanceDate := domain.DateOf(req.InstanceDate)

	rule, err := s.rules.GetTransferByID(req.RuleID)
	if err != nil {
		return nil, err
	}

	// The source leg is checked independently: it exists iff the transfer
	// was realized, because both legs commit together.
	existing, err := s.txs.GetByRecurringTransferInstance(rule.ID, instanceDate)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAlreadyRealized
	}

	res, err := s.resolve(rule.ID, instanceDate, domain.OccurrenceDefaults{
		Date:        instanceDate,
		Amount:      rule.Amount,
		Description: rule.Description,
	}, req.overrides())
	if err != nil {
		return nil, err
	}

	groupID := uuid.New()
	now := time.Now().UTC()

	source := domain.Transaction{
		ID:                    uuid.New(),
		AccountID:             rule.SourceAccountID,
		Amount:                res.Amount.Neg(),
		Date:                  res.Date,
		Description:           res.Description,
		TransferGroupID:       &groupID,
		RecurringRuleID:       &rule.ID,
		RecurringInstanceDate: &instanceDate,
		CreatedAt:             now,
	}
	destination := domain.Transaction{
		ID:                    uuid.New(),
		AccountID:             rule.DestinationAccountID,
		Amount:                res.Amount,
		Date:                  res.Date,
		Description:           res.Description,
		TransferGroupID:       &groupID,
		RecurringRuleID:       &rule.ID,
		RecurringInstanceDate: &instanceDate,
		CreatedAt:             now,
	}

	tx, err := s.ledgerDB.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transfer realization: %w", err)
	}
	if err := s.txs.AddTx(tx, source); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := s.txs.AddTx(tx, destination); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		tx.Rollback()
		if isUniqueViolation(err) {
			return nil, domain.ErrAlreadyRealized
		}
		return nil, fmt.Errorf("failed to commit transfer realization: %w", err)
	}

	s.log.Info().
		Str("rule_id", rule.ID.String()).
		Str("instance_date", instanceDate.Format(domain.DateFormat)).
		Str("amount", res.Amount.String()).
		Str("transfer_group_id", groupID.String()).
		Msg("Realized recurring transfer")

	s.bus.Emit(events.TransferRealized, "recurring", map[string]interface{}{
		"rule_id":           rule.ID.String(),
		"instance_date":     instanceDate.Format(domain.DateFormat),
		"transfer_group_id": groupID.String(),
		"amount":            res.Amount.String(),
	})

	return &domain.TransferResult{
		SourceTransactionID:      source.ID,
		DestinationTransactionID: destination.ID,
		TransferGroupID:          groupID,
		Amount:                   res.Amount,
		Date:                     res.Date,
	}, nil
}

// resolve loads the occurrence's exception and applies the three-tier
// precedence. A skip exception refuses realization.
func (s *RealizationService) resolve(ruleID uuid.UUID, instanceDate time.Time, defaults domain.OccurrenceDefaults, req *domain.Overrides) (domain.Resolution, error) {
	exc, err := s.rules.GetException(ruleID, instanceDate)
	if err != nil {
		return domain.Resolution{}, err
	}

	res := domain.ResolveOccurrence(defaults, exc, req)
	if res.Skipped {
		return domain.Resolution{}, domain.ErrInstanceSkipped
	}
	return res, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
