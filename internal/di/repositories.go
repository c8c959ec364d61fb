package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/avelis/coinkeeper/internal/modules/accounts"
	"github.com/avelis/coinkeeper/internal/modules/budgets"
	"github.com/avelis/coinkeeper/internal/modules/categories"
	"github.com/avelis/coinkeeper/internal/modules/recurring"
	"github.com/avelis/coinkeeper/internal/modules/transactions"
)

// InitializeRepositories wires all repositories onto their databases.
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// Ledger repositories
	container.AccountRepo = accounts.NewRepository(container.LedgerDB.Conn(), log)
	container.TransactionRepo = transactions.NewRepository(container.LedgerDB.Conn(), log)

	// Plans repositories
	container.CategoryRepo = categories.NewRepository(container.PlansDB.Conn(), log)
	container.BudgetRepo = budgets.NewRepository(container.PlansDB.Conn(), log)
	container.RecurringRepo = recurring.NewRepository(container.PlansDB.Conn(), log)

	return nil
}
