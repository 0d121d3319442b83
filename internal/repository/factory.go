package repository

import (
	"github.com/telecare/billingcore/internal/domain/customer"
	"github.com/telecare/billingcore/internal/domain/invoice"
	"github.com/telecare/billingcore/internal/domain/recovery"
	"github.com/telecare/billingcore/internal/domain/webhookevent"
	"github.com/telecare/billingcore/internal/logger"
	"github.com/telecare/billingcore/internal/postgres"
	postgresRepo "github.com/telecare/billingcore/internal/repository/postgres"
)

func NewWebhookEventRepository(db *postgres.DB, logger *logger.Logger) webhookevent.Repository {
	return postgresRepo.NewWebhookEventRepository(db, logger)
}

func NewCustomerRepository(db *postgres.DB, logger *logger.Logger) customer.Repository {
	return postgresRepo.NewCustomerRepository(db, logger)
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(db, logger)
}

func NewRecoveryRepository(db *postgres.DB, logger *logger.Logger) recovery.Repository {
	return postgresRepo.NewRecoveryRepository(db, logger)
}
