package postgres

import (
	"github.com/creditoya/backend/internal/domain/loan"
	"github.com/creditoya/backend/internal/jobs"
	"github.com/creditoya/backend/internal/ws"
)

var (
	_ loan.Repository       = (*LoanRepository)(nil)
	_ loan.OutboxRepository = (*OutboxRepository)(nil)
	_ jobs.OutboxRepository = (*OutboxRepository)(nil)
	_ ws.PaymentEventSource = (*EventsRepository)(nil)
)
