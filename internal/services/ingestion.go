package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/VictorGoic0/SpendSense/internal/data/dberr"
	"github.com/VictorGoic0/SpendSense/internal/data/repos"
	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

// ingestBatchSize bounds one transaction insert statement.
const ingestBatchSize = 1000

// IngestPayload is one bulk load. Sections may be empty; insert order follows
// the foreign key graph so the whole payload lands in one transaction.
type IngestPayload struct {
	Users        []*types.User         `json:"users"`
	Accounts     []*types.Account      `json:"accounts"`
	Transactions []*types.Transaction  `json:"transactions"`
	Liabilities  []*types.Liability    `json:"liabilities"`
	Products     []*types.ProductOffer `json:"products"`
}

func (p *IngestPayload) isEmpty() bool {
	return len(p.Users) == 0 && len(p.Accounts) == 0 && len(p.Transactions) == 0 &&
		len(p.Liabilities) == 0 && len(p.Products) == 0
}

// IngestResult reports how many rows each section actually inserted or
// updated. Re-ingested rows that changed nothing are not counted.
type IngestResult struct {
	Status     string         `json:"status"`
	Ingested   map[string]int `json:"ingested"`
	DurationMS int            `json:"duration_ms"`
}

type IngestionService interface {
	Ingest(ctx context.Context, payload *IngestPayload) (*IngestResult, error)
}

type ingestionService struct {
	db          *gorm.DB
	log         *logger.Logger
	users       repos.UserRepo
	accounts    repos.AccountRepo
	txns        repos.TransactionRepo
	liabilities repos.LiabilityRepo
	products    repos.ProductOfferRepo
}

func NewIngestionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	users repos.UserRepo,
	accounts repos.AccountRepo,
	txns repos.TransactionRepo,
	liabilities repos.LiabilityRepo,
	products repos.ProductOfferRepo,
) IngestionService {
	return &ingestionService{
		db:          db,
		log:         baseLog.With("service", "IngestionService"),
		users:       users,
		accounts:    accounts,
		txns:        txns,
		liabilities: liabilities,
		products:    products,
	}
}

// Ingest loads users, then accounts, transactions (batched), liabilities and
// products. Everything commits or nothing does; conflicting rows surface as
// conflict faults through the dberr mapping.
func (s *ingestionService) Ingest(ctx context.Context, payload *IngestPayload) (*IngestResult, error) {
	const op = "IngestionService.Ingest"
	if payload == nil || payload.isEmpty() {
		return nil, fault.New(fault.CodeValidation, op, "empty payload", nil)
	}

	start := time.Now()
	counts := map[string]int{
		"users":        0,
		"accounts":     0,
		"transactions": 0,
		"liabilities":  0,
		"products":     0,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		n, err := s.users.UpsertBatch(dbc, payload.Users)
		if err != nil {
			return dberr.MapError(op, err)
		}
		counts["users"] = n

		n, err = s.accounts.UpsertBatch(dbc, payload.Accounts)
		if err != nil {
			return dberr.MapError(op, err)
		}
		counts["accounts"] = n

		for offset := 0; offset < len(payload.Transactions); offset += ingestBatchSize {
			end := min(offset+ingestBatchSize, len(payload.Transactions))
			n, err = s.txns.UpsertBatch(dbc, payload.Transactions[offset:end])
			if err != nil {
				return dberr.MapError(op, err)
			}
			counts["transactions"] += n
		}

		n, err = s.liabilities.UpsertBatch(dbc, payload.Liabilities)
		if err != nil {
			return dberr.MapError(op, err)
		}
		counts["liabilities"] = n

		n, err = s.products.UpsertBatch(dbc, payload.Products)
		if err != nil {
			return dberr.MapError(op, err)
		}
		counts["products"] = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	durationMS := int(time.Since(start).Milliseconds())
	s.log.Info("Ingestion completed",
		"users", counts["users"],
		"accounts", counts["accounts"],
		"transactions", counts["transactions"],
		"liabilities", counts["liabilities"],
		"products", counts["products"],
		"duration_ms", durationMS,
	)
	return &IngestResult{Status: "success", Ingested: counts, DurationMS: durationMS}, nil
}
