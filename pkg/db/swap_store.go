package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/lisanmuaddib/stablepay/pkg/db/models"
	"github.com/lisanmuaddib/stablepay/pkg/swap"
	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultListLimit caps list queries that pass a non-positive limit.
const DefaultListLimit = 50

// SwapStore keeps the swap records seen by the event subscriber.
type SwapStore struct {
	mu      sync.RWMutex
	logger  *logrus.Logger
	db      *gorm.DB
	network string
}

// NewSwapStore creates a store that tags new rows with network.
func NewSwapStore(logger *logrus.Logger, db *gorm.DB, network string) *SwapStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &SwapStore{logger: logger, db: db, network: network}
}

// RecordToRow converts a swap record into a row for network.
func RecordToRow(network string, r swap.SwapRecord) (models.SwapRecord, error) {
	user, err := wallet.ValidateAddress(r.User)
	if err != nil {
		return models.SwapRecord{}, err
	}
	amounts := make([]decimal.Decimal, 3)
	for i, raw := range []string{r.FromAmount, r.ToAmount, r.TaxAmount} {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return models.SwapRecord{}, fmt.Errorf("invalid amount %q: %w", raw, err)
		}
		amounts[i] = d
	}
	observed, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		observed = time.Now().UTC()
	}
	return models.SwapRecord{
		TxHash:       r.TransactionHash,
		UserAddress:  user.Hex(),
		FromCurrency: r.FromCurrency,
		ToCurrency:   r.ToCurrency,
		FromAmount:   amounts[0],
		ToAmount:     amounts[1],
		TaxAmount:    amounts[2],
		Network:      network,
		ObservedAt:   observed,
	}, nil
}

// RowToRecord converts a stored row back into a swap record.
func RowToRecord(row models.SwapRecord) swap.SwapRecord {
	return swap.SwapRecord{
		User:            row.UserAddress,
		FromCurrency:    row.FromCurrency,
		ToCurrency:      row.ToCurrency,
		FromAmount:      row.FromAmount.String(),
		ToAmount:        row.ToAmount.String(),
		TaxAmount:       row.TaxAmount.String(),
		Timestamp:       row.ObservedAt.UTC().Format(time.RFC3339),
		TransactionHash: row.TxHash,
	}
}

// Save stores r and reports whether it was new. A record already stored for the
// same transaction and user is left untouched.
func (s *SwapStore) Save(ctx context.Context, r swap.SwapRecord) (bool, error) {
	row, err := RecordToRow(s.network, r)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tx_hash"}, {Name: "user_address"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		return false, fmt.Errorf("failed to save swap record: %w", result.Error)
	}

	inserted := result.RowsAffected > 0
	s.logger.WithFields(logrus.Fields{
		"tx_hash":  row.TxHash,
		"address":  row.UserAddress,
		"network":  row.Network,
		"inserted": inserted,
	}).Debug("Saved swap record")
	return inserted, nil
}

// ListByUser returns the newest records for user.
func (s *SwapStore) ListByUser(ctx context.Context, user string, limit int) ([]swap.SwapRecord, error) {
	return s.ListByUsers(ctx, []string{user}, limit)
}

// ListByUsers returns the newest records for any of users.
func (s *SwapStore) ListByUsers(ctx context.Context, users []string, limit int) ([]swap.SwapRecord, error) {
	addrs := make([]string, 0, len(users))
	for _, u := range users {
		addr, err := wallet.ValidateAddress(u)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr.Hex())
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []models.SwapRecord
	err := s.db.WithContext(ctx).
		Where("user_address = ANY(?)", pq.Array(lo.Uniq(addrs))).
		Order("observed_at DESC").
		Limit(listLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list swap records: %w", err)
	}
	return lo.Map(rows, func(r models.SwapRecord, _ int) swap.SwapRecord { return RowToRecord(r) }), nil
}

// Recent returns the newest records across all users.
func (s *SwapStore) Recent(ctx context.Context, limit int) ([]swap.SwapRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []models.SwapRecord
	err := s.db.WithContext(ctx).
		Order("observed_at DESC").
		Limit(listLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent swap records: %w", err)
	}
	return lo.Map(rows, func(r models.SwapRecord, _ int) swap.SwapRecord { return RowToRecord(r) }), nil
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// Close releases the store's connection pool.
func (s *SwapStore) Close() error {
	return Close(s.db)
}
