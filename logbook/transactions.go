package logbook

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fleetfuel/logbook/fuel"
)

// TransactionInput describes a refuel or a direct consumption. Date
// defaults to now.
type TransactionInput struct {
	Type        fuel.TxType
	Amount      decimal.Decimal
	TankType    fuel.TankType
	Date        string
	Description string
}

func validateTransaction(in TransactionInput) error {
	if !in.Type.Valid() {
		return &fuel.ValidationError{Field: "type", Err: fuel.ErrInvalidTxType}
	}
	if !in.TankType.Valid() {
		return &fuel.ValidationError{Field: "tankType", Err: fuel.ErrInvalidTank}
	}
	if !in.Amount.IsPositive() {
		return &fuel.ValidationError{Field: "amount", Err: fuel.ErrInvalidAmount}
	}
	return nil
}

// Transactions returns the tank transaction log, newest first.
func (b *Logbook) Transactions(ctx context.Context) ([]fuel.TankTransaction, error) {
	b.lock()
	defer b.unlock()
	return readLog[fuel.TankTransaction](ctx, b, KeyTransactions)
}

// AddTransaction records a refuel or consumption and recomputes the tanks.
func (b *Logbook) AddTransaction(ctx context.Context, in TransactionInput) (*fuel.TankTransaction, error) {
	if err := validateTransaction(in); err != nil {
		return nil, err
	}
	tx := fuel.TankTransaction{
		ID:          b.newID(),
		Type:        in.Type,
		Amount:      in.Amount,
		TankType:    in.TankType,
		Date:        in.Date,
		Description: in.Description,
	}
	if tx.Date == "" {
		tx.Date = b.timestamp()
	}

	b.lock()
	defer b.unlock()

	txs, err := readLog[fuel.TankTransaction](ctx, b, KeyTransactions)
	if err != nil {
		return nil, err
	}
	if err := b.write(ctx, KeyTransactions, prepend(txs, tx), Change{Key: KeyTransactions, Op: OpCreate, ID: tx.ID}); err != nil {
		return nil, err
	}
	if _, err := b.recompute(ctx); err != nil {
		return nil, err
	}

	b.log.WithFields(logrus.Fields{
		"tx_id":  tx.ID,
		"type":   tx.Type,
		"tank":   tx.TankType,
		"amount": tx.Amount.String(),
	}).Info("tank transaction added")
	return &tx, nil
}

// UpdateTransaction replaces the transaction with id. An empty Date keeps
// the recorded one.
func (b *Logbook) UpdateTransaction(ctx context.Context, id string, in TransactionInput) (*fuel.TankTransaction, error) {
	if err := validateTransaction(in); err != nil {
		return nil, err
	}

	b.lock()
	defer b.unlock()

	txs, err := readLog[fuel.TankTransaction](ctx, b, KeyTransactions)
	if err != nil {
		return nil, err
	}
	idx := indexOf(txs, func(tx fuel.TankTransaction) bool { return tx.ID == id })
	if idx < 0 {
		return nil, &fuel.NotFoundError{Kind: "transaction", ID: id}
	}
	tx := fuel.TankTransaction{
		ID:          id,
		Type:        in.Type,
		Amount:      in.Amount,
		TankType:    in.TankType,
		Date:        in.Date,
		Description: in.Description,
	}
	if tx.Date == "" {
		tx.Date = txs[idx].Date
	}
	txs[idx] = tx

	if err := b.write(ctx, KeyTransactions, txs, Change{Key: KeyTransactions, Op: OpUpdate, ID: id}); err != nil {
		return nil, err
	}
	if _, err := b.recompute(ctx); err != nil {
		return nil, err
	}

	b.log.WithField("tx_id", id).Info("tank transaction updated")
	return &tx, nil
}

// DeleteTransaction removes the transaction with id.
func (b *Logbook) DeleteTransaction(ctx context.Context, id string) error {
	b.lock()
	defer b.unlock()

	txs, err := readLog[fuel.TankTransaction](ctx, b, KeyTransactions)
	if err != nil {
		return err
	}
	idx := indexOf(txs, func(tx fuel.TankTransaction) bool { return tx.ID == id })
	if idx < 0 {
		return &fuel.NotFoundError{Kind: "transaction", ID: id}
	}
	txs = append(txs[:idx], txs[idx+1:]...)

	if err := b.write(ctx, KeyTransactions, txs, Change{Key: KeyTransactions, Op: OpDelete, ID: id}); err != nil {
		return err
	}
	if _, err := b.recompute(ctx); err != nil {
		return err
	}

	b.log.WithField("tx_id", id).Info("tank transaction deleted")
	return nil
}
