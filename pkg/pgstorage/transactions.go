package pgstorage

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/quorumsig/multisigd/internal/g"
	"github.com/quorumsig/multisigd/pkg/core"
)

const transactionColumns = `id, wallet_id, description, tx_body, signed_addresses, rejected_addresses, state, final_hash, created_at, updated_at`

func (s *Storage) CreateTransaction(ctx context.Context, tx core.PendingTransaction) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO pending_transactions(`+transactionColumns+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		tx.ID, tx.WalletID, tx.Description, tx.TxBody,
		g.ToStrings(tx.Signed.Items()), g.ToStrings(tx.Rejected.Items()),
		int16(tx.State), g.NonZero(tx.FinalHash), tx.CreatedAt, tx.UpdatedAt)
	return errors.Wrap(err, "insert transaction")
}

func scanTransaction(row pgx.Row) (core.PendingTransaction, error) {
	var (
		tx        core.PendingTransaction
		signed    []string
		rejected  []string
		state     int16
		finalHash *string
	)
	err := row.Scan(&tx.ID, &tx.WalletID, &tx.Description, &tx.TxBody, &signed, &rejected, &state, &finalHash, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return tx, err
	}
	tx.Signed = core.NewAddressSet(g.FromStrings[core.Address](signed)...)
	tx.Rejected = core.NewAddressSet(g.FromStrings[core.Address](rejected)...)
	tx.State = core.TxState(state)
	tx.FinalHash = g.Deref(finalHash)
	return tx, nil
}

func (s *Storage) GetTransaction(ctx context.Context, id string) (core.PendingTransaction, error) {
	tx, err := scanTransaction(s.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM pending_transactions WHERE id=$1`, id))
	if isNoRows(err) {
		return tx, errors.Wrapf(core.ErrNotFound, "transaction %s", id)
	}
	return tx, err
}

func (s *Storage) ListTransactions(ctx context.Context, walletID string) ([]core.PendingTransaction, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+transactionColumns+` FROM pending_transactions WHERE wallet_id=$1 ORDER BY created_at`, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.PendingTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// UpdateTransaction writes next only if every mutable column still holds the
// values of prior. Zero affected rows means a concurrent writer won.
func (s *Storage) UpdateTransaction(ctx context.Context, prior, next core.PendingTransaction) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE pending_transactions SET
  tx_body=$2, signed_addresses=$3, rejected_addresses=$4, state=$5, final_hash=$6, updated_at=$7
WHERE id=$1
  AND tx_body=$8
  AND signed_addresses=$9
  AND rejected_addresses=$10
  AND state=$11
  AND final_hash IS NOT DISTINCT FROM $12`,
		prior.ID,
		next.TxBody, g.ToStrings(next.Signed.Items()), g.ToStrings(next.Rejected.Items()),
		int16(next.State), g.NonZero(next.FinalHash), next.UpdatedAt,
		prior.TxBody, g.ToStrings(prior.Signed.Items()), g.ToStrings(prior.Rejected.Items()),
		int16(prior.State), g.NonZero(prior.FinalHash))
	if err != nil {
		return errors.Wrap(err, "update transaction")
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pending_transactions WHERE id=$1)`, prior.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return errors.Wrapf(core.ErrNotFound, "transaction %s", prior.ID)
	}
	return core.ErrStale
}
