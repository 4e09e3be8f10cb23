package pgstorage

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/quorumsig/multisigd/pkg/core"
)

const walletColumns = `id, name, network, policy, keys, stake_credential, stake_is_script, created_at`

func (s *Storage) SaveWallet(ctx context.Context, w core.Wallet) error {
	keys, err := json.Marshal(w.Keys)
	if err != nil {
		return errors.Wrap(err, "encode keys")
	}
	var stake *string
	var stakeIsScript bool
	if w.StakeCredential != nil {
		h := w.StakeCredential.Hex()
		stake, stakeIsScript = &h, w.StakeCredential.Script
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO wallets(`+walletColumns+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		w.ID, w.Name, int16(w.Network), w.Policy.String(), keys, stake, stakeIsScript, w.CreatedAt)
	return errors.Wrap(err, "insert wallet")
}

func scanWallet(row pgx.Row) (core.Wallet, error) {
	var (
		w             core.Wallet
		network       int16
		policy        string
		keys          []byte
		stake         *string
		stakeIsScript bool
	)
	if err := row.Scan(&w.ID, &w.Name, &network, &policy, &keys, &stake, &stakeIsScript, &w.CreatedAt); err != nil {
		return w, err
	}
	w.Network = core.Network(network)
	var err error
	if w.Policy, err = core.ParsePolicy(policy); err != nil {
		return w, err
	}
	if err := json.Unmarshal(keys, &w.Keys); err != nil {
		return w, errors.Wrap(err, "decode keys")
	}
	if stake != nil {
		cred, err := core.ParseCredential(*stake, stakeIsScript)
		if err != nil {
			return w, err
		}
		w.StakeCredential = &cred
	}
	return w, nil
}

func (s *Storage) GetWallet(ctx context.Context, id string) (core.Wallet, error) {
	w, err := scanWallet(s.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id=$1`, id))
	if isNoRows(err) {
		return w, errors.Wrapf(core.ErrNotFound, "wallet %s", id)
	}
	return w, err
}

func (s *Storage) ListWallets(ctx context.Context) ([]core.Wallet, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+walletColumns+` FROM wallets ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
