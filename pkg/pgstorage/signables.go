package pgstorage

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/quorumsig/multisigd/internal/g"
	"github.com/quorumsig/multisigd/pkg/core"
)

const signableColumns = `id, wallet_id, description, payload, signed_addresses, signatures, rejected_addresses, state, created_at, updated_at`

// A blob is stored as hex(key) + ":" + hex(signature).
func encodeBlobs(blobs []core.SignatureBlob) []string {
	out := make([]string, 0, len(blobs))
	for _, b := range blobs {
		out = append(out, hex.EncodeToString(b.Key)+":"+hex.EncodeToString(b.Signature))
	}
	return out
}

func decodeBlobs(in []string) ([]core.SignatureBlob, error) {
	out := make([]core.SignatureBlob, 0, len(in))
	for _, s := range in {
		var blob core.SignatureBlob
		key, sig, ok := strings.Cut(s, ":")
		if !ok {
			return nil, errors.Errorf("malformed signature blob %q", s)
		}
		var err error
		if blob.Key, err = hex.DecodeString(key); err != nil {
			return nil, errors.Wrap(err, "blob key")
		}
		if blob.Signature, err = hex.DecodeString(sig); err != nil {
			return nil, errors.Wrap(err, "blob signature")
		}
		out = append(out, blob)
	}
	return out, nil
}

func (s *Storage) CreateSignable(ctx context.Context, sg core.Signable) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO signables(`+signableColumns+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		sg.ID, sg.WalletID, sg.Description, sg.Payload,
		g.ToStrings(sg.Signed.Items()), encodeBlobs(sg.Signatures), g.ToStrings(sg.Rejected.Items()),
		int16(sg.State), sg.CreatedAt, sg.UpdatedAt)
	return errors.Wrap(err, "insert signable")
}

func scanSignable(row pgx.Row) (core.Signable, error) {
	var (
		sg         core.Signable
		signed     []string
		signatures []string
		rejected   []string
		state      int16
	)
	err := row.Scan(&sg.ID, &sg.WalletID, &sg.Description, &sg.Payload, &signed, &signatures, &rejected, &state, &sg.CreatedAt, &sg.UpdatedAt)
	if err != nil {
		return sg, err
	}
	sg.Signed = core.NewAddressSet(g.FromStrings[core.Address](signed)...)
	sg.Rejected = core.NewAddressSet(g.FromStrings[core.Address](rejected)...)
	sg.State = core.SignableState(state)
	sg.Signatures, err = decodeBlobs(signatures)
	return sg, err
}

func (s *Storage) GetSignable(ctx context.Context, id string) (core.Signable, error) {
	sg, err := scanSignable(s.pool.QueryRow(ctx, `SELECT `+signableColumns+` FROM signables WHERE id=$1`, id))
	if isNoRows(err) {
		return sg, errors.Wrapf(core.ErrNotFound, "signable %s", id)
	}
	return sg, err
}

func (s *Storage) ListSignables(ctx context.Context, walletID string) ([]core.Signable, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+signableColumns+` FROM signables WHERE wallet_id=$1 ORDER BY created_at`, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Signable
	for rows.Next() {
		sg, err := scanSignable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

func (s *Storage) UpdateSignable(ctx context.Context, prior, next core.Signable) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE signables SET
  signed_addresses=$2, signatures=$3, rejected_addresses=$4, state=$5, updated_at=$6
WHERE id=$1
  AND signed_addresses=$7
  AND signatures=$8
  AND rejected_addresses=$9
  AND state=$10`,
		prior.ID,
		g.ToStrings(next.Signed.Items()), encodeBlobs(next.Signatures), g.ToStrings(next.Rejected.Items()),
		int16(next.State), next.UpdatedAt,
		g.ToStrings(prior.Signed.Items()), encodeBlobs(prior.Signatures), g.ToStrings(prior.Rejected.Items()),
		int16(prior.State))
	if err != nil {
		return errors.Wrap(err, "update signable")
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM signables WHERE id=$1)`, prior.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return errors.Wrapf(core.ErrNotFound, "signable %s", prior.ID)
	}
	return core.ErrStale
}
