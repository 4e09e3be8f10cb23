package blockchain

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quorumsig/multisigd/pkg/core"
	pkgTesting "github.com/quorumsig/multisigd/pkg/testing"
	"github.com/quorumsig/multisigd/pkg/witness"
)

func signedTx(t *testing.T) ([]byte, core.TxHash) {
	alice := pkgTesting.NewSigner(t, 1, core.Testnet)
	tx := pkgTesting.Sign(t, pkgTesting.NewTxBody(t, 1000), alice)
	decoded, err := witness.Decode(tx)
	require.Nil(t, err)
	return tx, decoded.ID()
}

func TestMsgSender_SendMessage(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		body      string
		wantCalls int32
		wantKind  core.Kind
	}{
		{
			name:      "accepted with ledger id",
			statuses:  []int{http.StatusAccepted},
			body:      `"%s"`,
			wantCalls: 1,
		},
		{
			name:      "accepted without json body",
			statuses:  []int{http.StatusOK},
			body:      `ok`,
			wantCalls: 1,
		},
		{
			name:      "server error then success",
			statuses:  []int{http.StatusBadGateway, http.StatusTooManyRequests, http.StatusOK},
			body:      `"%s"`,
			wantCalls: 3,
		},
		{
			name:      "rejected is not retried",
			statuses:  []int{http.StatusBadRequest},
			body:      `{"error":"BadInputsUTxO"}`,
			wantCalls: 1,
			wantKind:  core.KindSubmissionFailed,
		},
		{
			name:      "server errors exhaust attempts",
			statuses:  []int{500, 500, 500},
			wantCalls: 3,
			wantKind:  core.KindSubmissionFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, id := signedTx(t)
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				require.Equal(t, "application/cbor", r.Header.Get("Content-Type"))
				require.Equal(t, "project", r.Header.Get("project_id"))
				got, _ := io.ReadAll(r.Body)
				require.Equal(t, tx, got)
				status := tt.statuses[int(n)-1]
				w.WriteHeader(status)
				if status/100 == 2 && tt.body == `"%s"` {
					_, _ = io.WriteString(w, `"`+id.Hex()+`"`)
					return
				}
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			ms := NewMsgSender(zap.NewNop(), srv.URL, WithProjectID("project"), WithAttempts(3, time.Millisecond))
			hash, err := ms.SendMessage(context.Background(), tx)
			require.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
			if tt.wantKind != core.KindInternal {
				require.Equal(t, tt.wantKind, core.KindOf(err))
				return
			}
			require.Nil(t, err)
			require.Equal(t, id, hash)
		})
	}
}

func TestMsgSender_TimeoutIsUnknown(t *testing.T) {
	tx, _ := signedTx(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	ms := NewMsgSender(zap.NewNop(), srv.URL, WithAttempts(3, time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := ms.SendMessage(ctx, tx)
	require.ErrorIs(t, err, core.ErrSubmissionUnknown)
}

func TestMsgSender_UnreachableIsFailed(t *testing.T) {
	tx, _ := signedTx(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ms := NewMsgSender(zap.NewNop(), url, WithAttempts(2, time.Millisecond))
	_, err := ms.SendMessage(context.Background(), tx)
	require.ErrorIs(t, err, core.ErrSubmissionFailed)
}

func TestMsgSender_RemembersAccepted(t *testing.T) {
	tx, id := signedTx(t)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = io.WriteString(w, `"`+id.Hex()+`"`)
	}))
	defer srv.Close()

	ms := NewMsgSender(zap.NewNop(), srv.URL)
	for i := 0; i < 3; i++ {
		hash, err := ms.SendMessage(context.Background(), tx)
		require.Nil(t, err)
		require.Equal(t, id, hash)
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMsgSender_dropExpired(t *testing.T) {
	now := time.Now().Unix()
	ms := &MsgSender{recent: map[string]int64{
		"fresh": now,
		"old":   now - int64(recentTTL.Seconds()) - 1,
	}}
	ms.dropExpired(now)
	require.Equal(t, map[string]int64{"fresh": now}, ms.recent)
}

func TestMsgSender_Malformed(t *testing.T) {
	ms := NewMsgSender(zap.NewNop(), "http://127.0.0.1:1")
	_, err := ms.SendMessage(context.Background(), []byte{0x01})
	require.ErrorIs(t, err, core.ErrMalformedTransaction)
}
