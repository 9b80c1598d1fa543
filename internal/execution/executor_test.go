package execution

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-trader/internal/domain"
	"solana-trader/internal/solana"
	"solana-trader/internal/storage/memory"
)

type fakeQuoter struct {
	quoteCalls int
	buildCalls int
	outAmount  uint64
	quoteErr   error
	buildErr   error
}

func (q *fakeQuoter) GetQuote(_ context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*domain.Quote, error) {
	q.quoteCalls++
	if q.quoteErr != nil {
		return nil, q.quoteErr
	}
	return &domain.Quote{
		InputMint:  inputMint,
		OutputMint: outputMint,
		InAmount:   amount,
		OutAmount:  q.outAmount,
	}, nil
}

func (q *fakeQuoter) BuildSwapTransaction(context.Context, *domain.Quote, string) ([]byte, error) {
	q.buildCalls++
	if q.buildErr != nil {
		return nil, q.buildErr
	}
	return []byte{0x01, 0x00}, nil
}

type fakeSigner struct {
	signErr error
}

func (s *fakeSigner) PublicKey() string { return "FakePubkey1111111111111111111111" }

func (s *fakeSigner) SignTransaction(rawTx []byte) ([]byte, error) {
	if s.signErr != nil {
		return nil, s.signErr
	}
	return rawTx, nil
}

type fakeConfirmer struct {
	calls     int
	result    solana.ConfirmResult
	submitErr error
}

func (c *fakeConfirmer) SubmitAndConfirm(context.Context, []byte, time.Duration) (solana.ConfirmResult, error) {
	c.calls++
	if c.submitErr != nil {
		return solana.ConfirmResult{}, c.submitErr
	}
	return c.result, nil
}

type fakeGate struct {
	calls   int
	allowed bool
	reason  string
	err     error
}

func (g *fakeGate) CheckLimits(context.Context) (bool, string, error) {
	g.calls++
	return g.allowed, g.reason, g.err
}

type fakeFees struct {
	lamports uint64
	err      error
}

func (f *fakeFees) GetTransactionFee(context.Context, string) (uint64, error) {
	return f.lamports, f.err
}

type fixture struct {
	quoter    *fakeQuoter
	confirmer *fakeConfirmer
	gate      *fakeGate
	store     *memory.ExecutionStore
	executor  *Executor
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		quoter:    &fakeQuoter{outAmount: 5000000},
		confirmer: &fakeConfirmer{},
		gate:      &fakeGate{allowed: true},
		store:     memory.NewExecutionStore(),
	}
	f.executor = NewExecutor(f.quoter, &fakeSigner{}, f.confirmer, f.gate, f.store,
		Config{MaxTradeAmountSOL: 0.1, ConfirmationTimeout: 30 * time.Second}, opts...)
	return f
}

func buyRequest(dryRun bool) domain.TradeRequest {
	return domain.TradeRequest{
		Action:      domain.ActionBuy,
		AmountSOL:   0.01,
		SlippageBps: 50,
		DryRun:      dryRun,
	}
}

func TestExecuteTrade_DryRunNeverSubmits(t *testing.T) {
	f := newFixture(t)
	// Even a blocking gate must not matter: dry runs bypass it.
	f.gate.allowed = false
	f.gate.reason = "daily trade limit reached (5/5)"

	rec := f.executor.ExecuteTrade(context.Background(), buyRequest(true))

	assert.Equal(t, domain.StatusDryRun, rec.Status)
	assert.Nil(t, rec.TransactionSignature)
	assert.Equal(t, 0, f.gate.calls)
	assert.Equal(t, 0, f.quoter.buildCalls)
	assert.Equal(t, 0, f.confirmer.calls)
}

func TestExecuteTrade_BuyDryRunExpectedOutput(t *testing.T) {
	f := newFixture(t)
	f.quoter.outAmount = 5000000 // lamports

	rec := f.executor.ExecuteTrade(context.Background(), buyRequest(true))

	assert.Equal(t, domain.StatusDryRun, rec.Status)
	require.NotNil(t, rec.ExpectedOutput)
	assert.InDelta(t, 0.005, *rec.ExpectedOutput, 1e-12)
	assert.Nil(t, rec.TransactionSignature)
	assert.Equal(t, 0, f.confirmer.calls)
	assert.Equal(t, domain.USDTMint, rec.InputToken)
	assert.Equal(t, domain.SOLMint, rec.OutputToken)
}

func TestExecuteTrade_AmountCapBlocksWithoutNetworkCalls(t *testing.T) {
	for _, dryRun := range []bool{false, true} {
		f := newFixture(t)
		req := buyRequest(dryRun)
		req.AmountSOL = 0.5 // above the 0.1 cap

		rec := f.executor.ExecuteTrade(context.Background(), req)

		assert.Equal(t, domain.StatusFailed, rec.Status)
		require.NotNil(t, rec.ErrorMessage)
		assert.Contains(t, *rec.ErrorMessage, "max trade size")
		assert.Equal(t, 0, f.quoter.quoteCalls)
		assert.Equal(t, 0, f.quoter.buildCalls)
		assert.Equal(t, 0, f.confirmer.calls)
	}
}

func TestExecuteTrade_InvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  domain.TradeRequest
		want string
	}{
		{"bad action", domain.TradeRequest{Action: "HOLD", AmountSOL: 0.01}, "invalid action"},
		{"zero amount", domain.TradeRequest{Action: domain.ActionBuy, AmountSOL: 0}, "must be positive"},
		{"negative amount", domain.TradeRequest{Action: domain.ActionSell, AmountSOL: -1}, "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.executor.ExecuteTrade(context.Background(), tt.req)

			assert.Equal(t, domain.StatusFailed, rec.Status)
			require.NotNil(t, rec.ErrorMessage)
			assert.Contains(t, *rec.ErrorMessage, tt.want)
			assert.Equal(t, 0, f.quoter.quoteCalls)
			assert.Equal(t, 0, f.confirmer.calls)
		})
	}
}

func TestExecuteTrade_GateBlocksLiveButNotDryRun(t *testing.T) {
	f := newFixture(t)
	f.gate.allowed = false
	f.gate.reason = "daily trade limit reached (5/5)"

	live := f.executor.ExecuteTrade(context.Background(), buyRequest(false))
	assert.Equal(t, domain.StatusFailed, live.Status)
	require.NotNil(t, live.ErrorMessage)
	assert.Contains(t, *live.ErrorMessage, "daily trade limit")
	assert.Equal(t, 0, f.quoter.quoteCalls)

	probe := f.executor.ExecuteTrade(context.Background(), buyRequest(true))
	assert.Equal(t, domain.StatusDryRun, probe.Status)
}

func TestExecuteTrade_GateErrorFails(t *testing.T) {
	f := newFixture(t)
	f.gate.err = errors.New("store down")

	rec := f.executor.ExecuteTrade(context.Background(), buyRequest(false))

	assert.Equal(t, domain.StatusFailed, rec.Status)
	require.NotNil(t, rec.ErrorMessage)
	assert.Contains(t, *rec.ErrorMessage, "risk check failed")
	assert.Equal(t, 0, f.quoter.quoteCalls)
}

func TestExecuteTrade_QuoteFailure(t *testing.T) {
	f := newFixture(t)
	f.quoter.quoteErr = errors.New("jupiter: quote unavailable")

	rec := f.executor.ExecuteTrade(context.Background(), buyRequest(false))

	assert.Equal(t, domain.StatusFailed, rec.Status)
	require.NotNil(t, rec.ErrorMessage)
	assert.Contains(t, *rec.ErrorMessage, "quote unavailable")
	assert.Equal(t, 0, f.confirmer.calls)
}

func TestExecuteTrade_LiveSuccess(t *testing.T) {
	f := newFixture(t, WithFeeReader(&fakeFees{lamports: 5200}))
	f.confirmer.result = solana.ConfirmResult{
		Signature: "SIG1",
		State:     solana.StateConfirmedSuccess,
		Polls:     3,
	}

	rec := f.executor.ExecuteTrade(context.Background(), buyRequest(false))

	assert.Equal(t, domain.StatusSuccess, rec.Status)
	require.NotNil(t, rec.TransactionSignature)
	assert.Equal(t, "SIG1", *rec.TransactionSignature)
	require.NotNil(t, rec.OutputAmount)
	assert.InDelta(t, 0.005, *rec.OutputAmount, 1e-12)
	require.NotNil(t, rec.FeeSOL)
	assert.InDelta(t, 0.0000052, *rec.FeeSOL, 1e-12)
	assert.Equal(t, 1, f.gate.calls)
	assert.Equal(t, 1, f.quoter.buildCalls)

	// Persisted before return, retrievable by signature.
	saved, err := f.store.GetBySignature(context.Background(), "SIG1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, saved.ID)
}

func TestExecuteTrade_FeeFallsBackToApproximation(t *testing.T) {
	f := newFixture(t, WithFeeReader(&fakeFees{err: errors.New("not found")}))
	f.confirmer.result = solana.ConfirmResult{
		Signature: "SIG2",
		State:     solana.StateConfirmedSuccess,
		Polls:     1,
	}

	rec := f.executor.ExecuteTrade(context.Background(), buyRequest(false))

	require.NotNil(t, rec.FeeSOL)
	assert.InDelta(t, approxFeeSOL, *rec.FeeSOL, 1e-12)
}

func TestExecuteTrade_SellLiveOnChainFailure(t *testing.T) {
	f := newFixture(t)
	f.quoter.outAmount = 1500000 // USDT units
	f.confirmer.result = solana.ConfirmResult{
		Signature:  "SIG1",
		State:      solana.StateConfirmedFailed,
		OnChainErr: `{"InstructionError":[2,{"Custom":6001}]} SlippageToleranceExceeded`,
		Polls:      1,
	}

	rec := f.executor.ExecuteTrade(context.Background(), domain.TradeRequest{
		Action:      domain.ActionSell,
		AmountSOL:   0.01,
		SlippageBps: 50,
	})

	assert.Equal(t, domain.StatusFailed, rec.Status)
	assert.Nil(t, rec.TransactionSignature)
	require.NotNil(t, rec.ErrorMessage)
	assert.Contains(t, *rec.ErrorMessage, "SlippageToleranceExceeded")
	assert.Equal(t, domain.SOLMint, rec.InputToken)
	assert.Equal(t, domain.USDTMint, rec.OutputToken)

	// Even on-chain failures land in the audit log.
	recent, err := f.store.GetRecentExecutions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, rec.ID, recent[0].ID)
}

func TestExecuteTrade_TimeoutMentionsSignature(t *testing.T) {
	f := newFixture(t)
	f.confirmer.result = solana.ConfirmResult{
		Signature: "SIGTIMEOUT",
		State:     solana.StateTimedOut,
		Polls:     30,
	}

	rec := f.executor.ExecuteTrade(context.Background(), buyRequest(false))

	assert.Equal(t, domain.StatusFailed, rec.Status)
	assert.Nil(t, rec.TransactionSignature)
	require.NotNil(t, rec.ErrorMessage)
	assert.Contains(t, *rec.ErrorMessage, "timed out")
	assert.Contains(t, *rec.ErrorMessage, "SIGTIMEOUT")
}

func TestExecuteTrade_SubmitErrorFails(t *testing.T) {
	f := newFixture(t)
	f.confirmer.submitErr = errors.New("rpc unreachable")

	rec := f.executor.ExecuteTrade(context.Background(), buyRequest(false))

	assert.Equal(t, domain.StatusFailed, rec.Status)
	require.NotNil(t, rec.ErrorMessage)
	assert.Contains(t, *rec.ErrorMessage, "submission failed")
}

func TestExecuteTrade_SignFailure(t *testing.T) {
	f := &fixture{
		quoter:    &fakeQuoter{outAmount: 5000000},
		confirmer: &fakeConfirmer{},
		gate:      &fakeGate{allowed: true},
		store:     memory.NewExecutionStore(),
	}
	f.executor = NewExecutor(f.quoter, &fakeSigner{signErr: errors.New("bad tx")}, f.confirmer, f.gate, f.store,
		Config{MaxTradeAmountSOL: 0.1})

	rec := f.executor.ExecuteTrade(context.Background(), buyRequest(false))

	assert.Equal(t, domain.StatusFailed, rec.Status)
	require.NotNil(t, rec.ErrorMessage)
	assert.Contains(t, *rec.ErrorMessage, "signing failed")
	assert.Equal(t, 0, f.confirmer.calls)
}

func TestExecuteTrade_EveryPathPersists(t *testing.T) {
	cases := []struct {
		name  string
		setup func(*fixture)
		req   domain.TradeRequest
	}{
		{"invalid", func(*fixture) {}, domain.TradeRequest{Action: "X", AmountSOL: 1}},
		{"blocked", func(f *fixture) { f.gate.allowed = false; f.gate.reason = "hourly trade limit reached (3/3)" }, buyRequest(false)},
		{"quote error", func(f *fixture) { f.quoter.quoteErr = errors.New("down") }, buyRequest(false)},
		{"dry run", func(*fixture) {}, buyRequest(true)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tc.setup(f)

			rec := f.executor.ExecuteTrade(context.Background(), tc.req)

			recent, err := f.store.GetRecentExecutions(context.Background(), 10)
			require.NoError(t, err)
			require.Len(t, recent, 1)
			assert.Equal(t, rec.ID, recent[0].ID)
			if rec.Status == domain.StatusFailed {
				require.NotNil(t, rec.ErrorMessage)
				assert.False(t, strings.TrimSpace(*rec.ErrorMessage) == "")
			}
		})
	}
}
