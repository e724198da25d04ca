package composer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"token-risk/internal/server/classifier"
	"token-risk/internal/server/model"
	"token-risk/pkg/solscan"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testCA = "So11111111111111111111111111111111111111112"

type fakeMarket struct {
	mu sync.Mutex

	supply    int64
	holders   *int64
	decimals  *int
	twitter   string
	metaErr   error
	transfers []model.TransferRecord
	trErr     error
	anomalies []model.Anomaly

	metaCalls     int
	transferCalls int
	gotCodes      []string
	gotLimit      int
}

func (f *fakeMarket) GetTokenMeta(ctx context.Context, address string) (*model.TokenMetadata, []model.Anomaly, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaCalls++
	if f.metaErr != nil {
		return nil, nil, f.metaErr
	}
	meta := model.NewTokenMetadata(address)
	meta.Symbol = "SHRK"
	meta.TotalSupply = decimal.NewFromInt(f.supply)
	meta.HolderCount = f.holders
	meta.Decimals = f.decimals
	if f.twitter != "" {
		meta.Twitter = f.twitter
	}
	return meta, f.anomalies, nil
}

func (f *fakeMarket) GetEarliestTransfers(ctx context.Context, address string, codes []string, limit int) ([]model.TransferRecord, []model.Anomaly, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transferCalls++
	f.gotCodes = codes
	f.gotLimit = limit
	return f.transfers, nil, f.trErr
}

func (f *fakeMarket) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metaCalls, f.transferCalls
}

type fakeSupply struct {
	value decimal.Decimal
	err   error
	calls int
}

func (f *fakeSupply) TokenSupply(ctx context.Context, mint solana.PublicKey) (decimal.Decimal, error) {
	f.calls++
	return f.value, f.err
}

type fakeChat struct {
	reply    string
	err      error
	persona  string
	gotText  string
	gotLines []string
}

func (f *fakeChat) Respond(ctx context.Context, persona, text string, history []string) (string, error) {
	f.persona, f.gotText, f.gotLines = persona, text, history
	return f.reply, f.err
}

func transfers(amounts map[string][]int64) []model.TransferRecord {
	var out []model.TransferRecord
	base := time.Unix(1700000000, 0).UTC()
	i := 0
	for to, list := range amounts {
		for _, a := range list {
			out = append(out, model.TransferRecord{
				TransactionID: fmt.Sprintf("tx%d", i),
				Timestamp:     base.Add(time.Duration(i) * time.Second),
				ToAddress:     to,
				Amount:        decimal.NewFromInt(a),
			})
			i++
		}
	}
	return out
}

func testOptions() Options {
	return Options{
		ActivityTypes:     []string{"transfer"},
		SampleSize:        20,
		InsiderCheck:      true,
		InsiderMinRepeats: 1,
		Persona:           "ogre",
		Timeout:           5 * time.Second,
	}
}

func newComposer(t *testing.T, opts Options, market MarketData, supply SupplyReader, chat Responder) *Composer {
	t.Helper()
	c, err := New(opts, market, supply, chat, classifier.MustDefault(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestHandle_ChatBypassesProvider(t *testing.T) {
	market := &fakeMarket{}
	chat := &fakeChat{reply: "The swamp sees all."}
	c := newComposer(t, testOptions(), market, nil, chat)

	res := c.Handle(context.Background(), "what is the meaning of life", []string{"User: hi"})

	assert.True(t, res.IsChat())
	assert.Equal(t, "The swamp sees all.", res.Response)
	assert.Equal(t, "ogre", chat.persona)
	assert.Equal(t, []string{"User: hi"}, chat.gotLines)
	assert.Nil(t, res.Risk)
	metaCalls, transferCalls := market.calls()
	assert.Zero(t, metaCalls)
	assert.Zero(t, transferCalls)
	assert.Equal(t, "chat", Outcome(res))
}

func TestHandle_ChatFailureUsesFallback(t *testing.T) {
	for name, chat := range map[string]Responder{
		"error": &fakeChat{err: errors.New("rate limited")},
		"empty": &fakeChat{},
		"nil":   nil,
	} {
		t.Run(name, func(t *testing.T) {
			c := newComposer(t, testOptions(), &fakeMarket{}, nil, chat)
			res := c.Handle(context.Background(), "hello ogre", nil)
			assert.Equal(t, FallbackResponse, res.Response)
			assert.Empty(t, res.ContractAddress)
		})
	}
}

func TestHandle_AnalyzesContractAddress(t *testing.T) {
	market := &fakeMarket{
		supply:   1000,
		decimals: intPtr(0),
		transfers: transfers(map[string][]int64{
			"walletA": {50, 50},
			"walletB": {100},
		}),
	}
	c := newComposer(t, testOptions(), market, nil, nil)

	res := c.Handle(context.Background(), "check "+testCA+" please", nil)

	require.Nil(t, res.Error)
	assert.Equal(t, testCA, res.ContractAddress)
	require.NotNil(t, res.TokenInfo)
	require.NotNil(t, res.Concentration)
	require.NotNil(t, res.Concentration.SupplyPercentage)
	assert.Equal(t, 20.0, *res.Concentration.SupplyPercentage)
	assert.Equal(t, "200", res.Concentration.TotalAcquired)
	assert.Equal(t, 3, res.Concentration.SampleSize)
	require.NotNil(t, res.Risk)
	assert.Equal(t, "Elevated", res.Risk.Tier)
	assert.NotEmpty(t, res.Risk.Rationale)
	require.NotNil(t, res.Signals)
	assert.True(t, res.Signals.InsiderSuspected)
	assert.Equal(t, []string{"walletA"}, res.Signals.RepeatRecipients)
	assert.Contains(t, res.Message, "20.00%")
	assert.Contains(t, res.Message, "Elevated")
	assert.Equal(t, "analyzed", Outcome(res))

	assert.Equal(t, []string{"ACTIVITY_SPL_TRANSFER"}, market.gotCodes)
	assert.Equal(t, 20, market.gotLimit)
}

func TestHandle_ProviderUnavailableIsDegraded(t *testing.T) {
	market := &fakeMarket{metaErr: fmt.Errorf("token_meta: %w", solscan.ErrProviderUnavailable)}
	c := newComposer(t, testOptions(), market, nil, nil)

	res := c.Handle(context.Background(), testCA, nil)

	require.NotNil(t, res.Error)
	assert.Equal(t, model.FailureProviderUnavailable, res.Error.Kind)
	assert.Contains(t, res.Message, "try again")
	assert.Nil(t, res.Risk)
	assert.Nil(t, res.Concentration)
	assert.Equal(t, testCA, res.ContractAddress)
	assert.Equal(t, "degraded", Outcome(res))
}

func TestHandle_UnknownToken(t *testing.T) {
	market := &fakeMarket{metaErr: solscan.ErrUnknownToken}
	c := newComposer(t, testOptions(), market, nil, nil)

	res := c.Handle(context.Background(), testCA, nil)

	require.NotNil(t, res.Error)
	assert.Equal(t, model.FailureUnknownToken, res.Error.Kind)
	assert.Nil(t, res.Risk)
}

func TestHandle_TransferFailureKeepsMetadata(t *testing.T) {
	market := &fakeMarket{supply: 1000, trErr: solscan.ErrProviderUnavailable}
	c := newComposer(t, testOptions(), market, nil, nil)

	res := c.Handle(context.Background(), testCA, nil)

	require.NotNil(t, res.Error)
	assert.Equal(t, model.FailureProviderUnavailable, res.Error.Kind)
	assert.NotNil(t, res.TokenInfo)
	require.NotNil(t, res.Concentration)
	assert.True(t, res.Concentration.InsufficientData)
	assert.Nil(t, res.Risk)
}

func TestHandle_NoTransfersIsInsufficientData(t *testing.T) {
	market := &fakeMarket{supply: 1000}
	c := newComposer(t, testOptions(), market, nil, nil)

	res := c.Handle(context.Background(), testCA, nil)

	require.NotNil(t, res.Concentration)
	assert.True(t, res.Concentration.InsufficientData)
	assert.Equal(t, model.FailureInsufficientData, res.Concentration.Reason)
	assert.Nil(t, res.Concentration.SupplyPercentage)
	assert.Nil(t, res.Risk)
	assert.Equal(t, "insufficient_data", Outcome(res))
}

func TestHandle_UnknownSupplyReportsZero(t *testing.T) {
	market := &fakeMarket{transfers: transfers(map[string][]int64{"walletA": {500}})}
	c := newComposer(t, testOptions(), market, nil, nil)

	res := c.Handle(context.Background(), testCA, nil)

	require.NotNil(t, res.Concentration)
	require.NotNil(t, res.Concentration.SupplyPercentage)
	assert.Zero(t, *res.Concentration.SupplyPercentage)
	require.NotNil(t, res.Risk)
	assert.Equal(t, "Low", res.Risk.Tier)
	assert.Contains(t, res.Message, "total supply is unknown")
}

func TestHandle_SupplyFallback(t *testing.T) {
	market := &fakeMarket{transfers: transfers(map[string][]int64{"walletA": {200}})}
	supply := &fakeSupply{value: decimal.NewFromInt(400)}
	c := newComposer(t, testOptions(), market, supply, nil)

	res := c.Handle(context.Background(), testCA, nil)

	assert.Equal(t, 1, supply.calls)
	require.NotNil(t, res.Concentration.SupplyPercentage)
	assert.Equal(t, 50.0, *res.Concentration.SupplyPercentage)
	assert.Equal(t, "High", res.Risk.Tier)
	assert.True(t, res.TokenInfo.TotalSupply.Equal(decimal.NewFromInt(400)))
}

func TestHandle_SupplyFallbackSkippedWhenKnown(t *testing.T) {
	market := &fakeMarket{supply: 1000, transfers: transfers(map[string][]int64{"walletA": {1}})}
	supply := &fakeSupply{value: decimal.NewFromInt(1)}
	c := newComposer(t, testOptions(), market, supply, nil)

	c.Handle(context.Background(), testCA, nil)
	assert.Zero(t, supply.calls)
}

func TestHandle_SupplyFallbackFailureIsIgnored(t *testing.T) {
	market := &fakeMarket{transfers: transfers(map[string][]int64{"walletA": {1}})}
	supply := &fakeSupply{err: errors.New("rpc down")}
	c := newComposer(t, testOptions(), market, supply, nil)

	res := c.Handle(context.Background(), testCA, nil)
	assert.Nil(t, res.Error)
	assert.Equal(t, "Low", res.Risk.Tier)
}

func TestHandle_HolderSignal(t *testing.T) {
	opts := testOptions()
	opts.HolderCheck = true
	opts.MinHolders = 100
	market := &fakeMarket{
		supply:    1000,
		holders:   int64Ptr(12),
		transfers: transfers(map[string][]int64{"walletA": {1}}),
	}
	c := newComposer(t, opts, market, nil, nil)

	res := c.Handle(context.Background(), testCA, nil)

	require.NotNil(t, res.Signals)
	assert.True(t, res.Signals.LowHolderCount)
	assert.False(t, res.Signals.InsiderSuspected)
	assert.EqualValues(t, 12, *res.Signals.HolderCount)
	assert.Equal(t, "Low", res.Risk.Tier)
}

func TestHandle_SocialsSignal(t *testing.T) {
	opts := testOptions()
	opts.InsiderCheck = false
	opts.SocialsCheck = true
	market := &fakeMarket{supply: 1000, transfers: transfers(map[string][]int64{"walletA": {1}})}
	c := newComposer(t, opts, market, nil, nil)

	res := c.Handle(context.Background(), testCA, nil)

	require.NotNil(t, res.Signals)
	assert.True(t, res.Signals.MissingSocials)
	assert.Equal(t, "Low", res.Risk.Tier)

	market.twitter = "https://x.com/shrek"
	res = c.Handle(context.Background(), testCA, nil)
	require.NotNil(t, res.Signals)
	assert.False(t, res.Signals.MissingSocials)
}

func TestHandle_SignalsOmittedWhenDisabled(t *testing.T) {
	opts := testOptions()
	opts.InsiderCheck = false
	market := &fakeMarket{supply: 1000, transfers: transfers(map[string][]int64{"walletA": {1, 1}})}
	c := newComposer(t, opts, market, nil, nil)

	res := c.Handle(context.Background(), testCA, nil)
	assert.Nil(t, res.Signals)
}

func TestSetClassifier_SwapsTable(t *testing.T) {
	market := &fakeMarket{supply: 1000, transfers: transfers(map[string][]int64{"walletA": {50}})}
	c := newComposer(t, testOptions(), market, nil, nil)
	assert.Equal(t, "Low", c.Handle(context.Background(), testCA, nil).Risk.Tier)

	strict, err := classifier.New([]classifier.Band{
		{Lower: 0, Tier: classifier.TierLow, Rationale: "tiny"},
		{Lower: 1, Tier: classifier.TierSevere, Rationale: "anything counts"},
	})
	require.NoError(t, err)
	c.SetClassifier(strict)
	c.SetClassifier(nil)

	res := c.Handle(context.Background(), testCA, nil)
	assert.Equal(t, "Severe", res.Risk.Tier)
	assert.Equal(t, "anything counts", res.Risk.Rationale)
}

func TestNew_Validation(t *testing.T) {
	opts := testOptions()
	opts.ActivityTypes = []string{"teleport"}
	_, err := New(opts, &fakeMarket{}, nil, nil, classifier.MustDefault(), zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "teleport")

	_, err = New(testOptions(), nil, nil, nil, classifier.MustDefault(), zaptest.NewLogger(t))
	assert.Error(t, err)

	_, err = New(testOptions(), &fakeMarket{}, nil, nil, nil, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestFailureKindOf(t *testing.T) {
	assert.Equal(t, model.FailureKind(""), FailureKindOf(nil))
	assert.Equal(t, model.FailureUnknownToken, FailureKindOf(fmt.Errorf("x: %w", solscan.ErrUnknownToken)))
	assert.Equal(t, model.FailureProviderUnavailable, FailureKindOf(context.DeadlineExceeded))
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
