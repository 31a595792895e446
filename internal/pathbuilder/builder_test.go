package pathbuilder

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbcore/internal/dex"
	"arbcore/internal/model"
)

var (
	tokenA = common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
	tokenB = common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
	tokenC = common.HexToAddress("0x912CE59144191C1204E64559FE8253a0e49E6548")
	pool1  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	pool2  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	pool3  = common.HexToAddress("0x3333333333333333333333333333333333333333")

	testParams = Params{
		SlippageBps: 50,
		Initiator:   "0x00000000000000000000000000000000000000a1",
		Beneficiary: "0x00000000000000000000000000000000000000b2",
	}
)

func poolLeg(venue string, pool, in, out common.Address, fee uint32) model.Leg {
	return model.Leg{Venue: venue, Kind: model.VenueKindPool, Protocol: "uniswap_v3", Pool: pool, TokenIn: in, TokenOut: out, Fee: fee}
}

func twoHopOpp() model.Opportunity {
	return model.Opportunity{
		Strategy: model.StrategyTwoHop,
		Legs: []model.Leg{
			poolLeg("uni-005", pool1, tokenA, tokenB, 500),
			poolLeg("uni-030", pool2, tokenB, tokenA, 3000),
		},
	}
}

func sim(in int64, hops ...int64) *model.SimulationResult {
	out := make([]*big.Int, len(hops))
	for i, h := range hops {
		out[i] = big.NewInt(h)
	}
	return &model.SimulationResult{AmountIn: big.NewInt(in), HopOut: out}
}

func TestBuildTwoHop(t *testing.T) {
	res, err := Build(twoHopOpp(), sim(1000, 3000000, 1010), testParams)
	require.NoError(t, err)

	assert.Equal(t, FunctionTwoHop, res.FunctionName)
	assert.Equal(t, TwoHopParamsType, res.ParamsType)
	assert.Equal(t, tokenA, res.BorrowToken)
	assert.Equal(t, int64(1000), res.BorrowAmount.Int64())

	params, ok := res.Params.(TwoHopParams)
	require.True(t, ok)
	assert.Equal(t, tokenB, params.TokenIntermediate)
	assert.Equal(t, pool1, params.PoolA)
	assert.Equal(t, pool2, params.PoolB)
	assert.Equal(t, int64(3000), params.FeeB.Int64())
	assert.Equal(t, int64(2985000), params.AmountOutMinimum1.Int64())
	// 1010 * 9950 / 10000 = 1004.95, floored
	assert.Equal(t, int64(1004), params.AmountOutMinimum2.Int64())
	assert.Equal(t, params.AmountOutMinimum2, res.MinAmountOut)
}

func TestBuildGasEstimateZeroesMinimums(t *testing.T) {
	est := model.EstimationSimulation(2)
	res, err := Build(twoHopOpp(), est, testParams)
	require.NoError(t, err)

	params := res.Params.(TwoHopParams)
	assert.Zero(t, params.AmountOutMinimum1.Sign())
	assert.Zero(t, params.AmountOutMinimum2.Sign())
}

func TestUnitSizedTradeIsStillGuarded(t *testing.T) {
	// unit amounts without the estimate flag are a real trade
	_, err := Build(twoHopOpp(), sim(1, 1, 1), testParams)
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestMinAmountOutMonotonic(t *testing.T) {
	amounts := []int64{1000, 123456789, 999999999999}
	for _, amount := range amounts {
		prev := big.NewInt(amount)
		for bps := uint64(0); bps < bpsDenominator; bps += 37 {
			out, err := MinAmountOut(big.NewInt(amount), bps, false)
			if err != nil {
				require.ErrorIs(t, err, model.ErrValidation)
				break
			}
			assert.LessOrEqual(t, out.Cmp(prev), 0, "amount %d bps %d", amount, bps)
			assert.LessOrEqual(t, out.Cmp(big.NewInt(amount)), 0)
			prev = out
		}
	}

	out, err := MinAmountOut(big.NewInt(5), 10, true)
	require.NoError(t, err)
	assert.Zero(t, out.Sign())

	_, err = MinAmountOut(big.NewInt(5), bpsDenominator, false)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestBuildTriangular(t *testing.T) {
	opp := model.Opportunity{
		Strategy: model.StrategyTriangular,
		Legs: []model.Leg{
			poolLeg("a", pool1, tokenA, tokenB, 500),
			poolLeg("b", pool2, tokenB, tokenC, 3000),
			poolLeg("c", pool3, tokenC, tokenA, 10000),
		},
	}
	res, err := Build(opp, sim(1000, 2000, 3000, 1100), testParams)
	require.NoError(t, err)

	params := res.Params.(TriangularParams)
	assert.Equal(t, int64(1094), params.AmountOutMinimum.Int64())

	tokens, fees, err := dex.DecodePath(params.Path)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{tokenA, tokenB, tokenC, tokenA}, tokens)
	assert.Equal(t, []uint32{500, 3000, 10000}, fees)

	opp.Legs[1].Fee = 0
	_, err = Build(opp, sim(1000, 2000, 3000, 1100), testParams)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestBuildFlashLoan(t *testing.T) {
	opp := model.Opportunity{
		Strategy: model.StrategyFlashLoan,
		Legs: []model.Leg{
			poolLeg("uni", pool1, tokenA, tokenB, 500),
			{Venue: "sushi", Kind: model.VenueKindPool, Protocol: "sushiswap", Pool: pool2, TokenIn: tokenB, TokenOut: tokenA},
		},
	}
	res, err := Build(opp, sim(1000, 2000, 1100), testParams)
	require.NoError(t, err)

	params := res.Params.(FlashLoanParams)
	require.Len(t, params.Steps, 2)
	assert.Equal(t, uint8(0), params.Steps[0].Protocol)
	assert.Equal(t, uint8(1), params.Steps[1].Protocol)
	assert.Zero(t, params.Steps[0].MinOut.Sign())
	assert.Equal(t, int64(1094), params.Steps[1].MinOut.Int64())

	opp.Legs[1].Protocol = "balancer"
	_, err = Build(opp, sim(1000, 2000, 1100), testParams)
	assert.ErrorIs(t, err, model.ErrUnknownProtocol)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestBuildValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*model.Opportunity, *model.SimulationResult, *Params)
	}{
		{"bad initiator", func(_ *model.Opportunity, _ *model.SimulationResult, p *Params) { p.Initiator = "0x1234" }},
		{"zero beneficiary", func(_ *model.Opportunity, _ *model.SimulationResult, p *Params) {
			p.Beneficiary = "0x0000000000000000000000000000000000000000"
		}},
		{"missing fee", func(o *model.Opportunity, _ *model.SimulationResult, _ *Params) { o.Legs[0].Fee = 0 }},
		{"missing protocol", func(o *model.Opportunity, _ *model.SimulationResult, _ *Params) { o.Legs[1].Protocol = "" }},
		{"mixed protocol", func(o *model.Opportunity, _ *model.SimulationResult, _ *Params) { o.Legs[1].Protocol = "sushiswap" }},
		{"broken route", func(o *model.Opportunity, _ *model.SimulationResult, _ *Params) { o.Legs[1].TokenIn = tokenC }},
		{"extra leg", func(o *model.Opportunity, _ *model.SimulationResult, _ *Params) {
			o.Legs = append(o.Legs, poolLeg("x", pool3, tokenA, tokenB, 500))
		}},
		{"hop count", func(_ *model.Opportunity, s *model.SimulationResult, _ *Params) { s.HopOut = s.HopOut[:1] }},
		{"zero input", func(_ *model.Opportunity, s *model.SimulationResult, _ *Params) { s.AmountIn = big.NewInt(0) }},
		{"unknown strategy", func(o *model.Opportunity, _ *model.SimulationResult, _ *Params) { o.Strategy = 9 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opp := twoHopOpp()
			s := sim(1000, 2000, 1100)
			p := testParams
			tc.mutate(&opp, s, &p)
			_, err := Build(opp, s, p)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}

	_, err := Build(twoHopOpp(), nil, testParams)
	assert.ErrorIs(t, err, model.ErrValidation)
}
