package pool_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"TermPool/internal/fees"
	"TermPool/internal/fixedpoint"
	"TermPool/internal/ledger"
	"TermPool/internal/pool"
	"TermPool/internal/vault"
)

const (
	day  = int64(60 * 60 * 24)
	year = int64(60 * 60 * 24 * 365)
)

func testConfig(f fees.Config) pool.Config {
	return pool.Config{
		InitialSharePrice:        fixedpoint.One(),
		TimeStretch:              fixedpoint.MustFromDec("0.05"),
		PositionDuration:         year,
		CheckpointDuration:       day,
		MinimumShareReserves:     fixedpoint.Scaled(10),
		MinimumTransactionAmount: fixedpoint.MustFromDec("0.001"),
		Fees:                     f,
		SolverMaxIterations:      20,
		SolverTolerance:          fixedpoint.MustFromDec("0.000000001"),
	}
}

func standardFees() fees.Config {
	return fees.Config{
		Curve:      fixedpoint.MustFromDec("0.1"),
		Flat:       fixedpoint.MustFromDec("0.01"),
		Governance: fixedpoint.MustFromDec("0.15"),
	}
}

type fixture struct {
	eng    *pool.Engine
	vault  *vault.Accruing
	ledger *ledger.Memory
	trader uuid.UUID
}

func newFixture(t *testing.T, f fees.Config) *fixture {
	t.Helper()
	v := vault.NewAccruing(fixedpoint.One())
	led := ledger.NewMemory()
	eng, err := pool.NewEngine(testConfig(f), v, led, zerolog.Nop(), nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return &fixture{eng: eng, vault: v, ledger: led, trader: uuid.New()}
}

// seed restores the reference reserves backed by matching vault capital:
// share reserves 1,000,000, bond reserves 1,050,000 at a share price of one.
func (fx *fixture) seed(t *testing.T) {
	t.Helper()
	if _, err := fx.vault.Deposit(fixedpoint.Scaled(1_000_000)); err != nil {
		t.Fatalf("vault seed: %v", err)
	}
	fx.eng.Restore(pool.State{
		ShareReserves: fixedpoint.Scaled(1_000_000),
		BondReserves:  fixedpoint.Scaled(1_050_000),
		LPTotalSupply: fixedpoint.Scaled(1_000_000).Sub(fixedpoint.Scaled(10)),
		IsInitialized: true,
	})
}

func assertClose(t *testing.T, got, want fixedpoint.FixedPoint, tolerance string, msg string) {
	t.Helper()
	tol := fixedpoint.MustFromDec(tolerance)
	diff := new(big.Int).Sub(got.Raw(), want.Raw())
	diff.Abs(diff)
	if diff.Cmp(tol.Raw()) > 0 {
		t.Fatalf("%s: got %s, want %s (tolerance %s)", msg, got, want, tolerance)
	}
}

// ==== Initialization ====

func TestInitialize_SeedsReservesAtTargetRate(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	lp, err := fx.eng.Initialize(fixedpoint.Scaled(1_000_000), fixedpoint.MustFromDec("0.05"), 0)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !lp.Eq(fixedpoint.Scaled(1_000_000).Sub(fixedpoint.Scaled(10))) {
		t.Fatalf("lp shares = %s, want contribution minus minimum reserves", lp)
	}

	info, err := fx.eng.PoolInfo(0)
	if err != nil {
		t.Fatalf("PoolInfo: %v", err)
	}
	if info.SpotPrice.Gte(fixedpoint.One()) {
		t.Fatalf("spot price %s not below one", info.SpotPrice)
	}
	// With a one-year term the spot rate should come back out near the
	// target.
	assertClose(t, info.SpotRate, fixedpoint.MustFromDec("0.05"), "0.0001", "implied rate")
}

func TestInitialize_Twice(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	if _, err := fx.eng.Initialize(fixedpoint.Scaled(1000), fixedpoint.MustFromDec("0.05"), 0); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := fx.eng.Initialize(fixedpoint.Scaled(1000), fixedpoint.MustFromDec("0.05"), 0); !errors.Is(err, pool.ErrAlreadyInitialized) {
		t.Fatalf("err = %v, want ErrAlreadyInitialized", err)
	}
}

func TestOperations_RequireInitialization(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	if _, err := fx.eng.OpenShort(fx.trader, fixedpoint.Scaled(100), fixedpoint.Scaled(100), 0); !errors.Is(err, pool.ErrNotInitialized) {
		t.Fatalf("OpenShort err = %v, want ErrNotInitialized", err)
	}
	if _, err := fx.eng.OpenLong(fx.trader, fixedpoint.Scaled(100), fixedpoint.Zero(), 0); !errors.Is(err, pool.ErrNotInitialized) {
		t.Fatalf("OpenLong err = %v, want ErrNotInitialized", err)
	}
	if _, err := fx.eng.Checkpoint(0); !errors.Is(err, pool.ErrNotInitialized) {
		t.Fatalf("Checkpoint err = %v, want ErrNotInitialized", err)
	}
}

// ==== Open short ====

func TestOpenShort_DepositBelowFaceValue(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	fx.seed(t)

	bonds := fixedpoint.Scaled(1000)
	res, err := fx.eng.OpenShort(fx.trader, bonds, bonds, 0)
	if err != nil {
		t.Fatalf("OpenShort: %v", err)
	}
	if res.Deposit.IsZero() {
		t.Fatal("deposit is zero")
	}
	if res.Deposit.Gte(bonds) {
		t.Fatalf("deposit %s not below face value", res.Deposit)
	}
	if res.MaturityTime != year {
		t.Fatalf("maturity = %d, want %d", res.MaturityTime, year)
	}

	st := fx.eng.PoolState()
	if !st.ShortsOutstanding.Eq(bonds) {
		t.Fatalf("shorts outstanding = %s, want %s", st.ShortsOutstanding, bonds)
	}
	if !st.BondReserves.Eq(fixedpoint.Scaled(1_051_000)) {
		t.Fatalf("bond reserves = %s, want 1051000", st.BondReserves)
	}
	if st.ShareReserves.Gte(fixedpoint.Scaled(1_000_000)) {
		t.Fatalf("share reserves %s did not decrease", st.ShareReserves)
	}
	// The pool paid out at most the face value.
	paid := fixedpoint.Scaled(1_000_000).Sub(st.ShareReserves)
	if paid.Gt(bonds) {
		t.Fatalf("pool paid %s shares for %s of face value", paid, bonds)
	}

	bal := fx.ledger.BalanceOf(ledger.ShortID(res.MaturityTime), fx.trader)
	if !bal.Eq(bonds) {
		t.Fatalf("short balance = %s, want %s", bal, bonds)
	}
}

func TestOpenShort_MaxDepositBreached(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	fx.seed(t)
	before := fx.eng.PoolState()

	_, err := fx.eng.OpenShort(fx.trader, fixedpoint.Scaled(1000), fixedpoint.MustFromDec("0.000001"), 0)
	if !errors.Is(err, pool.ErrOutputLimit) {
		t.Fatalf("err = %v, want ErrOutputLimit", err)
	}

	after := fx.eng.PoolState()
	if !after.ShareReserves.Eq(before.ShareReserves) || !after.BondReserves.Eq(before.BondReserves) {
		t.Fatal("rejected trade mutated reserves")
	}
	if !after.ShortsOutstanding.IsZero() {
		t.Fatal("rejected trade left shorts outstanding")
	}
}

func TestOpenShort_BelowMinimum(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	fx.seed(t)
	_, err := fx.eng.OpenShort(fx.trader, fixedpoint.MustFromDec("0.0001"), fixedpoint.One(), 0)
	if !errors.Is(err, pool.ErrMinimumTransactionAmount) {
		t.Fatalf("err = %v, want ErrMinimumTransactionAmount", err)
	}
}

func TestOpenShort_RejectedWhenPaused(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	fx.seed(t)
	fx.eng.Pause(true)
	if _, err := fx.eng.OpenShort(fx.trader, fixedpoint.Scaled(1000), fixedpoint.Scaled(1000), 0); !errors.Is(err, pool.ErrPoolPaused) {
		t.Fatalf("err = %v, want ErrPoolPaused", err)
	}
}

// ==== Close short ====

func TestCloseShort_Immediately_PoolNeverLoses(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	fx.seed(t)

	bonds := fixedpoint.Scaled(1000)
	opened, err := fx.eng.OpenShort(fx.trader, bonds, bonds, 0)
	if err != nil {
		t.Fatalf("OpenShort: %v", err)
	}
	closed, err := fx.eng.CloseShort(fx.trader, opened.MaturityTime, bonds, fixedpoint.Zero(), 0)
	if err != nil {
		t.Fatalf("CloseShort: %v", err)
	}

	// Without fees or interest the round trip returns at most the deposit.
	if closed.Proceeds.Gt(opened.Deposit) {
		t.Fatalf("proceeds %s exceed deposit %s", closed.Proceeds, opened.Deposit)
	}

	st := fx.eng.PoolState()
	if !st.ShortsOutstanding.IsZero() {
		t.Fatalf("shorts outstanding = %s after full close", st.ShortsOutstanding)
	}
	if !st.BondReserves.Eq(fixedpoint.Scaled(1_050_000)) {
		t.Fatalf("bond reserves = %s, want restored 1050000", st.BondReserves)
	}
	if !fx.ledger.TotalSupply(ledger.ShortID(opened.MaturityTime)).IsZero() {
		t.Fatal("short tokens not burned")
	}
}

func TestCloseShort_AtMaturity_EarnsVariableInterest(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	fx.seed(t)

	bonds := fixedpoint.Scaled(1000)
	opened, err := fx.eng.OpenShort(fx.trader, bonds, bonds, 0)
	if err != nil {
		t.Fatalf("OpenShort: %v", err)
	}

	// Ten percent vault interest over the term.
	fx.vault.Accrue(fixedpoint.MustFromDec("1.1"))
	if _, err := fx.eng.Checkpoint(opened.MaturityTime); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}

	closed, err := fx.eng.CloseShort(fx.trader, opened.MaturityTime, bonds, fixedpoint.Zero(), opened.MaturityTime+10)
	if err != nil {
		t.Fatalf("CloseShort: %v", err)
	}
	// A matured short collects the variable interest on the face value:
	// 1000 * (1.1 - 1) / 1.1 shares paid at 1.1 base each.
	assertClose(t, closed.Proceeds, fixedpoint.Scaled(100), "0.000001", "matured short proceeds")

	st := fx.eng.PoolState()
	if !st.ShortsOutstanding.IsZero() {
		t.Fatalf("shorts outstanding = %s after maturation", st.ShortsOutstanding)
	}
}

func TestCloseShort_InsufficientBalance(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	fx.seed(t)
	_, err := fx.eng.CloseShort(fx.trader, year, fixedpoint.Scaled(5), fixedpoint.Zero(), 0)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
}

func TestCloseShort_AllowedWhilePaused(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	fx.seed(t)

	bonds := fixedpoint.Scaled(1000)
	opened, err := fx.eng.OpenShort(fx.trader, bonds, bonds, 0)
	if err != nil {
		t.Fatalf("OpenShort: %v", err)
	}
	fx.eng.Pause(true)
	if _, err := fx.eng.CloseShort(fx.trader, opened.MaturityTime, bonds, fixedpoint.Zero(), 0); err != nil {
		t.Fatalf("CloseShort while paused: %v", err)
	}
}

// ==== Open long ====

func TestOpenLong_BondsExceedBasePaid(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	fx.seed(t)

	base := fixedpoint.Scaled(1000)
	res, err := fx.eng.OpenLong(fx.trader, base, fixedpoint.Zero(), 0)
	if err != nil {
		t.Fatalf("OpenLong: %v", err)
	}
	// Buying at a discount always yields more than one bond per base.
	if res.BondProceeds.Lte(base) {
		t.Fatalf("bond proceeds %s not above base %s", res.BondProceeds, base)
	}

	st := fx.eng.PoolState()
	if !st.LongsOutstanding.Eq(res.BondProceeds) {
		t.Fatalf("longs outstanding = %s, want %s", st.LongsOutstanding, res.BondProceeds)
	}
	if !st.ShareReserves.Eq(fixedpoint.Scaled(1_001_000)) {
		t.Fatalf("share reserves = %s, want 1001000", st.ShareReserves)
	}
	if st.LongExposure.IsNegative() || !st.LongExposure.Abs().Eq(res.BondProceeds) {
		t.Fatalf("long exposure = %s, want %s", st.LongExposure, res.BondProceeds)
	}

	bal := fx.ledger.BalanceOf(ledger.LongID(res.MaturityTime), fx.trader)
	if !bal.Eq(res.BondProceeds) {
		t.Fatalf("long balance = %s, want %s", bal, res.BondProceeds)
	}
}

func TestOpenLong_MinOutputBreached(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	fx.seed(t)
	before := fx.eng.PoolState()

	_, err := fx.eng.OpenLong(fx.trader, fixedpoint.Scaled(1000), fixedpoint.Scaled(2000), 0)
	if !errors.Is(err, pool.ErrOutputLimit) {
		t.Fatalf("err = %v, want ErrOutputLimit", err)
	}
	after := fx.eng.PoolState()
	if !after.ShareReserves.Eq(before.ShareReserves) || !after.LongsOutstanding.IsZero() {
		t.Fatal("rejected trade mutated state")
	}
}

// ==== Close long ====

func TestCloseLong_Immediately_PoolNeverLoses(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	fx.seed(t)

	base := fixedpoint.Scaled(1000)
	opened, err := fx.eng.OpenLong(fx.trader, base, fixedpoint.Zero(), 0)
	if err != nil {
		t.Fatalf("OpenLong: %v", err)
	}
	closed, err := fx.eng.CloseLong(fx.trader, opened.MaturityTime, opened.BondProceeds, fixedpoint.Zero(), 0)
	if err != nil {
		t.Fatalf("CloseLong: %v", err)
	}
	if closed.Proceeds.Gt(base) {
		t.Fatalf("proceeds %s exceed base paid %s", closed.Proceeds, base)
	}

	st := fx.eng.PoolState()
	if !st.LongsOutstanding.IsZero() {
		t.Fatalf("longs outstanding = %s after full close", st.LongsOutstanding)
	}
	if st.LongExposure.Sign() != 0 {
		t.Fatalf("long exposure = %s after full close", st.LongExposure)
	}
}

func TestCloseLong_AtMaturity_FaceValue(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	fx.seed(t)

	base := fixedpoint.Scaled(1000)
	opened, err := fx.eng.OpenLong(fx.trader, base, fixedpoint.Zero(), 0)
	if err != nil {
		t.Fatalf("OpenLong: %v", err)
	}
	if _, err := fx.eng.Checkpoint(opened.MaturityTime); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}

	closed, err := fx.eng.CloseLong(fx.trader, opened.MaturityTime, opened.BondProceeds, fixedpoint.Zero(), opened.MaturityTime+10)
	if err != nil {
		t.Fatalf("CloseLong: %v", err)
	}
	// A matured long settles flat at face value.
	assertClose(t, closed.Proceeds, opened.BondProceeds, "0.000001", "matured long proceeds")
}

// ==== Checkpoints ====

func TestCheckpoint_Idempotent(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	fx.seed(t)

	first, err := fx.eng.Checkpoint(100)
	if err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	// Price moves, but the bucket keeps its recorded value.
	fx.vault.Accrue(fixedpoint.MustFromDec("1.02"))
	second, err := fx.eng.Checkpoint(200)
	if err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if !first.Eq(second) {
		t.Fatalf("recorded price changed within bucket: %s then %s", first, second)
	}
}

func TestCheckpoint_MaturationFoldsCohort(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	fx.seed(t)

	bonds := fixedpoint.Scaled(1000)
	opened, err := fx.eng.OpenShort(fx.trader, bonds, bonds, 0)
	if err != nil {
		t.Fatalf("OpenShort: %v", err)
	}

	if _, err := fx.eng.Checkpoint(opened.MaturityTime + day); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	st := fx.eng.PoolState()
	if !st.ShortsOutstanding.IsZero() {
		t.Fatalf("shorts outstanding = %s after maturation", st.ShortsOutstanding)
	}
	if st.LongExposure.Sign() != 0 {
		t.Fatalf("exposure = %s after maturation", st.LongExposure)
	}
	if !st.ShortAverageMaturityTime.IsZero() {
		t.Fatalf("short average maturity = %s after maturation", st.ShortAverageMaturityTime)
	}
}

// ==== Solvency ====

func TestOpenLong_SolvencyGateLeavesStateUntouched(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	if _, err := fx.vault.Deposit(fixedpoint.Scaled(100_000)); err != nil {
		t.Fatalf("vault seed: %v", err)
	}
	// A pool already carrying exposure within a sliver of its reserves. A
	// long adds its full bond proceeds to the exposure but only its base to
	// the reserves, so the buffer breaks.
	fx.eng.Restore(pool.State{
		ShareReserves: fixedpoint.Scaled(100_000),
		BondReserves:  fixedpoint.Scaled(105_000),
		LPTotalSupply: fixedpoint.Scaled(99_990),
		LongExposure:  fixedpoint.SignedFromFixed(fixedpoint.Scaled(99_985)),
		IsInitialized: true,
	})
	before := fx.eng.PoolState()

	_, err := fx.eng.OpenLong(fx.trader, fixedpoint.Scaled(1000), fixedpoint.Zero(), 0)
	if !errors.Is(err, pool.ErrBaseBufferExceedsShareReserves) {
		t.Fatalf("err = %v, want ErrBaseBufferExceedsShareReserves", err)
	}

	after := fx.eng.PoolState()
	if !after.ShareReserves.Eq(before.ShareReserves) ||
		!after.BondReserves.Eq(before.BondReserves) ||
		!after.LongsOutstanding.IsZero() ||
		after.LongExposure.Cmp(before.LongExposure) != 0 {
		t.Fatal("rejected trade mutated state")
	}
	if !fx.ledger.TotalSupply(ledger.LongID(year)).IsZero() {
		t.Fatal("rejected trade minted tokens")
	}
}

// ==== Withdrawal pool ====

func TestQueueWithdrawal_PaidFromIdle(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	fx.seed(t)

	lpShares := fixedpoint.Scaled(1000)
	if err := fx.eng.QueueWithdrawal(lpShares, 0); err != nil {
		t.Fatalf("QueueWithdrawal: %v", err)
	}

	st := fx.eng.PoolState()
	if !st.WithdrawalReadyToWithdraw.Eq(lpShares) {
		t.Fatalf("ready = %s, want %s", st.WithdrawalReadyToWithdraw, lpShares)
	}
	// With no positions the LP share price is one, so proceeds match shares.
	assertClose(t, st.WithdrawalProceeds, lpShares, "0.001", "withdrawal proceeds")
	assertClose(t, st.ShareReserves, fixedpoint.Scaled(999_000), "0.001", "share reserves after distribution")
	if !st.LPTotalSupply.Eq(fixedpoint.Scaled(998_990)) {
		t.Fatalf("lp supply = %s, want 998990", st.LPTotalSupply)
	}
}

func TestQueueWithdrawal_ExceedsSupply(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	fx.seed(t)
	err := fx.eng.QueueWithdrawal(fixedpoint.Scaled(2_000_000), 0)
	if err == nil {
		t.Fatal("expected error for oversized withdrawal")
	}
}

// ==== Governance fees ====

func TestGovernanceFee_AccruesAndCollects(t *testing.T) {
	fx := newFixture(t, standardFees())
	fx.seed(t)

	bonds := fixedpoint.Scaled(1000)
	if _, err := fx.eng.OpenShort(fx.trader, bonds, bonds, 0); err != nil {
		t.Fatalf("OpenShort: %v", err)
	}
	st := fx.eng.PoolState()
	if st.GovernanceFeesAccrued.IsZero() {
		t.Fatal("no governance fees accrued")
	}

	dest := uuid.New()
	base, err := fx.eng.CollectGovernanceFee(dest, 0)
	if err != nil {
		t.Fatalf("CollectGovernanceFee: %v", err)
	}
	if base.IsZero() {
		t.Fatal("collected zero")
	}
	if !fx.eng.PoolState().GovernanceFeesAccrued.IsZero() {
		t.Fatal("accrual not zeroed")
	}
}

func TestFees_ReduceTraderProceeds(t *testing.T) {
	noFee := newFixture(t, fees.Config{})
	noFee.seed(t)
	withFee := newFixture(t, standardFees())
	withFee.seed(t)

	bonds := fixedpoint.Scaled(1000)
	free, err := noFee.eng.OpenShort(noFee.trader, bonds, bonds, 0)
	if err != nil {
		t.Fatalf("OpenShort: %v", err)
	}
	charged, err := withFee.eng.OpenShort(withFee.trader, bonds, bonds, 0)
	if err != nil {
		t.Fatalf("OpenShort: %v", err)
	}
	if charged.Deposit.Lte(free.Deposit) {
		t.Fatalf("fee deposit %s not above fee-free deposit %s", charged.Deposit, free.Deposit)
	}
}

// ==== Pool info ====

func TestPoolInfo_PresentValueWithoutPositions(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	fx.seed(t)

	info, err := fx.eng.PoolInfo(0)
	if err != nil {
		t.Fatalf("PoolInfo: %v", err)
	}
	// No outstanding positions: PV is reserves minus the minimum buffer.
	if !info.PresentValue.Eq(fixedpoint.Scaled(999_990)) {
		t.Fatalf("present value = %s, want 999990", info.PresentValue)
	}
	if !info.LPSharePrice.Eq(fixedpoint.One()) {
		t.Fatalf("lp share price = %s, want 1", info.LPSharePrice)
	}
	if info.SpotPrice.Gte(fixedpoint.One()) {
		t.Fatalf("spot price = %s, want below one", info.SpotPrice)
	}
	if info.SpotRate.IsZero() {
		t.Fatal("spot rate is zero")
	}
}

func TestPoolInfo_PresentValueCoversNetLong(t *testing.T) {
	fx := newFixture(t, fees.Config{})
	fx.seed(t)

	if _, err := fx.eng.OpenLong(fx.trader, fixedpoint.Scaled(1000), fixedpoint.Zero(), 0); err != nil {
		t.Fatalf("OpenLong: %v", err)
	}
	info, err := fx.eng.PoolInfo(0)
	if err != nil {
		t.Fatalf("PoolInfo: %v", err)
	}
	// The pool owes the net long position: PV sits below the raw reserves
	// but stays positive.
	if info.PresentValue.Gte(info.ShareReserves) {
		t.Fatalf("present value %s not below reserves %s", info.PresentValue, info.ShareReserves)
	}
	if info.PresentValue.IsZero() {
		t.Fatal("present value is zero")
	}
}

// ==== Trade feed ====

func TestEngine_EmitsAppliedTrades(t *testing.T) {
	v := vault.NewAccruing(fixedpoint.One())
	led := ledger.NewMemory()
	trades := make(chan pool.Trade, 16)
	eng, err := pool.NewEngine(testConfig(fees.Config{}), v, led, zerolog.Nop(), nil, trades)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if _, err := v.Deposit(fixedpoint.Scaled(1_000_000)); err != nil {
		t.Fatalf("vault seed: %v", err)
	}
	eng.Restore(pool.State{
		ShareReserves: fixedpoint.Scaled(1_000_000),
		BondReserves:  fixedpoint.Scaled(1_050_000),
		LPTotalSupply: fixedpoint.Scaled(999_990),
		IsInitialized: true,
	})

	trader := uuid.New()
	opened, err := eng.OpenShort(trader, fixedpoint.Scaled(1000), fixedpoint.Scaled(1000), 0)
	if err != nil {
		t.Fatalf("OpenShort: %v", err)
	}

	select {
	case tr := <-trades:
		if tr.Operation != pool.OpOpenShort {
			t.Fatalf("operation = %q, want %q", tr.Operation, pool.OpOpenShort)
		}
		if tr.ID != opened.TradeID {
			t.Fatalf("trade id mismatch: %s vs %s", tr.ID, opened.TradeID)
		}
		if !tr.BaseAmount.Eq(opened.Deposit) {
			t.Fatalf("base amount = %s, want deposit %s", tr.BaseAmount, opened.Deposit)
		}
	default:
		t.Fatal("no trade emitted")
	}

	// Rejected trades emit nothing.
	if _, err := eng.OpenShort(trader, fixedpoint.Scaled(1000), fixedpoint.Zero(), 0); err == nil {
		t.Fatal("expected rejection")
	}
	select {
	case tr := <-trades:
		t.Fatalf("rejected trade emitted %+v", tr)
	default:
	}
}
