// Command simulate drives the wheel engine over an in-memory ledger and
// reports the realized house edge.
package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"

	"spinwheel-backend/internal/config"
	"spinwheel-backend/internal/models"
	"spinwheel-backend/internal/services"
	"spinwheel-backend/internal/wheel"
)

func main() {
	var (
		spins    = flag.Int("spins", 100_000, "number of spins to attempt")
		players  = flag.Int("players", 10, "number of distinct players")
		pool     = flag.Uint64("pool", 10_000*wheel.UnitsPerToken, "initial pool funding in base units")
		wallet   = flag.Uint64("wallet", 100_000*wheel.UnitsPerToken, "initial balance per player in base units")
		betFrac  = flag.Uint64("bet-bps", 10, "bet size as basis points of the pool, clamped to the limits")
		feeBps   = flag.Uint64("fee-bps", 100, "dev fee in basis points")
		seed     = flag.Uint64("seed", 42, "PRNG seed for spin entropy")
		dbPath   = flag.String("sqlite", "", "optional SQLite file to record settlements into")
		logLevel = flag.String("log", "warn", "log level")
	)
	flag.Parse()

	if *feeBps > wheel.MaxFeeBps {
		log.Fatalf("fee-bps above cap %d", wheel.MaxFeeBps)
	}

	logs, err := config.NewLogBackend(os.Stderr, *logLevel)
	if err != nil {
		log.Fatal(err)
	}

	var recorder services.Recorder = services.NewNoopRecorder()
	if *dbPath != "" {
		recorder, err = services.NewSQLiteRecorder(*dbPath, logs.Logger(config.SubsystemRecorder))
		if err != nil {
			log.Fatal(err)
		}
	}
	defer recorder.Close()

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	entropy := services.SeedSourceFunc(func(context.Context) ([]byte, error) {
		return binary.LittleEndian.AppendUint64(nil, rng.Uint64()), nil
	})

	ctx := context.Background()
	store := services.NewMemoryStore()
	tokens := services.NewTokenService(store, logs.Logger(config.SubsystemStore))
	programID := models.DeriveAddress("simulate", "program")
	authority := models.DeriveAddress("simulate", "authority")
	engine := services.NewGameEngine(store, services.EngineConfig{
		ProgramID: programID,
		DevFeeBps: *feeBps,
		Seeds:     entropy,
		Recorder:  recorder,
		Log:       logs.Logger(config.SubsystemSpin),
	})

	mint, err := tokens.EnsureMint(ctx, authority, "simulate", wheel.TokenDecimals)
	if err != nil {
		log.Fatal(err)
	}
	if _, err := engine.Initialize(ctx, &models.InitializeRequest{TokenMint: mint.Address, Authority: authority}); err != nil {
		log.Fatal(err)
	}
	if _, err := tokens.MintTo(ctx, authority, mint.Address, authority, *pool); err != nil {
		log.Fatal(err)
	}
	if _, err := engine.FundPool(ctx, &models.FundRequest{Amount: *pool, Funder: authority}); err != nil {
		log.Fatal(err)
	}

	addrs := make([]string, *players)
	for i := range addrs {
		addrs[i] = models.DeriveAddress("simulate", "player", fmt.Sprint(i))
		if _, err := tokens.MintTo(ctx, authority, mint.Address, addrs[i], *wallet); err != nil {
			log.Fatal(err)
		}
	}

	var (
		wagered, paid, fees uint64
		outcomes            = make(map[string]int)
		rejected            = make(map[string]int)
	)
	for i := 0; i < *spins; i++ {
		state, err := engine.State(ctx)
		if err != nil {
			log.Fatal(err)
		}
		limits := wheel.BetLimits(state.Pool.Balance)
		if !limits.Open() {
			fmt.Printf("pool closed after %d spins\n", i)
			break
		}
		bet := state.Pool.Balance / wheel.BpsDenominator * *betFrac
		bet = max(limits.Min, min(bet, limits.Max))

		res, err := engine.Spin(ctx, &models.SpinRequest{Amount: bet, Player: addrs[i%len(addrs)]})
		if err != nil {
			if errors.Is(err, wheel.ErrInvalidOperation) {
				log.Fatal(err)
			}
			rejected[wheel.Code(err)]++
			continue
		}
		wagered += res.BetAmount
		paid += res.Payout
		fees += res.Fee
		outcomes[res.Outcome]++
	}

	final, err := engine.State(ctx)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("spins settled:   %d\n", final.State.TotalSpins)
	for _, seg := range wheel.Segments {
		n := outcomes[string(seg.Outcome)]
		fmt.Printf("  %-11s %7d  %5.2f%%\n", seg.Outcome, n, pct(uint64(n), final.State.TotalSpins))
	}
	for code, n := range rejected {
		fmt.Printf("rejected %-16s %d\n", code, n)
	}
	fmt.Printf("wagered:         %s\n", wheel.FormatTokens(wagered))
	fmt.Printf("paid out:        %s\n", wheel.FormatTokens(paid))
	fmt.Printf("return to player %.2f%% (theoretical %.2f%%)\n",
		pct(paid, wagered), float64(wheel.ExpectedReturn())/100)
	fmt.Printf("dev fees:        %s\n", wheel.FormatTokens(fees))
	fmt.Printf("pool:            %s -> %s\n", wheel.FormatTokens(*pool), wheel.FormatTokens(final.Pool.Balance))

	if *dbPath != "" {
		sum, err := recorder.Summary()
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("recorded:        %d spins, %d wins\n", sum.Spins, sum.Wins)
	}
}

func pct(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}
