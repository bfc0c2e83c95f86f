package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/provider-booking/internal/appointment"
	"github.com/hackgods/provider-booking/internal/auth"
	"github.com/hackgods/provider-booking/internal/clock"
	"github.com/hackgods/provider-booking/internal/config"
	"github.com/hackgods/provider-booking/internal/logging"
	"github.com/hackgods/provider-booking/internal/store"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	CancelRatio  float64
	ReadRatio    float64
	Providers    int
	Clients      int
	Days         int
}

type actor struct {
	ID    uuid.UUID
	Token string
}

type booking struct {
	ID    uuid.UUID
	Owner actor
}

type DataPool struct {
	Providers []actor
	Clients   []actor
	Slots     []time.Time

	mu       sync.Mutex
	bookings []booking
}

func (dp *DataPool) AddBooking(b booking) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.bookings = append(dp.bookings, b)
}

// TakeBooking removes and returns a random booking so it is cancelled at most
// once by the simulator.
func (dp *DataPool) TakeBooking(rng *rand.Rand) (booking, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.bookings) == 0 {
		return booking{}, false
	}
	idx := rng.Intn(len(dp.bookings))
	b := dp.bookings[idx]
	dp.bookings[idx] = dp.bookings[len(dp.bookings)-1]
	dp.bookings = dp.bookings[:len(dp.bookings)-1]
	return b, true
}

func (dp *DataPool) PeekBooking(rng *rand.Rand) (booking, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.bookings) == 0 {
		return booking{}, false
	}
	return dp.bookings[rng.Intn(len(dp.bookings))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking  OperationMetrics
	Cancel   OperationMetrics
	ReadByID OperationMetrics
	List     OperationMetrics
	Schedule OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		l := logging.New("dev", "info", "simulate")
		l.Fatal().Err(err).Msg("failed to load base config")
	}
	logger := logging.New(baseCfg.Env, baseCfg.LogLevel, "simulate")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	st, err := store.Open(ctx, baseCfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}
	defer st.Close()

	dataPool, err := buildDataPool(ctx, st, baseCfg, cfg, clock.System())
	if err != nil {
		logger.Fatal().Err(err).Msg("build data pool")
	}
	logger.Info().
		Int("providers", len(dataPool.Providers)).
		Int("clients", len(dataPool.Clients)).
		Int("slots", len(dataPool.Slots)).
		Msg("data pool ready")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger,
	}

	sim.Run()
	sim.PrintReport()

	dups, err := verifySlots(ctx, st, dataPool)
	if err != nil {
		logger.Fatal().Err(err).Msg("verify slots")
	}
	if dups > 0 {
		logger.Error().Int("slots", dups).Msg("double booked slots found")
		os.Exit(1)
	}
	logger.Info().Msg("no provider slot holds more than one active appointment")
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.4),
		Providers:    getInt("SIM_PROVIDERS", 5),
		Clients:      getInt("SIM_CLIENTS", 200),
		Days:         getInt("SIM_DAYS", 3),
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Providers <= 0 || cfg.Clients <= 0 || cfg.Days <= 0 {
		return fmt.Errorf("SIM_PROVIDERS, SIM_CLIENTS and SIM_DAYS must be > 0")
	}
	return nil
}

// buildDataPool creates fresh users so runs are independent, and a grid of
// business hour slots starting tomorrow.
func buildDataPool(ctx context.Context, users appointment.UserWriter, base config.Config, cfg SimConfig, c clock.Clock) (*DataPool, error) {
	pool := &DataPool{}

	mk := func(provider bool) (actor, error) {
		u := &appointment.User{
			Name:       gofakeit.Name(),
			Email:      fmt.Sprintf("sim.%s@%s", uuid.NewString(), gofakeit.DomainName()),
			IsProvider: provider,
		}
		if err := users.CreateUser(ctx, u); err != nil {
			return actor{}, err
		}
		tok, err := auth.MakeToken(u.ID, base.JWTSecret, cfg.Duration+time.Hour)
		if err != nil {
			return actor{}, err
		}
		return actor{ID: u.ID, Token: tok}, nil
	}

	for i := 0; i < cfg.Providers; i++ {
		a, err := mk(true)
		if err != nil {
			return nil, fmt.Errorf("create provider: %w", err)
		}
		pool.Providers = append(pool.Providers, a)
	}
	for i := 0; i < cfg.Clients; i++ {
		a, err := mk(false)
		if err != nil {
			return nil, fmt.Errorf("create client: %w", err)
		}
		pool.Clients = append(pool.Clients, a)
	}

	loc := base.Location
	if loc == nil {
		loc = time.UTC
	}
	day := clock.StartOfDay(c.Now(), loc).AddDate(0, 0, 1)
	for d := 0; d < cfg.Days; d++ {
		for h := 8; h < 18; h++ {
			pool.Slots = append(pool.Slots, day.AddDate(0, 0, d).Add(time.Duration(h)*time.Hour))
		}
	}

	return pool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.CancelRatio:
				s.doCancel(ctx, rng)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doReadByID(ctx, rng)
				case 1:
					s.doList(ctx, rng)
				case 2:
					s.doSchedule(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) call(ctx context.Context, method, path, token string, body any) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return s.client.Do(req)
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	provider := s.pool.Providers[rng.Intn(len(s.pool.Providers))]
	client := s.pool.Clients[rng.Intn(len(s.pool.Clients))]
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]

	start := time.Now()
	resp, err := s.call(ctx, http.MethodPost, "/appointments", client.Token, map[string]string{
		"provider_id": provider.ID.String(),
		"date":        slot.Format(time.RFC3339),
	})
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			var created struct {
				ID uuid.UUID `json:"id"`
			}
			if json.NewDecoder(resp.Body).Decode(&created) == nil && created.ID != uuid.Nil {
				s.pool.AddBooking(booking{ID: created.ID, Owner: client})
			}
		case http.StatusConflict:
			conflict = true
		}
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.TakeBooking(rng)
	if !ok {
		return
	}

	start := time.Now()
	resp, err := s.call(ctx, http.MethodDelete, "/appointments/"+b.ID.String(), b.Owner.Token, nil)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusConflict
	}

	s.metrics.Cancel.Record(latency, success, conflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.PeekBooking(rng)
	if !ok {
		return
	}
	s.timedGet(ctx, &s.metrics.ReadByID, "/appointments/"+b.ID.String(), b.Owner.Token)
}

func (s *Simulator) doList(ctx context.Context, rng *rand.Rand) {
	client := s.pool.Clients[rng.Intn(len(s.pool.Clients))]
	s.timedGet(ctx, &s.metrics.List, "/appointments?page=1", client.Token)
}

func (s *Simulator) doSchedule(ctx context.Context, rng *rand.Rand) {
	provider := s.pool.Providers[rng.Intn(len(s.pool.Providers))]
	day := s.pool.Slots[rng.Intn(len(s.pool.Slots))].Format(time.DateOnly)
	s.timedGet(ctx, &s.metrics.Schedule, "/schedule?date="+day, provider.Token)
}

func (s *Simulator) timedGet(ctx context.Context, om *OperationMetrics, path, token string) {
	start := time.Now()
	resp, err := s.call(ctx, http.MethodGet, path, token, nil)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	om.Record(latency, success, false)
}

// verifySlots counts provider slots that ended up with more than one active
// appointment. The answer must be zero.
func verifySlots(ctx context.Context, repo appointment.Repository, pool *DataPool) (int, error) {
	if len(pool.Slots) == 0 {
		return 0, nil
	}
	from := pool.Slots[0]
	to := pool.Slots[len(pool.Slots)-1].Add(time.Hour)

	dups := 0
	for _, p := range pool.Providers {
		items, err := repo.ListActiveByProvider(ctx, p.ID, from, to)
		if err != nil {
			return 0, err
		}
		seen := make(map[int64]int, len(items))
		for _, it := range items {
			seen[it.Date.Unix()]++
		}
		for _, n := range seen {
			if n > 1 {
				dups++
			}
		}
	}
	return dups, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List own", &s.metrics.List)
	printOperationReport("Provider schedule", &s.metrics.Schedule)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
