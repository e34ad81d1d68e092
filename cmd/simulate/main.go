package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memorybox/coordination-server/internal/config"
	"github.com/memorybox/coordination-server/internal/db"
)

// The simulator hammers the booking endpoint with concurrent caregivers
// fighting over the same slots. With the conditional claim in place, every
// slot must end up with exactly one winner: bookings + conflicts should add
// up, and no booking may be silently overwritten.

type SimConfig struct {
	APIBaseURL     string
	Duration       time.Duration
	Workers        int
	BookingRatio   float64
	ReadRatio      float64
	CaregiverLimit int
	SlotLimit      int
	PostgresDSN    string
	JWTSecret      string
}

type DataPool struct {
	Caregivers []uuid.UUID
	Slots      []uuid.UUID
	Therapists []uuid.UUID
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0
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
	p50 = latencies[len(latencies)*50/100]
	p95idx := len(latencies) * 95 / 100
	if p95idx >= len(latencies) {
		p95idx = len(latencies) - 1
	}
	p95 = latencies[p95idx]

	return avg, p50, p95
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	booking OperationMetrics
	reads   OperationMetrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadSimConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d caregivers, %d open slots, %d therapists",
		len(dataPool.Caregivers), len(dataPool.Slots), len(dataPool.Therapists))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run()
	sim.PrintReport()
	sim.VerifyBookings(context.Background(), pgPool)
}

func loadSimConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:     getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:       getDuration("SIM_DURATION", 30*time.Second),
		Workers:        getInt("SIM_WORKERS", 10),
		BookingRatio:   getFloat("SIM_BOOKING_RATIO", 0.7),
		ReadRatio:      getFloat("SIM_READ_RATIO", 0.3),
		CaregiverLimit: getInt("SIM_CAREGIVER_LIMIT", 200),
		SlotLimit:      getInt("SIM_SLOT_LIMIT", 500),
		PostgresDSN:    baseCfg.PostgresDSN,
		JWTSecret:      baseCfg.JWTSecret,
	}

	total := cfg.BookingRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM caregivers LIMIT $1`, cfg.CaregiverLimit)
	if err != nil {
		return nil, fmt.Errorf("load caregivers: %w", err)
	}
	if dataPool.Caregivers, err = collectIDs(rows); err != nil {
		return nil, err
	}

	rows, err = pool.Query(ctx, `
		SELECT id FROM therapist_availability
		WHERE booked = false AND start_at > now()
		LIMIT $1
	`, cfg.SlotLimit)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	if dataPool.Slots, err = collectIDs(rows); err != nil {
		return nil, err
	}

	rows, err = pool.Query(ctx, `SELECT id FROM profiles`)
	if err != nil {
		return nil, fmt.Errorf("load therapists: %w", err)
	}
	if dataPool.Therapists, err = collectIDs(rows); err != nil {
		return nil, err
	}

	if len(dataPool.Caregivers) == 0 || len(dataPool.Slots) == 0 {
		return nil, fmt.Errorf("nothing to simulate, run cmd/seed first")
	}

	return dataPool, nil
}

func collectIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Simulator) Run() {
	log.Printf("running: duration=%s workers=%d booking=%.2f read=%.2f",
		s.config.Duration, s.config.Workers, s.config.BookingRatio, s.config.ReadRatio)

	deadline := time.Now().Add(s.config.Duration)
	var wg sync.WaitGroup

	for w := 0; w < s.config.Workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)))

			for time.Now().Before(deadline) {
				if rng.Float64() < s.config.BookingRatio {
					s.doBooking(rng)
				} else {
					s.doRead(rng)
				}
			}
		}(w)
	}

	wg.Wait()
}

func (s *Simulator) doBooking(rng *rand.Rand) {
	caregiverID := s.pool.Caregivers[rng.Intn(len(s.pool.Caregivers))]
	slotID := s.pool.Slots[rng.Intn(len(s.pool.Slots))]

	token, err := s.mintToken(caregiverID, "caregiver")
	if err != nil {
		s.booking.Record(0, false, false)
		return
	}

	url := fmt.Sprintf("%s/api/slots/%s/book", s.config.APIBaseURL, slotID)
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		s.booking.Record(0, false, false)
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		s.booking.Record(latency, false, false)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	s.booking.Record(latency,
		resp.StatusCode == http.StatusOK,
		resp.StatusCode == http.StatusConflict)
}

func (s *Simulator) doRead(rng *rand.Rand) {
	if len(s.pool.Therapists) == 0 {
		return
	}
	caregiverID := s.pool.Caregivers[rng.Intn(len(s.pool.Caregivers))]
	therapistID := s.pool.Therapists[rng.Intn(len(s.pool.Therapists))]

	token, err := s.mintToken(caregiverID, "caregiver")
	if err != nil {
		s.reads.Record(0, false, false)
		return
	}

	url := fmt.Sprintf("%s/api/therapists/%s/availability", s.config.APIBaseURL, therapistID)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		s.reads.Record(0, false, false)
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		s.reads.Record(latency, false, false)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	s.reads.Record(latency, resp.StatusCode == http.StatusOK, false)
}

func (s *Simulator) mintToken(userID uuid.UUID, role string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"role": role,
		"exp":  time.Now().Add(5 * time.Minute).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.JWTSecret))
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n=== simulation report ===")

	printOp := func(name string, om *OperationMetrics) {
		avg, p50, p95 := om.Stats()
		fmt.Printf("%-10s total=%d success=%d conflict=%d error=%d avg=%s p50=%s p95=%s\n",
			name,
			atomic.LoadInt64(&om.Total),
			atomic.LoadInt64(&om.Success),
			atomic.LoadInt64(&om.Conflict),
			atomic.LoadInt64(&om.Error),
			avg, p50, p95,
		)
	}

	printOp("booking", &s.booking)
	printOp("reads", &s.reads)
}

// VerifyBookings cross-checks the store after the run: every booked slot has
// an owner, and the number of winners never exceeds the number of slots.
func (s *Simulator) VerifyBookings(ctx context.Context, pool *pgxpool.Pool) {
	var booked, orphaned int
	err := pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE booked),
			count(*) FILTER (WHERE booked != (booked_by IS NOT NULL))
		FROM therapist_availability
	`).Scan(&booked, &orphaned)
	if err != nil {
		log.Printf("verify bookings: %v", err)
		return
	}

	fmt.Printf("store check: booked_slots=%d invariant_violations=%d\n", booked, orphaned)
	if orphaned > 0 {
		log.Printf("WARNING: %d slots violate the booked/booked_by invariant", orphaned)
	}
	if successes := atomic.LoadInt64(&s.booking.Success); int64(booked) > successes {
		log.Printf("note: %d slots booked vs %d successful calls (pre-existing bookings count too)", booked, successes)
	}
}

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
