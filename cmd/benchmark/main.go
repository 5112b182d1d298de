package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/punchamoorthee/rentalops/internal/logging"
)

var (
	targetURL   string
	seedFile    string
	concurrency int
	duration    time.Duration
	workload    string
	idempotent  bool
)

var (
	totalRequests uint64
	success200    uint64 // Opened or replayed
	fail409       uint64 // Conflicts and in-flight keys
	fail422       uint64 // Out of stock
	failOther     uint64
)

type seed struct {
	AdminEmail    string   `json:"adminEmail"`
	AdminPassword string   `json:"adminPassword"`
	MovieIDs      []string `json:"movieIds"`
	CustomerIDs   []string `json:"customerIds"`
}

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.StringVar(&seedFile, "seed", "seed.json", "Seed file written by cmd/seeder")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.BoolVar(&idempotent, "idempotent", true, "Send an Idempotency-Key with every request")
}

func main() {
	flag.Parse()
	logging.New("rentalops-benchmark", "info", "development")

	s, err := loadSeed(seedFile)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to read seed file")
	}
	token, err := login(s)
	if err != nil {
		log.Fatal().Err(err).Msg("login failed")
	}

	log.Info().Str("workload", workload).Int("workers", concurrency).Dur("duration", duration).Msg("starting benchmark")

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, s, token)
	}
	wg.Wait()
	printResults(time.Since(start))
}

func loadSeed(path string) (*seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s seed
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if len(s.MovieIDs) == 0 || len(s.CustomerIDs) == 0 {
		return nil, fmt.Errorf("seed file %s has no movies or customers", path)
	}
	return &s, nil
}

func login(s *seed) (string, error) {
	body, _ := json.Marshal(map[string]string{"email": s.AdminEmail, "password": s.AdminPassword})
	resp, err := http.Post(targetURL+"/api/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login returned %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func worker(wg *sync.WaitGroup, start time.Time, s *seed, token string) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		body, _ := json.Marshal(map[string]string{
			"customerId": s.CustomerIDs[rand.Intn(len(s.CustomerIDs))],
			"movieId":    pickMovie(s.MovieIDs),
		})

		req, _ := http.NewRequest(http.MethodPost, targetURL+"/api/rentals", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-auth-token", token)
		if idempotent {
			req.Header.Set("Idempotency-Key", uuid.NewString())
		}

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case http.StatusOK:
			atomic.AddUint64(&success200, 1)
		case http.StatusConflict:
			atomic.AddUint64(&fail409, 1)
		case http.StatusUnprocessableEntity:
			atomic.AddUint64(&fail422, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

// pickMovie sends 90% of hotspot traffic to the first movie.
func pickMovie(ids []string) string {
	if workload == "hotspot" && rand.Float32() < 0.90 {
		return ids[0]
	}
	return ids[rand.Intn(len(ids))]
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s200 := atomic.LoadUint64(&success200)
	f409 := atomic.LoadUint64(&fail409)
	f422 := atomic.LoadUint64(&fail422)
	fErr := atomic.LoadUint64(&failOther)

	var abortRate float64
	if total > 0 {
		abortRate = float64(f409) / float64(total) * 100
	}

	results := map[string]any{
		"workload":          workload,
		"duration_sec":      d.Seconds(),
		"total_requests":    total,
		"throughput_tps":    float64(total) / d.Seconds(),
		"rentals_opened":    s200,
		"aborts_conflict":   f409,
		"rejected_no_stock": f422,
		"abort_rate_pct":    abortRate,
		"errors":            fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Error().Err(err).Msg("unable to save results")
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
