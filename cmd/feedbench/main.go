package main

import (
    "context"
    "fmt"
    "math"
    "os"
    "sort"
    "strconv"
    "sync/atomic"
    "time"

    "golang.org/x/time/rate"

    "github.com/d60-Lab/feedcache/config"
    "github.com/d60-Lab/feedcache/internal/model"
    "github.com/d60-Lab/feedcache/internal/service"
    "github.com/d60-Lab/feedcache/pkg/database"
    "github.com/d60-Lab/feedcache/pkg/logger"
)

func must[T any](v T, err error) T { if err != nil { panic(err) }; return v }

func pct(vs []time.Duration, p float64) time.Duration {
    if len(vs) == 0 { return 0 }
    xs := append([]time.Duration(nil), vs...)
    sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
    k := int(math.Ceil(p*float64(len(xs)))) - 1
    if k < 0 { k = 0 }
    if k >= len(xs) { k = len(xs)-1 }
    return xs[k]
}

func main() {
    cfg := must(config.Load())
    _ = logger.Init(cfg.LogLevel, cfg.SentryDSN)
    db := must(database.OpenInMemory())

    // params
    PAGES := 200              // timeline pages to merge
    PAGESIZE := 40            // statuses per page
    RATE := 200.0             // page merges per second
    if s := os.Getenv("PAGES"); s != "" { if v, e := strconv.Atoi(s); e == nil && v > 0 { PAGES = v } }
    if s := os.Getenv("PAGESIZE"); s != "" { if v, e := strconv.Atoi(s); e == nil && v > 0 { PAGESIZE = v } }
    if s := os.Getenv("RATE"); s != "" { if v, e := strconv.ParseFloat(s, 64); e == nil && v > 0 { RATE = v } }

    tracker := service.NewChangeTracker()
    writer := service.NewWriter(db, tracker)
    defer writer.Close()
    queries := service.NewQueries(db, tracker)

    home := model.NewTimeline(model.KindHome, "")
    obs := queries.ObserveTimeline(home)
    defer obs.Cancel()

    var delivered atomic.Int64
    go func() {
        for r := range obs.Updates() {
            if r.Err != nil { panic(r.Err) }
            delivered.Add(1)
        }
    }()

    author := &model.Account{ID: "author0", Username: "author0"}
    lim := rate.NewLimiter(rate.Limit(RATE), 1)
    ctx := context.Background()

    seq := 0
    writeDurations := make([]time.Duration, 0, PAGES)
    start := time.Now()
    for p := 0; p < PAGES; p++ {
        _ = lim.Wait(ctx)
        page := make([]model.Status, PAGESIZE)
        for i := range page {
            seq++
            page[i] = model.Status{
                ID:        fmt.Sprintf("%018d", seq),
                AccountID: author.ID,
                Account:   author,
                Content:   fmt.Sprintf("status %d", seq),
                CreatedAt: time.Now(),
            }
        }
        st := time.Now()
        if err := writer.InsertTimelinePage(ctx, page, home); err != nil { panic(err) }
        writeDurations = append(writeDurations, time.Since(st))
    }
    elapsed := time.Since(start)

    // let the observation catch the tail commits
    time.Sleep(200 * time.Millisecond)

    // cold materialization latency for the fully merged timeline
    cold := queries.ObserveTimeline(home)
    st := time.Now()
    r := <-cold.Updates()
    coldDur := time.Since(st)
    cold.Cancel()
    if r.Err != nil { panic(r.Err) }
    total := 0
    for _, sec := range r.Value.Sections { total += len(sec.Items) }

    var sum time.Duration
    for _, d := range writeDurations { sum += d }
    fmt.Printf("PAGES=%d PAGESIZE=%d RATE=%.0f\n", PAGES, PAGESIZE, RATE)
    fmt.Printf("Merge tx latency: avg=%v p95=%v p99=%v (wall=%v)\n", sum/time.Duration(len(writeDurations)), pct(writeDurations, 0.95), pct(writeDurations, 0.99), elapsed)
    fmt.Printf("Observation deliveries: %d (deduplicated from %d commits)\n", delivered.Load(), PAGES)
    fmt.Printf("Cold materialization: %v, items=%d\n", coldDur, total)
}
