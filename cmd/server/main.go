package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"linecook.ai/internal/game"
	"linecook.ai/internal/game/catalog"
	"linecook.ai/internal/planner/tuning"
	"linecook.ai/internal/sim"
	"linecook.ai/internal/transport/ws"
)

func main() {
	var (
		addr      = flag.String("addr", ":8080", "http listen address")
		mapPath   = flag.String("map", "./maps/small_kitchen.txt", "kitchen map file")
		configDir = flag.String("configs", "./configs", "config directory")
		ticks     = flag.Int("ticks", 0, "match length in ticks (default: match_ticks from planner.yaml)")
		money     = flag.Int("money", 150, "starting money")
		cookTicks = flag.Int("cook_ticks", 20, "ticks per cook stage")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cat, err := catalog.Load(filepath.Join(*configDir, "foods.yaml"))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load catalog: %v", err)
		}
		logger.Printf("foods.yaml not found; using built-in catalog")
		cat = catalog.Defaults()
	}
	matchTicks := *ticks
	if matchTicks <= 0 {
		tune, err := tuning.Load(filepath.Join(*configDir, "planner.yaml"))
		if err != nil && !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		matchTicks = tune.MatchTicks
	}

	layout, err := game.LoadMap(*mapPath)
	if err != nil {
		logger.Fatalf("load map: %v", err)
	}
	k, err := sim.NewKitchen(sim.KitchenConfig{
		Layout:     layout,
		Catalog:    cat,
		StartMoney: *money,
		CookTicks:  *cookTicks,
		MatchTicks: matchTicks,
	})
	if err != nil {
		logger.Fatalf("kitchen: %v", err)
	}

	wsSrv := ws.NewServer(k, ws.ServerConfig{
		CatalogDigest: cat.Digest,
		MatchTicks:    matchTicks,
		Logger:        logger,
	})

	ctx, cancel := signalContext()
	defer cancel()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(k, wsSrv, filepath.Base(*mapPath), logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	w, h := k.Size()
	logger.Printf("listening on %s map=%s size=%dx%d agents=%d match_ticks=%d", *addr, *mapPath, w, h, len(k.TeamAgents()), matchTicks)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func newMux(k *sim.Kitchen, wsSrv *ws.Server, mapName string, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, k, wsSrv, mapName)
	})

	if envBool("LINECOOK_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				Map      string    `json:"map"`
				Sessions int       `json:"sessions"`
				Stats    sim.Stats `json:"stats"`
				Obs      any       `json:"obs"`
			}{
				Map:      mapName,
				Sessions: wsSrv.Sessions(),
				Stats:    k.Stats(),
				Obs:      ws.Observe(k),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
	} else {
		logger.Printf("admin endpoints disabled (LINECOOK_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("LINECOOK_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	return mux
}

// writeMetrics emits the kitchen gauges in the Prometheus text format.
func writeMetrics(rw http.ResponseWriter, k *sim.Kitchen, wsSrv *ws.Server, mapName string) {
	st := k.Stats()
	open := 0
	for _, o := range k.Orders() {
		if o.Active {
			open++
		}
	}
	over := 0
	if k.Over() {
		over = 1
	}

	fmt.Fprintf(rw, "# HELP linecook_kitchen_tick Current kitchen tick.\n")
	fmt.Fprintf(rw, "# TYPE linecook_kitchen_tick gauge\n")
	fmt.Fprintf(rw, "linecook_kitchen_tick{map=%q} %d\n", mapName, k.Tick())

	fmt.Fprintf(rw, "# HELP linecook_kitchen_money Team money.\n")
	fmt.Fprintf(rw, "# TYPE linecook_kitchen_money gauge\n")
	fmt.Fprintf(rw, "linecook_kitchen_money{map=%q} %d\n", mapName, k.Money())

	fmt.Fprintf(rw, "# HELP linecook_kitchen_sessions Connected bot sessions.\n")
	fmt.Fprintf(rw, "# TYPE linecook_kitchen_sessions gauge\n")
	fmt.Fprintf(rw, "linecook_kitchen_sessions{map=%q} %d\n", mapName, wsSrv.Sessions())

	fmt.Fprintf(rw, "# HELP linecook_kitchen_orders Orders by state.\n")
	fmt.Fprintf(rw, "# TYPE linecook_kitchen_orders gauge\n")
	fmt.Fprintf(rw, "linecook_kitchen_orders{map=%q,state=%q} %d\n", mapName, "open", open)
	fmt.Fprintf(rw, "linecook_kitchen_orders{map=%q,state=%q} %d\n", mapName, "fulfilled", len(st.Fulfilled))
	fmt.Fprintf(rw, "linecook_kitchen_orders{map=%q,state=%q} %d\n", mapName, "expired", len(st.Expired))

	fmt.Fprintf(rw, "# HELP linecook_kitchen_money_total Money movements by kind.\n")
	fmt.Fprintf(rw, "# TYPE linecook_kitchen_money_total counter\n")
	fmt.Fprintf(rw, "linecook_kitchen_money_total{map=%q,kind=%q} %d\n", mapName, "rewards", st.Rewards)
	fmt.Fprintf(rw, "linecook_kitchen_money_total{map=%q,kind=%q} %d\n", mapName, "penalties", st.Penalties)
	fmt.Fprintf(rw, "linecook_kitchen_money_total{map=%q,kind=%q} %d\n", mapName, "spent", st.Spent)

	fmt.Fprintf(rw, "# HELP linecook_kitchen_over Whether the match has ended.\n")
	fmt.Fprintf(rw, "# TYPE linecook_kitchen_over gauge\n")
	fmt.Fprintf(rw, "linecook_kitchen_over{map=%q} %d\n", mapName, over)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
