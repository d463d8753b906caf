// Command screener-top fetches the token list once and prints one view as a table.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	dexclient "token_screener/internal/client"
	"token_screener/internal/domain/entity"
	"token_screener/internal/domain/normalizer"
	"token_screener/internal/domain/view"
	"token_screener/internal/infrastructure/addressloader"
	"token_screener/internal/infrastructure/configloader"
	"token_screener/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "optional YAML configuration")
	viewName := flag.String("view", "all", "all, new, gainers, losers or watchlist")
	presetName := flag.String("preset", "", "built-in preset (hot, pumping, safe, fresh)")
	sortField := flag.String("sort", "", "sort field, e.g. volume24h or priceChange1h")
	sortDir := flag.String("dir", "", "asc or desc")
	limit := flag.Int("n", 20, "rows to print")
	watchFile := flag.String("watchlist", "", "file of token addresses, one per line, for the watchlist view")
	flag.Parse()

	if err := run(*configPath, *viewName, *presetName, *sortField, *sortDir, *watchFile, *limit); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "screener-top: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, viewName, presetName, sortField, sortDir, watchFile string, limit int) error {
	cfg, err := configloader.Load(configPath)
	if err != nil {
		return err
	}
	zl, err := logger.Init("warn", "console")
	if err != nil {
		return err
	}
	defer logger.Sync()

	v, err := entity.ParseView(viewName)
	if err != nil {
		return err
	}
	var sets view.Sets
	switch v {
	case entity.ViewPortfolio, entity.ViewAlerts:
		return fmt.Errorf("view %q needs the running service", v)
	case entity.ViewWatchlist:
		if watchFile == "" {
			return fmt.Errorf("view %q needs -watchlist", v)
		}
		loader := addressloader.NewAddressFileLoader(watchFile, cfg.Wallet.Network.Kind, logger.Named("AddressLoader"))
		if sets.Watchlist, err = loader.Set(); err != nil {
			return err
		}
	}
	params := view.Params{View: v, Now: time.Now()}
	if presetName != "" {
		p, ok := view.LookupPreset(presetName)
		if !ok {
			return fmt.Errorf("unknown preset %q", presetName)
		}
		params.Preset = &p
	}
	if params.Sort, err = view.ResolveSort(sortField, sortDir, params.Preset); err != nil {
		return err
	}

	market := dexclient.NewDEXScreenerClient(cfg.DEXScreener.BaseURL, zl, dexclient.Options{Timeout: cfg.DEXScreenerTimeout()})
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DEXScreenerTimeout())
	defer cancel()
	pairs, err := market.GetTokensByChain(ctx, cfg.DEXScreener.Chain)
	if err != nil {
		return err
	}
	tokens, _ := normalizer.NormalizeAll(pairs)

	res := view.Derive(tokens, params, sets)
	printTable(os.Stdout, res, limit)
	return nil
}

func printTable(w io.Writer, res entity.ViewResult, limit int) {
	header := color.New(color.Bold, color.Underline)
	up := color.New(color.FgGreen)
	down := color.New(color.FgRed)
	hot := color.New(color.FgYellow, color.Bold)

	header.Fprintf(w, "%-4s %-12s %14s %9s %9s %14s %14s %7s\n", "#", "SYMBOL", "PRICE", "1H", "24H", "VOLUME 24H", "LIQUIDITY", "TXNS")
	for i, t := range res.Rows {
		if limit > 0 && i >= limit {
			break
		}
		symbol := truncate(t.Symbol, 12)
		if view.IsHot(t) {
			symbol = hot.Sprintf("%-12s", symbol)
		} else {
			symbol = fmt.Sprintf("%-12s", symbol)
		}
		fmt.Fprintf(w, "%-4d %s %14s %s %s %14s %14s %7d\n",
			i+1, symbol, formatPrice(t.PriceUSD),
			change(up, down, t.PriceChange1h), change(up, down, t.PriceChange24h),
			compact(t.Volume24h), compact(t.LiquidityUSD), t.Txns24h)
	}
	tot := res.Totals
	fmt.Fprintf(w, "\n%d tokens, volume %s, txns %d, market cap %s, %d hot\n",
		tot.Count, compact(tot.Volume24h), tot.Txns, compact(tot.MarketCap), tot.HotCount)
}

func change(up, down *color.Color, pct float64) string {
	s := fmt.Sprintf("%+8.2f%%", pct)
	if pct < 0 {
		return down.Sprint(s)
	}
	return up.Sprint(s)
}

func formatPrice(p float64) string {
	switch {
	case p == 0:
		return "-"
	case p < 0.0001:
		return fmt.Sprintf("$%.3e", p)
	case p < 1:
		return fmt.Sprintf("$%.6f", p)
	default:
		return fmt.Sprintf("$%.4f", p)
	}
}

func compact(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("$%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.2fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("$%.1fK", v/1e3)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
