package fetch

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"golang.org/x/sync/errgroup"

	"github.com/sig-0/cbrates/calendar"
	"github.com/sig-0/cbrates/cmd/env"
	"github.com/sig-0/cbrates/cmd/setup"
	"github.com/sig-0/cbrates/config"
	"github.com/sig-0/cbrates/provider/currencies"
	"github.com/sig-0/cbrates/storage/types"
)

const failedMessage = "Failed to get exchange rates. Try later."

var errInvalidArgs = errors.New("expected <dd.mm.yyyy> <CUR> [BASE]")

// User-facing validation errors
//
//nolint:staticcheck // Capitalized and punctuated, these are printed as-is
var (
	errInvalidDate     = errors.New("Invalid date format. Please use 'd.m.Y' format.")
	errInvalidCurrency = errors.New("Invalid currency code. Please provide a 3-letter uppercase currency code.")
	errInvalidBase     = errors.New("Invalid base currency code. Please provide a 3-letter uppercase currency code.")
	errFutureDate      = errors.New("Invalid date. The date cannot be greater than today's date")
)

var currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// Fetcher resolves rates, directly or through the job queue
type Fetcher interface {
	FetchExchangeRate(ctx context.Context, date time.Time, currency, base types.Currency) (float64, error)
	FetchRatesAsync(ctx context.Context, query types.RateQuery) <-chan types.RateResult
}

// fetchCfg wraps the fetch configuration
type fetchCfg struct {
	out io.Writer
	now func() time.Time

	configPath string
	logLevel   string
	direct     bool
}

// NewFetchCmd creates the fetch subcommand
func NewFetchCmd() *ffcli.Command {
	cfg := &fetchCfg{
		out: os.Stdout,
		now: time.Now,
	}

	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	cfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "fetch",
		ShortUsage: "fetch [flags] <dd.mm.yyyy> <CUR> [BASE=RUR]",
		LongHelp:   "Fetches the CBR exchange rate of a currency, and its change from the previous trading day",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func (c *fetchCfg) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(
		&c.configPath,
		"config",
		"",
		"the path to the cbrates TOML configuration, if any",
	)

	fs.StringVar(
		&c.logLevel,
		"log-level",
		"warn",
		"the log level (debug, info, warn, error)",
	)

	fs.BoolVar(
		&c.direct,
		"direct",
		false,
		"resolve the rates directly, without the job queue",
	)
}

// exec executes the fetch command
func (c *fetchCfg) exec(ctx context.Context, args []string) error {
	query, err := parseArgs(args, c.now())
	if err != nil {
		return err
	}

	// Logs go to stderr, the result goes to the output
	logger, err := setup.NewLogger(os.Stderr, c.logLevel)
	if err != nil {
		return err
	}

	// Load .env
	if err = godotenv.Load(); err != nil {
		logger.Debug("unable to load .env file")
	}

	cfg, err := setup.LoadConfig(c.configPath)
	if err != nil {
		return err
	}

	if err = config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration, %w", err)
	}

	app, err := setup.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("unable to set up cbrates: %w", err)
	}

	defer func() {
		if err := app.Close(); err != nil {
			logger.Error(
				"unable to gracefully release resources",
				"err", err,
			)
		}
	}()

	return run(ctx, app.Orchestrator, query, c.direct, c.out, logger)
}

// run resolves the query and writes the outcome to out.
// A failed resolution is reported on out, and is not an error
func run(
	ctx context.Context,
	fetcher Fetcher,
	query types.RateQuery,
	direct bool,
	out io.Writer,
	logger *slog.Logger,
) error {
	var result types.RateResult

	if direct {
		result = fetchDirect(ctx, fetcher, query)
	} else {
		result = <-fetcher.FetchRatesAsync(ctx, query)
	}

	if !result.IsOK() {
		logger.Error(
			"unable to fetch exchange rates",
			"err", result.Err,
		)

		_, err := fmt.Fprintln(out, failedMessage)

		return err
	}

	return writeResult(out, query, result)
}

// fetchDirect resolves both rates without the job queue
func fetchDirect(ctx context.Context, fetcher Fetcher, query types.RateQuery) types.RateResult {
	var (
		rate, previousRate float64

		previousDate = calendar.PreviousBusinessDay(query.Date)
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		rate, err = fetcher.FetchExchangeRate(gCtx, query.Date, query.Currency, query.Base)

		return err
	})

	g.Go(func() error {
		var err error

		previousRate, err = fetcher.FetchExchangeRate(gCtx, previousDate, query.Currency, query.Base)

		return err
	})

	if err := g.Wait(); err != nil {
		return types.Failed(err)
	}

	return types.OK(rate, previousRate)
}

// writeResult writes the resolved rates, one per line
func writeResult(out io.Writer, query types.RateQuery, result types.RateResult) error {
	_, err := fmt.Fprintf(
		out,
		"Base currency: %s\n"+
			"Exchange rate for %s on %s: %s\n"+
			"Exchange rate on previous trading day: %s\n"+
			"Rate difference with previous trading day: %+.4f\n",
		query.Base,
		query.Currency,
		query.Date.Format(time.DateOnly),
		formatRate(result.Rate),
		formatRate(result.PreviousRate),
		result.Difference(),
	)

	return err
}

func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// parseArgs validates the positional arguments:
// a dd.mm.yyyy date no later than today, a currency and an optional base.
// Codes must be exactly 3 uppercase letters
func parseArgs(args []string, now time.Time) (types.RateQuery, error) {
	if len(args) < 2 || len(args) > 3 {
		return types.RateQuery{}, errInvalidArgs
	}

	base := string(currencies.RUR)
	if len(args) == 3 {
		base = args[2]
	}

	date, err := time.ParseInLocation(types.DateLayout, args[0], time.UTC)
	if err != nil {
		return types.RateQuery{}, errInvalidDate
	}

	if !currencyRegex.MatchString(args[1]) {
		return types.RateQuery{}, errInvalidCurrency
	}

	if !currencyRegex.MatchString(base) {
		return types.RateQuery{}, errInvalidBase
	}

	if date.After(types.Day(now.UTC())) {
		return types.RateQuery{}, errFutureDate
	}

	return types.RateQuery{
		Date:     date,
		Currency: types.Currency(args[1]),
		Base:     types.Currency(base),
	}, nil
}
