package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/stockwallet/backend/internal/domain"
	"github.com/stockwallet/backend/internal/usecase"
)

func baseURL() string {
	if url := os.Getenv("WALLET_API"); url != "" {
		return strings.TrimRight(url, "/")
	}
	return "http://localhost:8000"
}

func postJSON(path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return http.Post(baseURL()+path, "application/json", bytes.NewReader(payload))
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, "Error:", err)
	return subcommands.ExitFailure
}

// readBody drains a response and reports non-2xx statuses as errors.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func parseEventTime(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

type addOperationCmd struct {
	kind       string
	portfolios string
	broker     string
	quantity   string
	price      string
	fees       string
	date       string
}

func (*addOperationCmd) Name() string     { return "add-operation" }
func (*addOperationCmd) Synopsis() string { return "record a purchase or sale" }
func (*addOperationCmd) Usage() string {
	return `walletctl add-operation -k purchase|sale -s <symbol> -p <portfolio>[,<portfolio>] -b <broker> -q <qty> -u <unit price> [-f <fees>] [-d <date>]

  Appends a stock operation to the ledger.
`
}

func (c *addOperationCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "k", "purchase", "Operation kind: purchase or sale.")
	f.StringVar(&c.portfolios, "p", "", "Comma-separated portfolio ids.")
	f.StringVar(&c.broker, "b", "", "Broker id.")
	f.StringVar(&c.quantity, "q", "", "Quantity of shares.")
	f.StringVar(&c.price, "u", "", "Unit price.")
	f.StringVar(&c.fees, "f", "0", "Total fees for the operation.")
	f.StringVar(&c.date, "d", "", "Event date, RFC3339 or YYYY-MM-DD. Defaults to now.")
}

func (c *addOperationCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one symbol argument is required.")
		return subcommands.ExitUsageError
	}
	quantity, err := decimal.NewFromString(c.quantity)
	if err != nil {
		return fail(fmt.Errorf("quantity: %w", err))
	}
	price, err := decimal.NewFromString(c.price)
	if err != nil {
		return fail(fmt.Errorf("price: %w", err))
	}
	fees, err := decimal.NewFromString(c.fees)
	if err != nil {
		return fail(fmt.Errorf("fees: %w", err))
	}
	when, err := parseEventTime(c.date)
	if err != nil {
		return fail(err)
	}

	ev := domain.Event{
		Symbol: f.Arg(0),
		Time:   when,
		Detail: domain.StockOperation{
			Kind:       domain.OperationKind(c.kind),
			Portfolios: strings.Split(c.portfolios, ","),
			Broker:     c.broker,
			Quantity:   quantity,
			Price:      price,
			Fees:       fees,
		},
	}
	resp, err := postJSON("/events", &ev)
	if err != nil {
		return fail(err)
	}
	body, err := readBody(resp)
	if err != nil {
		return fail(err)
	}
	fmt.Println(string(body))
	return subcommands.ExitSuccess
}

type addSplitCmd struct {
	kind       string
	portfolios string
	factor     string
	date       string
}

func (*addSplitCmd) Name() string     { return "add-split" }
func (*addSplitCmd) Synopsis() string { return "record a stock split or reverse split" }
func (*addSplitCmd) Usage() string {
	return `walletctl add-split -k split|reverse-split -p <portfolio>[,<portfolio>] -x <factor> [-d <date>] <symbol>

  Appends a split event to the ledger. The factor is greater than one in
  both directions: a 2:1 split and a 1:2 reverse split both use -x 2.
`
}

func (c *addSplitCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "k", "split", "Split kind: split or reverse-split.")
	f.StringVar(&c.portfolios, "p", "", "Comma-separated portfolio ids.")
	f.StringVar(&c.factor, "x", "", "Split factor, greater than one.")
	f.StringVar(&c.date, "d", "", "Event date, RFC3339 or YYYY-MM-DD. Defaults to now.")
}

func (c *addSplitCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one symbol argument is required.")
		return subcommands.ExitUsageError
	}
	factor, err := decimal.NewFromString(c.factor)
	if err != nil {
		return fail(fmt.Errorf("factor: %w", err))
	}
	when, err := parseEventTime(c.date)
	if err != nil {
		return fail(err)
	}

	ev := domain.Event{
		Symbol: f.Arg(0),
		Time:   when,
		Detail: domain.StockSplit{
			Kind:       domain.SplitKind(c.kind),
			Portfolios: strings.Split(c.portfolios, ","),
			Factor:     factor,
		},
	}
	resp, err := postJSON("/events", &ev)
	if err != nil {
		return fail(err)
	}
	body, err := readBody(resp)
	if err != nil {
		return fail(err)
	}
	fmt.Println(string(body))
	return subcommands.ExitSuccess
}

type positionsCmd struct {
	portfolio string
}

func (*positionsCmd) Name() string     { return "positions" }
func (*positionsCmd) Synopsis() string { return "show current positions" }
func (*positionsCmd) Usage() string {
	return `walletctl positions [-p <portfolio>]

  Prints the positions of one portfolio, or of every portfolio.
`
}

func (c *positionsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "Portfolio id. Empty means all portfolios.")
}

func (c *positionsCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	url := baseURL() + "/positions"
	if c.portfolio != "" {
		url = baseURL() + "/portfolios/" + c.portfolio + "/positions"
	}
	resp, err := http.Get(url)
	if err != nil {
		return fail(err)
	}
	body, err := readBody(resp)
	if err != nil {
		return fail(err)
	}

	var positions []*domain.Position
	if c.portfolio != "" {
		bySymbol := map[string]*domain.Position{}
		if err := json.Unmarshal(body, &bySymbol); err != nil {
			return fail(err)
		}
		for _, pos := range bySymbol {
			positions = append(positions, pos)
		}
	} else if err := json.Unmarshal(body, &positions); err != nil {
		return fail(err)
	}

	for _, pos := range positions {
		marker := ""
		if pos.Inconsistent {
			marker = "  INCONSISTENT"
		}
		fmt.Printf("%-12s %-10s qty=%s avg=%s cost=%s realized=%s%s\n",
			pos.PortfolioID, pos.Symbol,
			pos.Quantity, pos.AveragePrice, pos.CostBasis, pos.Realized, marker)
	}
	return subcommands.ExitSuccess
}

type performanceCmd struct {
	portfolio string
	bucket    string
}

func (*performanceCmd) Name() string     { return "performance" }
func (*performanceCmd) Synopsis() string { return "show the percentual gain series" }
func (*performanceCmd) Usage() string {
	return `walletctl performance [-p <portfolio>] [-b weekly|monthly]

  Prints the percentual gain per period.
`
}

func (c *performanceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "Portfolio id. Empty means all portfolios combined.")
	f.StringVar(&c.bucket, "b", "weekly", "Bucketing: weekly or monthly.")
}

func (c *performanceCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	resp, err := http.Get(baseURL() + "/portfolios/performance?id=" + c.portfolio + "&bucket=" + c.bucket)
	if err != nil {
		return fail(err)
	}
	body, err := readBody(resp)
	if err != nil {
		return fail(err)
	}
	var series []usecase.PerformancePoint
	if err := json.Unmarshal(body, &series); err != nil {
		return fail(err)
	}
	for _, point := range series {
		fmt.Printf("%-12s %s%%\n", point.Label, point.PercentualGain.StringFixed(2))
	}
	return subcommands.ExitSuccess
}

func main() {
	godotenv.Load()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(subcommands.HelpCommand(), "")
	commander.Register(&addOperationCmd{}, "ledger")
	commander.Register(&addSplitCmd{}, "ledger")
	commander.Register(&positionsCmd{}, "reporting")
	commander.Register(&performanceCmd{}, "reporting")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
