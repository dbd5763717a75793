package repo

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jmoiron/sqlx"

	"github.com/lh-counsel/server/internal/agent/model"
	errx "github.com/lh-counsel/server/internal/core/error"
	logx "github.com/lh-counsel/server/pkg/logger"
)

// Repayment types stored in loan_products.repay_type.
const (
	RepayBullet         = "만기일시상환"
	RepayAnnuity        = "원리금분할상환"
	RepayEqualPrincipal = "원금분할상환"
)

// productsPerBank caps how many of each bank's cheapest products are shown.
const productsPerBank = 2

type loanProduct struct {
	Bank        string  `db:"bank"`
	Product     string  `db:"product"`
	RepayType   string  `db:"repay_type"`
	RateAvgPrev float64 `db:"rate_avg_prev"`
	LimitAmt    int64   `db:"limit_amt"`

	costTotal int64
	priced    bool
}

// LoanRepository prices loan products from the product database.
type LoanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

// ComparisonTable returns a markdown table of the cheapest products per bank
// whose limit covers amount, or "" when none does.
func (r *LoanRepository) ComparisonTable(ctx context.Context, amount int64, years int) (string, error) {
	var products []loanProduct
	err := r.db.SelectContext(ctx, &products,
		`SELECT bank, product, repay_type, rate_avg_prev, limit_amt FROM loan_products`)
	if err != nil {
		logx.Error().Err(err).Msg("loan product query failed")
		return "", errx.WrapDatabase(err)
	}

	rows := rankProducts(products, amount, years)
	logx.Debug().Int64("amount", amount).Int("years", years).Int("products", len(products)).Int("rows", len(rows)).
		Msg("Loan products priced")
	if len(rows) == 0 {
		return "", nil
	}
	return renderLoanTable(rows), nil
}

func rankProducts(products []loanProduct, amount int64, years int) []loanProduct {
	eligible := make([]loanProduct, 0, len(products))
	for _, p := range products {
		if p.LimitAmt < amount {
			continue
		}
		p.costTotal, p.priced = CostTotal(p.RepayType, p.RateAvgPrev, amount, years)
		eligible = append(eligible, p)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.Bank != b.Bank {
			return a.Bank < b.Bank
		}
		if a.priced != b.priced {
			return a.priced // unpriced rows sort last
		}
		return a.costTotal < b.costTotal
	})

	out := eligible[:0]
	perBank := map[string]int{}
	for _, p := range eligible {
		if perBank[p.Bank] >= productsPerBank {
			continue
		}
		perBank[p.Bank]++
		out = append(out, p)
	}
	return out
}

// CostTotal is the total repaid over the term for an annual rate in percent.
// ok is false for an unknown repayment type.
func CostTotal(repayType string, ratePct float64, amount int64, years int) (total int64, ok bool) {
	principal := float64(amount)
	r := ratePct / 100
	n := float64(years * 12)
	monthly := r / 12

	switch repayType {
	case RepayBullet:
		return int64(math.Round(principal + principal*r*float64(years))), true
	case RepayAnnuity:
		if n == 0 {
			return amount, true
		}
		var payment float64
		if monthly == 0 {
			payment = principal / n
		} else {
			growth := math.Pow(1+monthly, n)
			payment = principal * monthly * growth / (growth - 1)
		}
		return int64(math.Round(payment * n)), true
	case RepayEqualPrincipal:
		// interest on a linearly shrinking balance, summed over n months
		return int64(math.Round(principal + principal*monthly*(n+1)/2)), true
	default:
		return 0, false
	}
}

func renderLoanTable(rows []loanProduct) string {
	var b strings.Builder
	b.WriteString("| bank | product | repay_type | rate_avg_prev | limit_amt | cost_total |\n")
	b.WriteString("|:-----|:--------|:-----------|--------------:|----------:|-----------:|\n")
	for _, p := range rows {
		cost := ""
		if p.priced {
			cost = humanize.Comma(p.costTotal)
		}
		b.WriteString("| " + strings.Join([]string{
			cell(p.Bank),
			cell(p.Product),
			cell(p.RepayType),
			strconv.FormatFloat(p.RateAvgPrev, 'f', -1, 64),
			humanize.Comma(p.LimitAmt),
			cost,
		}, " | ") + " |\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func cell(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "|", "\\|")
}

var _ model.LoanPricer = (*LoanRepository)(nil)
