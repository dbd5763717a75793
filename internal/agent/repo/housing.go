package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/lh-counsel/server/internal/agent/model"
	errx "github.com/lh-counsel/server/internal/core/error"
	logx "github.com/lh-counsel/server/pkg/logger"
)

// HousingRepository answers eligibility and region lookups from the housing programme database.
type HousingRepository struct {
	db *sqlx.DB
}

func NewHousingRepository(db *sqlx.DB) *HousingRepository {
	return &HousingRepository{db: db}
}

const eligibilityQuery = `
	SELECT DISTINCT p.house_id, p.house_name, p.supply_type
	FROM program p
	JOIN income_rule ir ON p.income_rule_id = ir.income_rule_id
	JOIN income_reference ref
	  ON ir.income_code = ref.income_code
	  AND ref.house_id = p.house_id
	  AND ref.household_size = ?
	JOIN asset_rule ar ON p.asset_rule_id = ar.asset_rule_id
	LEFT JOIN bonus_rule br
	  ON p.house_id = br.house_id
	  AND br.household_size = ?
`

// buildEligibilityWhere turns a profile into WHERE conditions and their arguments.
func buildEligibilityWhere(p model.HousingProfile) (string, []any) {
	var whereClauses []string
	var args []any

	if tier := strings.TrimSpace(p.Tier); tier != "" {
		whereClauses = append(whereClauses, "(? = p.eligible_user_type OR p.eligible_user_type = '전체')")
		args = append(args, tier)
	}
	if p.Homeless {
		whereClauses = append(whereClauses, "p.is_no_house = 1")
	}
	if p.Householder {
		whereClauses = append(whereClauses, "p.is_householder = 1")
	} else {
		whereClauses = append(whereClauses, "p.is_householder = 0")
	}
	whereClauses = append(whereClauses, "? <= ar.max_asset")
	args = append(args, p.Assets)
	whereClauses = append(whereClauses, "? <= ar.max_car_value")
	args = append(args, p.CarValue)
	whereClauses = append(whereClauses,
		"? <= ref.income * (CASE WHEN p.has_bonus_score = 1 THEN ir.income_limit_pct + IFNULL(br.point, 0) ELSE ir.income_limit_pct END)")
	args = append(args, p.Income)

	return "WHERE " + strings.Join(whereClauses, " AND "), args
}

// FindEligible returns the distinct housing programmes the profile qualifies for.
func (r *HousingRepository) FindEligible(ctx context.Context, p model.HousingProfile) ([]model.HousingType, error) {
	householdSize := p.HouseholdSize
	if householdSize <= 0 {
		householdSize = 1
	}
	where, whereArgs := buildEligibilityWhere(p)
	args := append([]any{householdSize, householdSize}, whereArgs...)

	query := eligibilityQuery + where + "\n\tORDER BY p.house_id"
	var types []model.HousingType
	if err := r.db.SelectContext(ctx, &types, query, args...); err != nil {
		logx.Error().Err(err).Msg("eligibility query failed")
		return nil, errx.WrapDatabase(err)
	}
	logx.Debug().Int64("household_size", householdSize).Int("matches", len(types)).Msg("Eligibility query executed")
	return types, nil
}

// ResolveRegionCode returns "" when the name is empty or unknown.
func (r *HousingRepository) ResolveRegionCode(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}
	var code string
	err := r.db.GetContext(ctx, &code, `SELECT cnp_cd FROM region_code WHERE cnp_name LIKE ? LIMIT 1`, "%"+name+"%")
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		logx.Error().Err(err).Str("region", name).Msg("region code query failed")
		return "", errx.WrapDatabase(err)
	}
	return code, nil
}

var (
	_ model.EligibilityFinder = (*HousingRepository)(nil)
	_ model.RegionResolver    = (*HousingRepository)(nil)
)
