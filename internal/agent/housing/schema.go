package housing

import (
	"github.com/lh-counsel/server/internal/agent/dialog"
	"github.com/lh-counsel/server/internal/agent/model"
)

// Slot names of the housing intake form.
const (
	SlotTier          = "tier"
	SlotIncome        = "income"
	SlotHouseholdSize = "household_size"
	SlotHomeless      = "homeless"
	SlotHouseholder   = "householder"
	SlotRegion        = "region"
	SlotAssets        = "assets"
	SlotCarValue      = "car_value"
)

// Schema is the fixed question order of the housing intake.
var Schema = dialog.Schema{
	{Name: SlotTier, Kind: model.SlotText, Prompt: "신청자의 계층(예: 일반, 신혼부부 등)을 입력해주세요"},
	{Name: SlotIncome, Kind: model.SlotInt, Prompt: "월소득을 숫자로 입력해주세요 (단위: 원)"},
	{Name: SlotHouseholdSize, Kind: model.SlotInt, Prompt: "가구원 수를 입력해주세요 (숫자)"},
	{Name: SlotHomeless, Kind: model.SlotBool, Prompt: "무주택 여부를 입력해주세요 (예/아니오)"},
	{Name: SlotHouseholder, Kind: model.SlotBool, Prompt: "세대주 여부를 입력해주세요 (예/아니오)"},
	{Name: SlotRegion, Kind: model.SlotText, Prompt: "희망하는 거주 지역을 입력해주세요"},
	{Name: SlotAssets, Kind: model.SlotInt, Prompt: "총 자산 금액을 입력해주세요 (숫자)"},
	{Name: SlotCarValue, Kind: model.SlotInt, Prompt: "자동차 가액을 입력해주세요 (숫자)"},
}

// ProfileFromSlots converts a completed form into the eligibility query input.
func ProfileFromSlots(v model.SlotValues) model.HousingProfile {
	return model.HousingProfile{
		Tier:          v[SlotTier].Text,
		Income:        v[SlotIncome].Int,
		HouseholdSize: v[SlotHouseholdSize].Int,
		Homeless:      v[SlotHomeless].Bool,
		Householder:   v[SlotHouseholder].Bool,
		Region:        v[SlotRegion].Text,
		Assets:        v[SlotAssets].Int,
		CarValue:      v[SlotCarValue].Int,
	}
}
