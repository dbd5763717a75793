package housing

import (
	"fmt"
	"html"
	"strings"

	"github.com/lh-counsel/server/internal/agent/model"
)

const (
	msgExit          = "주택 상담을 종료합니다."
	msgNoHousingType = "❌ 조건에 맞는 임대주택 유형이 없습니다. 다른 조건을 입력해주세요."
	msgNoNotice      = "❌ 현재 신청 가능한 공고가 없습니다. 다른 조건을 입력해주세요."
	msgRestart       = "입력하신 조건으로는 결과가 없어 처음부터 다시 진행합니다."
	msgReselect      = "공고를 다시 선택해주세요. 번호를 입력해주세요."
	msgNotNumber     = "⚠️ 번호를 입력해주세요."
	msgOutOfRange    = "⚠️ 올바른 번호를 입력해주세요."
	msgNotFound      = "❌ 관련 정보를 찾을 수 없습니다."
	msgSelectedFmt   = "✅ 선택한 공고: %s\n이제 궁금한 점을 입력해주세요!"
)

// renderTypes lists eligible housing types as `name (supply_type)` items.
func renderTypes(types []model.HousingType) string {
	var b strings.Builder
	b.WriteString("<ul>")
	for _, t := range types {
		fmt.Fprintf(&b, "<li>%s (%s)</li>", html.EscapeString(t.Name), html.EscapeString(t.SupplyType))
	}
	b.WriteString("</ul>")
	return b.String()
}

// renderNotices numbers the open notices for 1-based selection.
func renderNotices(notices []model.Notice) string {
	var b strings.Builder
	b.WriteString("<ol>")
	for _, n := range notices {
		fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(n.Name))
	}
	b.WriteString("</ol>")
	return b.String()
}

func renderRecommendation(types []model.HousingType, notices []model.Notice) string {
	return "✅ 신청 가능한 임대주택 유형:\n" + renderTypes(types) + "\n\n" +
		"✅ 진행 중인 추천 공고:\n" + renderNotices(notices) + "\n\n" +
		"원하는 공고 번호를 입력해주세요.\n"
}
